package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"gorm.io/gorm"
)

type operationRepository struct {
	db *gorm.DB
}

// NewOperationRepository creates an operation repository.
func NewOperationRepository(db *gorm.DB) repository.OperationRepository {
	return &operationRepository{db: db}
}

func (r *operationRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.Operation, error) {
	var m Operation
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapGormErrorByID(err, "operation", id)
	}
	return mapOperationToDomain(&m), nil
}

func (r *operationRepository) Create(ctx context.Context, op *ledger.Operation) error {
	newIDIfNil(&op.ID)
	m := mapOperationToModel(op)
	return r.db.WithContext(ctx).Create(&m).Error
}

type recurringPaymentRepository struct {
	db *gorm.DB
}

// NewRecurringPaymentRepository creates a recurring payment repository.
func NewRecurringPaymentRepository(db *gorm.DB) repository.RecurringPaymentRepository {
	return &recurringPaymentRepository{db: db}
}

func (r *recurringPaymentRepository) Create(ctx context.Context, rp *ledger.RecurringPayment) error {
	newIDIfNil(&rp.ID)
	m := RecurringPayment{
		ID:          rp.ID,
		AgencyID:    rp.AgencyID,
		Provider:    rp.Provider,
		Description: rp.Description,
		Amount:      rp.Amount,
		Currency:    string(rp.Currency),
		NextDueDate: rp.NextDueDate.UTC(),
		Active:      rp.Active,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *recurringPaymentRepository) ListDue(ctx context.Context, until time.Time, agencyID *uuid.UUID) ([]*ledger.RecurringPayment, error) {
	q := r.db.WithContext(ctx).Where("active = ? AND next_due_date <= ?", true, until.UTC())
	if agencyID != nil {
		q = q.Where("agency_id = ?", *agencyID)
	}
	var rows []RecurringPayment
	if err := q.Order("next_due_date").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.RecurringPayment, 0, len(rows))
	for i := range rows {
		out = append(out, mapRecurringToDomain(&rows[i]))
	}
	return out, nil
}

type legacyCashMovementRepository struct {
	db *gorm.DB
}

// NewLegacyCashMovementRepository creates the compatibility-record repository.
func NewLegacyCashMovementRepository(db *gorm.DB) repository.LegacyCashMovementRepository {
	return &legacyCashMovementRepository{db: db}
}

func (r *legacyCashMovementRepository) Create(ctx context.Context, lm *ledger.LegacyCashMovement) error {
	newIDIfNil(&lm.ID)
	m := LegacyCashMovement{
		ID:           lm.ID,
		PaymentID:    lm.PaymentID,
		OperationID:  lm.OperationID,
		AccountID:    lm.AccountID,
		Type:         string(lm.Type),
		Amount:       lm.Amount,
		Currency:     string(lm.Currency),
		MovementDate: lm.MovementDate.UTC(),
		CreatedBy:    lm.CreatedBy,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *legacyCashMovementRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*ledger.LegacyCashMovement, error) {
	var rows []LegacyCashMovement
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.LegacyCashMovement, 0, len(rows))
	for i := range rows {
		out = append(out, mapLegacyToDomain(&rows[i]))
	}
	return out, nil
}
