package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"gorm.io/gorm"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a payment repository.
func NewPaymentRepository(db *gorm.DB) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.Payment, error) {
	var m Payment
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapGormErrorByID(err, "payment", id)
	}
	return mapPaymentToDomain(&m), nil
}

func (r *paymentRepository) Create(ctx context.Context, p *ledger.Payment) error {
	newIDIfNil(&p.ID)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m := mapPaymentToModel(p)
	return r.db.WithContext(ctx).Create(&m).Error
}

// MarkPaid is the compare-and-swap guarding the PENDING to PAID transition:
// the WHERE clause only matches while the row is still PENDING, so of any
// number of concurrent callers exactly one sees a row affected.
func (r *paymentRepository) MarkPaid(
	ctx context.Context,
	id uuid.UUID,
	datePaid time.Time,
	reference string,
	accountID uuid.UUID,
) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ? AND status = ?", id, string(ledger.StatusPending)).
		Updates(map[string]any{
			"status":     string(ledger.StatusPaid),
			"date_paid":  datePaid.UTC(),
			"reference":  reference,
			"account_id": accountID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepository) AttachMovement(ctx context.Context, id, movementID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ? AND ledger_movement_id IS NULL", id).
		Updates(map[string]any{
			"ledger_movement_id": movementID,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// releasedAt is written by Release; any claim cutoff is later than it.
var releasedAt = time.Unix(0, 0).UTC()

func (r *paymentRepository) ClaimStale(ctx context.Context, id uuid.UUID, staleAfter time.Duration) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, string(ledger.StatusPaid), now.Add(-staleAfter)).
		Update("updated_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepository) Release(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ? AND status = ?", id, string(ledger.StatusPaid)).
		Update("updated_at", releasedAt).Error
}

func (r *paymentRepository) Find(ctx context.Context, f repository.PaymentFilter) ([]*ledger.Payment, error) {
	q := r.db.WithContext(ctx).Model(&Payment{}).Select("payments.*")
	if f.AgencyID != nil {
		q = q.Joins("JOIN operations ON operations.id = payments.operation_id").
			Where("operations.agency_id = ?", *f.AgencyID)
	}
	if f.Status != "" {
		q = q.Where("payments.status = ?", string(f.Status))
	}
	if f.Direction != "" {
		q = q.Where("payments.direction = ?", string(f.Direction))
	}
	if f.PayerType != "" {
		q = q.Where("payments.payer_type = ?", string(f.PayerType))
	}
	if f.DueUntil != nil {
		q = q.Where("payments.date_due <= ?", f.DueUntil.UTC())
	}
	if f.PaidFrom != nil {
		q = q.Where("payments.date_paid >= ?", f.PaidFrom.UTC())
	}
	if f.PaidBefore != nil {
		q = q.Where("payments.date_paid < ?", f.PaidBefore.UTC())
	}
	var rows []Payment
	if err := q.Order("payments.date_due, payments.id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.Payment, 0, len(rows))
	for i := range rows {
		out = append(out, mapPaymentToDomain(&rows[i]))
	}
	return out, nil
}

type operatorPaymentRepository struct {
	db *gorm.DB
}

// NewOperatorPaymentRepository creates an operator payment repository.
func NewOperatorPaymentRepository(db *gorm.DB) repository.OperatorPaymentRepository {
	return &operatorPaymentRepository{db: db}
}

func (r *operatorPaymentRepository) Create(ctx context.Context, op *ledger.OperatorPayment) error {
	newIDIfNil(&op.ID)
	m := mapOperatorPaymentToModel(op)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *operatorPaymentRepository) GetByPayment(ctx context.Context, paymentID uuid.UUID) (*ledger.OperatorPayment, error) {
	var m OperatorPayment
	if err := r.db.WithContext(ctx).First(&m, "payment_id = ?", paymentID).Error; err != nil {
		return nil, mapGormError(err, "operator payment for payment", paymentID.String())
	}
	return mapOperatorPaymentToDomain(&m), nil
}

func (r *operatorPaymentRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, movementID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&OperatorPayment{}).
		Where("id = ? AND status = ?", id, string(ledger.StatusPending)).
		Updates(map[string]any{
			"status":             string(ledger.StatusPaid),
			"paid_at":            paidAt.UTC(),
			"ledger_movement_id": movementID,
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *operatorPaymentRepository) ListPending(ctx context.Context, dueUntil time.Time, agencyID *uuid.UUID) ([]*ledger.OperatorPayment, error) {
	q := r.db.WithContext(ctx).Model(&OperatorPayment{}).Select("operator_payments.*").
		Where("operator_payments.status = ? AND operator_payments.due_date <= ?", string(ledger.StatusPending), dueUntil.UTC())
	if agencyID != nil {
		q = q.Joins("JOIN operations ON operations.id = operator_payments.operation_id").
			Where("operations.agency_id = ?", *agencyID)
	}
	var rows []OperatorPayment
	if err := q.Order("operator_payments.due_date").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.OperatorPayment, 0, len(rows))
	for i := range rows {
		out = append(out, mapOperatorPaymentToDomain(&rows[i]))
	}
	return out, nil
}
