package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"gorm.io/gorm"
)

type financialAccountRepository struct {
	db *gorm.DB
}

// NewFinancialAccountRepository creates a financial account repository.
func NewFinancialAccountRepository(db *gorm.DB) repository.FinancialAccountRepository {
	return &financialAccountRepository{db: db}
}

func (r *financialAccountRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.FinancialAccount, error) {
	var m FinancialAccount
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapGormErrorByID(err, "financial account", id)
	}
	return mapAccountToDomain(&m), nil
}

func (r *financialAccountRepository) Create(ctx context.Context, a *ledger.FinancialAccount) error {
	newIDIfNil(&a.ID)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m := mapAccountToModel(a)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *financialAccountRepository) FindForLeaf(
	ctx context.Context,
	chartAccountID uuid.UUID,
	currency ledger.Currency,
	agencyID *uuid.UUID,
) (*ledger.FinancialAccount, error) {
	q := r.db.WithContext(ctx).
		Where("chart_account_id = ? AND currency = ?", chartAccountID, string(currency))
	if agencyID != nil {
		q = q.Where("agency_id = ?", *agencyID)
	} else {
		q = q.Where("agency_id IS NULL")
	}
	var m FinancialAccount
	if err := q.Order("created_at, id").First(&m).Error; err != nil {
		return nil, mapGormError(err, "financial account for leaf", chartAccountID.String()+"/"+string(currency))
	}
	return mapAccountToDomain(&m), nil
}

func (r *financialAccountRepository) List(ctx context.Context, filter repository.AccountFilter) ([]*ledger.FinancialAccount, error) {
	q := r.db.WithContext(ctx)
	if filter.AgencyID != nil {
		q = q.Where("agency_id = ? OR agency_id IS NULL", *filter.AgencyID)
	}
	if filter.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	var rows []FinancialAccount
	if err := q.Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.FinancialAccount, 0, len(rows))
	for i := range rows {
		out = append(out, mapAccountToDomain(&rows[i]))
	}
	return out, nil
}
