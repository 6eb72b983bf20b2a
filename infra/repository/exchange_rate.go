package repository

import (
	"context"
	"time"

	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"gorm.io/gorm"
)

type exchangeRateRepository struct {
	db *gorm.DB
}

// NewExchangeRateRepository creates the exchange rate series repository.
func NewExchangeRateRepository(db *gorm.DB) repository.ExchangeRateRepository {
	return &exchangeRateRepository{db: db}
}

func (r *exchangeRateRepository) Create(ctx context.Context, rate *ledger.ExchangeRate) error {
	newIDIfNil(&rate.ID)
	if rate.CreatedAt.IsZero() {
		rate.CreatedAt = time.Now().UTC()
	}
	m := ExchangeRate{
		ID:            rate.ID,
		EffectiveDate: rate.EffectiveDate.UTC(),
		Rate:          rate.Rate,
		Source:        rate.Source,
		CreatedAt:     rate.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *exchangeRateRepository) List(ctx context.Context) ([]*ledger.ExchangeRate, error) {
	var rows []ExchangeRate
	if err := r.db.WithContext(ctx).Order("effective_date, created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.ExchangeRate, 0, len(rows))
	for i := range rows {
		out = append(out, mapRateToDomain(&rows[i]))
	}
	return out, nil
}

func (r *exchangeRateRepository) EffectiveOn(ctx context.Context, date time.Time) (*ledger.ExchangeRate, error) {
	var m ExchangeRate
	err := r.db.WithContext(ctx).
		Where("effective_date <= ?", date.UTC()).
		Order("effective_date DESC, created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, mapGormError(err, "exchange rate effective on", date.Format(time.DateOnly))
	}
	return mapRateToDomain(&m), nil
}

func (r *exchangeRateRepository) Latest(ctx context.Context) (*ledger.ExchangeRate, error) {
	var m ExchangeRate
	err := r.db.WithContext(ctx).
		Order("effective_date DESC, created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, mapGormError(err, "exchange rate", "latest")
	}
	return mapRateToDomain(&m), nil
}
