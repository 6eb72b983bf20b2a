package repository

import (
	"context"

	"github.com/travelagency/backoffice/pkg/repository"
	"gorm.io/gorm"
)

// UoW provides transaction boundary and repository access in one abstraction.
// Repositories obtained inside Do share the transaction; outside Do they run
// on the plain connection pool.
type UoW struct {
	db *gorm.DB
	tx *gorm.DB
}

// NewUoW creates a new UoW for the given *gorm.DB.
func NewUoW(db *gorm.DB) *UoW {
	return &UoW{db: db}
}

// Do runs the given function in a transaction boundary, providing a UoW with repository access.
func (u *UoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UoW{db: u.db, tx: tx})
	})
}

func (u *UoW) session() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UoW) ChartAccountRepository() (repository.ChartAccountRepository, error) {
	return NewChartAccountRepository(u.session()), nil
}

func (u *UoW) FinancialAccountRepository() (repository.FinancialAccountRepository, error) {
	return NewFinancialAccountRepository(u.session()), nil
}

func (u *UoW) MovementRepository() (repository.MovementRepository, error) {
	return NewMovementRepository(u.session()), nil
}

func (u *UoW) PaymentRepository() (repository.PaymentRepository, error) {
	return NewPaymentRepository(u.session()), nil
}

func (u *UoW) OperatorPaymentRepository() (repository.OperatorPaymentRepository, error) {
	return NewOperatorPaymentRepository(u.session()), nil
}

func (u *UoW) OperationRepository() (repository.OperationRepository, error) {
	return NewOperationRepository(u.session()), nil
}

func (u *UoW) ExchangeRateRepository() (repository.ExchangeRateRepository, error) {
	return NewExchangeRateRepository(u.session()), nil
}

func (u *UoW) RecurringPaymentRepository() (repository.RecurringPaymentRepository, error) {
	return NewRecurringPaymentRepository(u.session()), nil
}

func (u *UoW) LegacyCashMovementRepository() (repository.LegacyCashMovementRepository, error) {
	return NewLegacyCashMovementRepository(u.session()), nil
}

var _ repository.UnitOfWork = (*UoW)(nil)
