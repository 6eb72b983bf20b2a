package repository

import "context"

// UnitOfWork hands out repositories bound to one store session.
//
// Outside Do the repositories run statement by statement. Do wraps fn in a
// store transaction where the caller wants several reads or writes to be
// atomic; settlement deliberately does not, see the settlement package.
type UnitOfWork interface {
	// Do executes fn within a transaction boundary. If fn returns an error the
	// transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	ChartAccountRepository() (ChartAccountRepository, error)
	FinancialAccountRepository() (FinancialAccountRepository, error)
	MovementRepository() (MovementRepository, error)
	PaymentRepository() (PaymentRepository, error)
	OperatorPaymentRepository() (OperatorPaymentRepository, error)
	OperationRepository() (OperationRepository, error)
	ExchangeRateRepository() (ExchangeRateRepository, error)
	RecurringPaymentRepository() (RecurringPaymentRepository, error)
	LegacyCashMovementRepository() (LegacyCashMovementRepository, error)
}
