// Package repository declares the store contracts the accounting core is
// written against. The store offers point lookups by id, filtered scans and
// generated-id inserts; no multi-step transaction is assumed by the core.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
)

// ChartAccountRepository reads the static chart of accounts.
type ChartAccountRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*ledger.ChartAccount, error)
	GetByCode(ctx context.Context, code string) (*ledger.ChartAccount, error)
	List(ctx context.Context) ([]*ledger.ChartAccount, error)
	ListActiveLeaves(ctx context.Context) ([]*ledger.ChartAccount, error)
}

// AccountFilter narrows financial account scans.
type AccountFilter struct {
	// AgencyID keeps accounts of that agency plus shared accounts.
	AgencyID   *uuid.UUID
	ActiveOnly bool
}

// FinancialAccountRepository reads financial accounts. Create is only used
// for the lazy creation of accounts backing chart leaves.
type FinancialAccountRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*ledger.FinancialAccount, error)
	Create(ctx context.Context, account *ledger.FinancialAccount) error
	// FindForLeaf returns the account linked to the chart leaf in currency
	// for the agency, or a NotFoundError.
	FindForLeaf(ctx context.Context, chartAccountID uuid.UUID, currency ledger.Currency, agencyID *uuid.UUID) (*ledger.FinancialAccount, error)
	List(ctx context.Context, filter AccountFilter) ([]*ledger.FinancialAccount, error)
}

// MovementFilter narrows movement scans. Empty slices are ignored.
type MovementFilter struct {
	AccountIDs []uuid.UUID
	IDs        []uuid.UUID
	PaymentIDs []uuid.UUID
	// CreatedAfter is exclusive, CreatedUntil inclusive.
	CreatedAfter *time.Time
	CreatedUntil *time.Time
}

// MovementRepository is the append-only movement log. It has no update or
// delete operation.
type MovementRepository interface {
	Create(ctx context.Context, movement *ledger.LedgerMovement) error
	Get(ctx context.Context, id uuid.UUID) (*ledger.LedgerMovement, error)
	// Find returns matching movements ordered by creation time.
	Find(ctx context.Context, filter MovementFilter) ([]*ledger.LedgerMovement, error)
}

// PaymentFilter narrows payment scans.
type PaymentFilter struct {
	AgencyID   *uuid.UUID
	Status     ledger.PaymentStatus
	Direction  ledger.Direction
	PayerType  ledger.PayerType
	DueUntil   *time.Time
	PaidFrom   *time.Time
	PaidBefore *time.Time
}

// PaymentRepository stores scheduled payments. Status, date paid and the
// movement back-reference are only changed through the conditional updates.
type PaymentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*ledger.Payment, error)
	Create(ctx context.Context, payment *ledger.Payment) error
	// MarkPaid flips the payment to PAID only while it is still PENDING and
	// reports whether this call won the transition.
	MarkPaid(ctx context.Context, id uuid.UUID, datePaid time.Time, reference string, accountID uuid.UUID) (bool, error)
	// AttachMovement sets the result-recognition movement only if none is set.
	AttachMovement(ctx context.Context, id, movementID uuid.UUID) (bool, error)
	// ClaimStale takes over the settlement of a PAID payment whose last
	// write is older than staleAfter. At most one concurrent caller wins.
	ClaimStale(ctx context.Context, id uuid.UUID, staleAfter time.Duration) (bool, error)
	// Release marks the settlement of a PAID payment as abandoned so the
	// next attempt can claim it without waiting.
	Release(ctx context.Context, id uuid.UUID) error
	Find(ctx context.Context, filter PaymentFilter) ([]*ledger.Payment, error)
}

// OperatorPaymentRepository stores the operator-side mirror of payments.
type OperatorPaymentRepository interface {
	Create(ctx context.Context, op *ledger.OperatorPayment) error
	GetByPayment(ctx context.Context, paymentID uuid.UUID) (*ledger.OperatorPayment, error)
	// MarkPaid is a no-op for rows already PAID.
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, movementID uuid.UUID) error
	ListPending(ctx context.Context, dueUntil time.Time, agencyID *uuid.UUID) ([]*ledger.OperatorPayment, error)
}

// OperationRepository reads booked travel files.
type OperationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*ledger.Operation, error)
	Create(ctx context.Context, op *ledger.Operation) error
}

// ExchangeRateRepository is the append-only rate series.
type ExchangeRateRepository interface {
	Create(ctx context.Context, rate *ledger.ExchangeRate) error
	List(ctx context.Context) ([]*ledger.ExchangeRate, error)
	// EffectiveOn returns the latest rate with effective date on or before
	// date, or a NotFoundError.
	EffectiveOn(ctx context.Context, date time.Time) (*ledger.ExchangeRate, error)
	// Latest returns the most recent rate regardless of date, or a NotFoundError.
	Latest(ctx context.Context) (*ledger.ExchangeRate, error)
}

// RecurringPaymentRepository stores standing obligations.
type RecurringPaymentRepository interface {
	Create(ctx context.Context, rp *ledger.RecurringPayment) error
	ListDue(ctx context.Context, until time.Time, agencyID *uuid.UUID) ([]*ledger.RecurringPayment, error)
}

// LegacyCashMovementRepository writes the compatibility rows older reports read.
type LegacyCashMovementRepository interface {
	Create(ctx context.Context, m *ledger.LegacyCashMovement) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*ledger.LegacyCashMovement, error)
}
