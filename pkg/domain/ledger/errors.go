package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("resource not found")
	// ErrInsufficientFunds is matched by every InsufficientFundsError.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnresolvedExchangeRate is matched by every UnresolvedExchangeRateError.
	ErrUnresolvedExchangeRate = errors.New("exchange rate unresolved")
	// ErrPartialPosting is matched by every PartialPostingError.
	ErrPartialPosting = errors.New("partial posting")
	// ErrSettlementInProgress is returned to a concurrent settlement attempt
	// that lost the PENDING to PAID race before the winner finished posting.
	ErrSettlementInProgress = errors.New("settlement already in progress")
	// ErrImmutableMovement is returned by stores asked to change a posted movement.
	ErrImmutableMovement = errors.New("ledger movements are append-only")
)

// ValidationError reports bad or missing input. Nothing was written.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing payment, account, operation or chart leaf.
type NotFoundError struct {
	Entity string
	Key    string
}

// NewNotFoundError builds a NotFoundError keyed by id.
func NewNotFoundError(entity string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: id.String()}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientFundsError carries how much the settlement account is short.
type InsufficientFundsError struct {
	AccountID uuid.UUID
	Currency  Currency
	Balance   decimal.Decimal
	Requested decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: balance %s %s, requested %s, short %s",
		e.AccountID, e.Balance.String(), e.Currency, e.Requested.String(), e.Shortfall.String())
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// UnresolvedExchangeRateError means the rate series had nothing usable.
type UnresolvedExchangeRateError struct {
	Date time.Time
}

func (e *UnresolvedExchangeRateError) Error() string {
	return fmt.Sprintf("no exchange rate available for %s", e.Date.Format(time.DateOnly))
}

func (e *UnresolvedExchangeRateError) Is(target error) bool {
	return target == ErrUnresolvedExchangeRate
}

// PartialPostingError is critical: the settlement-account movement failed
// after earlier movements were committed. Those movements are kept; retrying
// the settlement runs the correction branch and posts the missing movement.
type PartialPostingError struct {
	PaymentID        uuid.UUID
	AccountID        uuid.UUID
	ResultMovementID uuid.UUID
	Err              error
}

func (e *PartialPostingError) Error() string {
	return fmt.Sprintf("CRITICAL: payment %s settled but settlement-account movement on %s failed (result movement %s kept): %v",
		e.PaymentID, e.AccountID, e.ResultMovementID, e.Err)
}

func (e *PartialPostingError) Unwrap() error { return e.Err }

func (e *PartialPostingError) Is(target error) bool { return target == ErrPartialPosting }
