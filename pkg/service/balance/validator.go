package balance

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
)

// DefaultTolerance is how far below zero a settlement account may go.
var DefaultTolerance = decimal.RequireFromString("0.01")

// Validator rejects outflows that would overdraw a settlement account.
type Validator struct {
	calc      *Calculator
	tolerance decimal.Decimal
	logger    *slog.Logger
}

// NewValidator creates a Validator. A negative tolerance is treated as zero.
func NewValidator(calc *Calculator, tolerance decimal.Decimal, logger *slog.Logger) *Validator {
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{calc: calc, tolerance: tolerance, logger: logger}
}

// Guards reports whether posting kind on account is subject to the check.
func Guards(account *ledger.FinancialAccount, kind ledger.MovementKind) bool {
	if account == nil || !account.Type.Settlement() {
		return false
	}
	return kind == ledger.KindExpense || kind == ledger.KindOperatorPayment
}

// Check returns an InsufficientFundsError when posting amount of kind on
// account would leave it below minus the tolerance. Accounts and kinds the
// guard does not cover always pass.
func (v *Validator) Check(
	ctx context.Context,
	account *ledger.FinancialAccount,
	kind ledger.MovementKind,
	currency ledger.Currency,
	amount decimal.Decimal,
) error {
	if !Guards(account, kind) {
		return nil
	}
	if currency != account.Currency {
		return ledger.NewValidationError("currency",
			"movement in "+currency.String()+" on "+account.Currency.String()+" account")
	}

	bal, err := v.calc.BalanceOf(ctx, account, v.calc.now().UTC())
	if err != nil {
		return err
	}
	after := bal.Amount.Add(ledger.SignedDelta(bal.Category, kind, amount))
	if after.GreaterThanOrEqual(v.tolerance.Neg()) {
		return nil
	}
	shortfall := after.Neg()
	v.logger.Warn("Insufficient funds on settlement account",
		"account_id", account.ID,
		"currency", account.Currency,
		"balance", bal.Amount.String(),
		"requested", amount.String(),
		"shortfall", shortfall.String(),
	)
	return &ledger.InsufficientFundsError{
		AccountID: account.ID,
		Currency:  account.Currency,
		Balance:   bal.Amount,
		Requested: amount,
		Shortfall: shortfall,
	}
}
