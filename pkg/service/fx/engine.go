// Package fx posts the realized exchange difference of a settled payment
// whose currency differs from the currency its operation was priced in.
package fx

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/service/exchange"
	"github.com/travelagency/backoffice/pkg/service/posting"
)

// DefaultTolerance is the smallest difference, in USD, worth posting.
var DefaultTolerance = decimal.RequireFromString("0.01")

// Input is a settled payment and its operation.
type Input struct {
	Payment   *ledger.Payment
	Operation *ledger.Operation
	// SettledAt is the payment date; the settlement rate is resolved for it.
	SettledAt time.Time
	// PostedAt stamps the FX movement; zero means now.
	PostedAt  time.Time
	CreatedBy uuid.UUID
}

// Difference is the computed exchange difference, in USD.
type Difference struct {
	BookingRate decimal.Decimal
	SettleRate  decimal.Decimal
	BookingBase decimal.Decimal
	SettleBase  decimal.Decimal
	// Delta is positive when the agency benefited.
	Delta decimal.Decimal
}

// Kind is FX_GAIN for a positive delta, FX_LOSS otherwise.
func (d Difference) Kind() ledger.MovementKind {
	if d.Delta.IsNegative() {
		return ledger.KindFXLoss
	}
	return ledger.KindFXGain
}

// Compute derives the difference for a payment of amount in currency. The
// amount is first expressed in ARS (converting USD at settleRate), then
// valued in USD at both rates. For income the agency gains when the
// settlement value exceeds the booking value; for expenses the sign flips.
func Compute(direction ledger.Direction, currency ledger.Currency, amount, bookingRate, settleRate decimal.Decimal) (Difference, error) {
	if !bookingRate.IsPositive() || !settleRate.IsPositive() {
		return Difference{}, ledger.NewValidationError("exchange_rate", "must be positive")
	}
	converted := amount
	if !currency.RequiresConversion() {
		converted = amount.Mul(settleRate)
	}
	bookingBase := converted.Div(bookingRate)
	settleBase := converted.Div(settleRate)
	delta := settleBase.Sub(bookingBase)
	if direction == ledger.DirectionExpense {
		delta = delta.Neg()
	}
	return Difference{
		BookingRate: bookingRate,
		SettleRate:  settleRate,
		BookingBase: bookingBase,
		SettleBase:  settleBase,
		Delta:       delta,
	}, nil
}

// Engine posts FX_GAIN and FX_LOSS movements.
type Engine struct {
	rates     exchange.Resolver
	poster    *posting.Poster
	tolerance decimal.Decimal
	logger    *slog.Logger
}

// New creates an Engine.
func New(rates exchange.Resolver, poster *posting.Poster, tolerance decimal.Decimal, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	return &Engine{rates: rates, poster: poster, tolerance: tolerance, logger: logger.With("service", "fx")}
}

// Applies reports whether the payment is settled in a currency other than
// its operation's home currency.
func Applies(p *ledger.Payment, op *ledger.Operation) bool {
	if p == nil || op == nil {
		return false
	}
	return p.Currency != op.HomeCurrency(p.PayerType)
}

// Apply posts the exchange difference for in. It returns nil without error
// when there is nothing to post: no operation, same currency, a delta below
// tolerance, or an income payment whose booking rate cannot be resolved.
func (e *Engine) Apply(ctx context.Context, in Input) (*ledger.LedgerMovement, error) {
	if !Applies(in.Payment, in.Operation) {
		return nil, nil
	}
	p, op := in.Payment, in.Operation
	logger := e.logger.With("payment_id", p.ID, "operation_id", op.ID)
	operatorLeg := p.PayerType == ledger.PayerOperator

	bookingRate, err := e.bookingRate(ctx, op, operatorLeg)
	if err != nil {
		if errors.Is(err, ledger.ErrUnresolvedExchangeRate) && !operatorLeg {
			logger.Warn("FX difference skipped: booking rate unresolved", "error", err)
			return nil, nil
		}
		logger.Error("FX difference failed: booking rate", "error", err)
		return nil, err
	}
	settle, err := e.resolve(ctx, in.SettledAt, operatorLeg)
	if err != nil {
		if errors.Is(err, ledger.ErrUnresolvedExchangeRate) && !operatorLeg {
			logger.Warn("FX difference skipped: settlement rate unresolved", "error", err)
			return nil, nil
		}
		logger.Error("FX difference failed: settlement rate", "error", err)
		return nil, err
	}

	diff, err := Compute(p.Direction, p.Currency, p.Amount, bookingRate, settle.Rate)
	if err != nil {
		return nil, err
	}
	if diff.Delta.Abs().LessThan(e.tolerance) {
		logger.Debug("FX difference below tolerance", "delta", diff.Delta.String())
		return nil, nil
	}

	kind := diff.Kind()
	code := ledger.CodeFXGain
	if kind == ledger.KindFXLoss {
		code = ledger.CodeFXLoss
	}
	agencyID := op.AgencyID
	account, err := e.poster.LeafAccount(ctx, code, ledger.BaseCurrency, &agencyID)
	if err != nil {
		logger.Error("FX difference failed: leaf account", "error", err)
		return nil, err
	}
	opID, payID := op.ID, p.ID
	m, err := e.poster.Post(ctx, posting.Entry{
		Account:     account,
		Kind:        kind,
		Currency:    ledger.BaseCurrency,
		Amount:      diff.Delta.Abs(),
		OperationID: &opID,
		PaymentID:   &payID,
		OperatorID:  p.OperatorID,
		Notes:       "FX booking " + diff.BookingRate.String() + " settlement " + diff.SettleRate.String(),
		CreatedBy:   in.CreatedBy,
		CreatedAt:   in.PostedAt,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("FX difference posted", "kind", kind, "amount", m.Amount.String(), "movement_id", m.ID)
	return m, nil
}

func (e *Engine) bookingRate(ctx context.Context, op *ledger.Operation, operatorLeg bool) (decimal.Decimal, error) {
	if op.ExchangeRate != nil && op.ExchangeRate.IsPositive() {
		return *op.ExchangeRate, nil
	}
	res, err := e.resolve(ctx, op.BookedAt, operatorLeg)
	if err != nil {
		return decimal.Zero, err
	}
	return res.Rate, nil
}

func (e *Engine) resolve(ctx context.Context, date time.Time, withFallback bool) (exchange.Resolution, error) {
	if withFallback {
		return e.rates.ResolveWithFallback(ctx, date)
	}
	return e.rates.Resolve(ctx, date)
}
