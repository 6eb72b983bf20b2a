package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseEquivalent converts amount to the unit of account. Base-currency
// amounts pass through and must not carry a rate; converted-currency amounts
// are divided by the ARS per USD rate, which is mandatory.
func BaseEquivalent(c Currency, amount decimal.Decimal, rate *decimal.Decimal) (decimal.Decimal, error) {
	if !c.RequiresConversion() {
		if rate != nil {
			return decimal.Zero, NewValidationError("exchange_rate", "must be empty for "+c.String())
		}
		return amount, nil
	}
	if rate == nil {
		return decimal.Zero, &UnresolvedExchangeRateError{Date: time.Time{}}
	}
	if !rate.IsPositive() {
		return decimal.Zero, NewValidationError("exchange_rate", "must be positive")
	}
	return amount.Div(*rate), nil
}

// FromBase converts a base-currency amount into c at rate.
func FromBase(c Currency, base decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	if !c.RequiresConversion() {
		return base
	}
	return base.Mul(rate)
}

// Round2 rounds for presentation only; accumulation stays unrounded.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
