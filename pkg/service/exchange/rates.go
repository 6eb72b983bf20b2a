package exchange

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
)

// Source tells how a rate was resolved.
type Source string

const (
	// SourceEffective is the latest rate effective on or before the date.
	SourceEffective Source = "EFFECTIVE"
	// SourceLatest is the globally most recent rate, used when nothing was
	// effective yet on the date.
	SourceLatest Source = "LATEST"
	// SourceFallback is the configured last-resort constant.
	SourceFallback Source = "FALLBACK"
)

// Resolution is a resolved ARS per USD rate.
type Resolution struct {
	Rate          decimal.Decimal
	EffectiveDate time.Time
	Source        Source
}

// RatePtr returns the rate in the shape movements carry it.
func (r Resolution) RatePtr() *decimal.Decimal {
	rate := r.Rate
	return &rate
}

// EffectiveRate returns the rate with the greatest effective date not after
// date. Among rates sharing an effective date the last recorded wins.
func EffectiveRate(rates []*ledger.ExchangeRate, date time.Time) (*ledger.ExchangeRate, bool) {
	var best *ledger.ExchangeRate
	for _, r := range rates {
		if r == nil || r.EffectiveDate.After(date) {
			continue
		}
		if best == nil || newer(r, best) {
			best = r
		}
	}
	return best, best != nil
}

// LatestRate returns the most recent rate regardless of date.
func LatestRate(rates []*ledger.ExchangeRate) (*ledger.ExchangeRate, bool) {
	var best *ledger.ExchangeRate
	for _, r := range rates {
		if r == nil {
			continue
		}
		if best == nil || newer(r, best) {
			best = r
		}
	}
	return best, best != nil
}

// Resolve applies the lookup order over a fixed rate table: effective on
// date, then latest, then UnresolvedExchangeRateError.
func Resolve(rates []*ledger.ExchangeRate, date time.Time) (Resolution, error) {
	if r, ok := EffectiveRate(rates, date); ok {
		return resolutionOf(r, date), nil
	}
	if r, ok := LatestRate(rates); ok {
		return resolutionOf(r, date), nil
	}
	return Resolution{}, &ledger.UnresolvedExchangeRateError{Date: date}
}

func resolutionOf(r *ledger.ExchangeRate, date time.Time) Resolution {
	src := SourceEffective
	if r.EffectiveDate.After(date) {
		src = SourceLatest
	}
	return Resolution{Rate: r.Rate, EffectiveDate: r.EffectiveDate, Source: src}
}

func newer(a, b *ledger.ExchangeRate) bool {
	if !a.EffectiveDate.Equal(b.EffectiveDate) {
		return a.EffectiveDate.After(b.EffectiveDate)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// Day truncates t to the start of its UTC day, the granularity of the series.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
