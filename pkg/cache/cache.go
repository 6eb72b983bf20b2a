// Package cache declares the rate cache used by the exchange resolver.
package cache

import (
	"context"
	"time"

	"github.com/travelagency/backoffice/pkg/domain/ledger"
)

// RateCache stores resolved exchange rates keyed by lookup day.
// Get returns (nil, nil) on a miss.
type RateCache interface {
	Get(ctx context.Context, key string) (*ledger.ExchangeRate, error)
	Set(ctx context.Context, key string, rate *ledger.ExchangeRate, ttl time.Duration) error
	// Clear drops every entry. Called whenever the series changes.
	Clear(ctx context.Context) error
}
