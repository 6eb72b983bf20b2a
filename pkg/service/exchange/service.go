// Package exchange resolves the ARS per USD rate applicable on a date and
// maintains the append-only rate series.
//
// Lookups go to the store (or a fixed table via Resolve) in this order: the
// latest rate effective on or before the date, then the globally most recent
// rate. An empty series is unresolved; only ResolveWithFallback substitutes
// the configured last-resort constant, and only the operator FX leg calls it.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/cache"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is used when a cache is configured without a TTL.
const DefaultCacheTTL = 5 * time.Minute

// Resolver is what the poster, FX engine and settlement depend on.
type Resolver interface {
	Resolve(ctx context.Context, date time.Time) (Resolution, error)
	ResolveWithFallback(ctx context.Context, date time.Time) (Resolution, error)
}

// Service resolves and records exchange rates.
type Service struct {
	uow      repository.UnitOfWork
	logger   *slog.Logger
	cache    cache.RateCache
	cacheTTL time.Duration
	fallback decimal.Decimal
	group    singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithCache caches resolved rates per lookup day.
func WithCache(c cache.RateCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		s.cacheTTL = ttl
	}
}

// WithFallback sets the last-resort rate. Zero or negative disables it.
func WithFallback(rate decimal.Decimal) Option {
	return func(s *Service) { s.fallback = rate }
}

// New creates an exchange Service.
func New(uow repository.UnitOfWork, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{uow: uow, logger: logger.With("service", "exchange")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the rate for date without the last-resort constant.
func (s *Service) Resolve(ctx context.Context, date time.Time) (Resolution, error) {
	day := Day(date)
	key := day.Format(time.DateOnly)

	if s.cache != nil {
		if rate, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("Rate cache read failed", "key", key, "error", err)
		} else if rate != nil {
			return resolutionOf(rate, day), nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		rate, err := s.lookup(ctx, day)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, rate, s.cacheTTL); err != nil {
				s.logger.Warn("Rate cache write failed", "key", key, "error", err)
			}
		}
		return rate, nil
	})
	if err != nil {
		return Resolution{}, err
	}
	return resolutionOf(v.(*ledger.ExchangeRate), day), nil
}

func (s *Service) lookup(ctx context.Context, day time.Time) (*ledger.ExchangeRate, error) {
	repo, err := s.uow.ExchangeRateRepository()
	if err != nil {
		return nil, err
	}
	rate, err := repo.EffectiveOn(ctx, day)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}
	rate, err = repo.Latest(ctx)
	if err == nil {
		s.logger.Warn("No rate effective on date, using latest known rate",
			"date", day.Format(time.DateOnly), "latest_effective", rate.EffectiveDate.Format(time.DateOnly))
		return rate, nil
	}
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, &ledger.UnresolvedExchangeRateError{Date: day}
	}
	return nil, err
}

// ResolveWithFallback is Resolve plus the configured last-resort constant.
func (s *Service) ResolveWithFallback(ctx context.Context, date time.Time) (Resolution, error) {
	res, err := s.Resolve(ctx, date)
	if err == nil || !errors.Is(err, ledger.ErrUnresolvedExchangeRate) {
		return res, err
	}
	if !s.fallback.IsPositive() {
		return Resolution{}, err
	}
	s.logger.Warn("Exchange rate series empty, using configured fallback rate",
		"date", Day(date).Format(time.DateOnly), "fallback", s.fallback.String())
	return Resolution{Rate: s.fallback, Source: SourceFallback}, nil
}

// Record appends a rate to the series.
func (s *Service) Record(ctx context.Context, effectiveDate time.Time, rate decimal.Decimal, source string) (*ledger.ExchangeRate, error) {
	logger := s.logger.With("effective_date", effectiveDate.Format(time.DateOnly), "rate", rate.String())
	logger.Info("Record exchange rate started")
	if effectiveDate.IsZero() {
		return nil, ledger.NewValidationError("effective_date", "is required")
	}
	if !rate.IsPositive() {
		return nil, ledger.NewValidationError("rate", "must be positive")
	}

	repo, err := s.uow.ExchangeRateRepository()
	if err != nil {
		logger.Error("Record exchange rate failed: repository error", "error", err)
		return nil, err
	}
	r := &ledger.ExchangeRate{
		EffectiveDate: Day(effectiveDate),
		Rate:          rate,
		Source:        source,
	}
	if err := repo.Create(ctx, r); err != nil {
		logger.Error("Record exchange rate failed", "error", err)
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Clear(ctx); err != nil {
			logger.Warn("Rate cache clear failed", "error", err)
		}
	}
	logger.Info("Record exchange rate successful", "id", r.ID)
	return r, nil
}

// List returns the whole series ordered by effective date.
func (s *Service) List(ctx context.Context) ([]*ledger.ExchangeRate, error) {
	repo, err := s.uow.ExchangeRateRepository()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx)
}

var _ Resolver = (*Service)(nil)

// Static resolves against a fixed rate table. Handy for tests and for
// replaying history deterministically.
type Static struct {
	Rates    []*ledger.ExchangeRate
	Fallback decimal.Decimal
}

func (s Static) Resolve(_ context.Context, date time.Time) (Resolution, error) {
	return Resolve(s.Rates, Day(date))
}

func (s Static) ResolveWithFallback(ctx context.Context, date time.Time) (Resolution, error) {
	res, err := s.Resolve(ctx, date)
	if err != nil && errors.Is(err, ledger.ErrUnresolvedExchangeRate) && s.Fallback.IsPositive() {
		return Resolution{Rate: s.Fallback, Source: SourceFallback}, nil
	}
	return res, err
}

var _ Resolver = Static{}

// Quote is a rate as an external provider reports it.
type Quote struct {
	Rate          decimal.Decimal
	EffectiveDate time.Time
}

// RateProvider fetches the current ARS per USD quote from outside.
type RateProvider interface {
	Name() string
	FetchQuote(ctx context.Context) (Quote, error)
}

// Import fetches a quote from p and appends it to the series tagged with the
// provider's name.
func (s *Service) Import(ctx context.Context, p RateProvider) (*ledger.ExchangeRate, error) {
	q, err := p.FetchQuote(ctx)
	if err != nil {
		s.logger.Error("Import exchange rate failed", "provider", p.Name(), "error", err)
		return nil, fmt.Errorf("fetch %s quote: %w", p.Name(), err)
	}
	return s.Record(ctx, q.EffectiveDate, q.Rate, p.Name())
}
