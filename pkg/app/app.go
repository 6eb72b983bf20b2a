package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/cache"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/eventbus"
	"github.com/travelagency/backoffice/pkg/repository"
	"github.com/travelagency/backoffice/pkg/service/balance"
	"github.com/travelagency/backoffice/pkg/service/exchange"
	"github.com/travelagency/backoffice/pkg/service/fx"
	"github.com/travelagency/backoffice/pkg/service/posting"
	"github.com/travelagency/backoffice/pkg/service/report"
	"github.com/travelagency/backoffice/pkg/service/settlement"
)

// Deps contains the infrastructure the services are built on.
type Deps struct {
	Uow       repository.UnitOfWork
	EventBus  eventbus.Bus
	RateCache cache.RateCache
	// RateProvider feeds ImportRate. Nil disables importing.
	RateProvider exchange.RateProvider
	Logger       *slog.Logger
}

type App struct {
	Deps              *Deps
	Config            *config.App
	ExchangeService   *exchange.Service
	Poster            *posting.Poster
	BalanceService    *balance.Calculator
	Validator         *balance.Validator
	FXEngine          *fx.Engine
	SettlementService *settlement.Service
	ReportService     *report.Service
}

func New(deps *Deps, cfg *config.App) *App {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
		deps.Logger = logger
	}
	app := &App{
		Deps:   deps,
		Config: cfg,
	}

	var exchangeOpts []exchange.Option
	balanceTolerance, fxTolerance := balance.DefaultTolerance, fx.DefaultTolerance
	staleAfter := settlement.DefaultStaleAfter
	if cfg != nil && cfg.ExchangeRate != nil {
		exchangeOpts = append(exchangeOpts, exchange.WithFallback(cfg.ExchangeRate.Fallback))
		if deps.RateCache != nil {
			exchangeOpts = append(exchangeOpts, exchange.WithCache(deps.RateCache, cfg.ExchangeRate.CacheTTL))
		}
	} else if deps.RateCache != nil {
		exchangeOpts = append(exchangeOpts, exchange.WithCache(deps.RateCache, exchange.DefaultCacheTTL))
	}
	if cfg != nil && cfg.Ledger != nil {
		balanceTolerance = nonNegative(cfg.Ledger.BalanceTolerance)
		fxTolerance = nonNegative(cfg.Ledger.FXTolerance)
		if cfg.Ledger.SettlementStaleAfter > 0 {
			staleAfter = cfg.Ledger.SettlementStaleAfter
		}
	}

	app.ExchangeService = exchange.New(deps.Uow, logger, exchangeOpts...)
	app.Poster = posting.New(deps.Uow, logger)
	app.BalanceService = balance.NewCalculator(deps.Uow, logger)
	app.Validator = balance.NewValidator(app.BalanceService, balanceTolerance, logger)
	app.FXEngine = fx.New(app.ExchangeService, app.Poster, fxTolerance, logger)
	app.SettlementService = settlement.New(settlement.Deps{
		Uow:       deps.Uow,
		Poster:    app.Poster,
		Validator: app.Validator,
		FX:        app.FXEngine,
		Rates:     app.ExchangeService,
		Bus:       deps.EventBus,
		Logger:    logger,
	}).WithStaleAfter(staleAfter)
	app.ReportService = report.New(deps.Uow, app.BalanceService, app.ExchangeService, logger)

	if deps.EventBus != nil {
		app.setupEventBus()
	}
	return app
}

// ErrNoRateProvider is returned by ImportRate when no provider is configured.
var ErrNoRateProvider = errors.New("no exchange rate provider configured")

// ImportRate appends the provider's current quote to the rate series.
func (a *App) ImportRate(ctx context.Context) (*ledger.ExchangeRate, error) {
	if a.Deps.RateProvider == nil {
		return nil, ErrNoRateProvider
	}
	return a.ExchangeService.Import(ctx, a.Deps.RateProvider)
}

// Settle settles a payment and runs its follow-up tasks. Follow-up failures
// are reported in the outcomes, never as the returned error.
func (a *App) Settle(ctx context.Context, cmd settlement.Command) (*settlement.Result, []settlement.FollowUpOutcome, error) {
	res, err := a.SettlementService.Settle(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	return res, settlement.RunFollowUps(ctx, a.Deps.Logger, res.FollowUps), nil
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
