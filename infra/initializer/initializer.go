package initializer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/travelagency/backoffice/infra"
	infra_cache "github.com/travelagency/backoffice/infra/cache"
	infra_eventbus "github.com/travelagency/backoffice/infra/eventbus"
	infra_provider "github.com/travelagency/backoffice/infra/provider"
	infra_repository "github.com/travelagency/backoffice/infra/repository"
	"github.com/travelagency/backoffice/pkg/app"
	"github.com/travelagency/backoffice/pkg/cache"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/eventbus"
)

const rateCachePrefix = "backoffice:rate:"

// InitializeDependencies builds the logger, opens and migrates the database
// and selects the rate cache and event bus drivers.
func InitializeDependencies(cfg *config.App) (
	deps *app.Deps,
	err error,
) {
	deps = &app.Deps{}
	logger := setupLogger(cfg.Log)
	deps.Logger = logger

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	if err := infra_repository.Migrate(context.Background(), db, logger); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		return nil, err
	}
	deps.Uow = infra_repository.NewUoW(db)

	deps.RateCache = initRateCache(cfg, logger)
	if cfg.ExchangeRate != nil && cfg.ExchangeRate.ApiKey != "" {
		deps.RateProvider = infra_provider.NewExchangeRateAPI(cfg.ExchangeRate, logger)
	}

	deps.EventBus, err = initEventBus(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	return deps, nil
}

// initRateCache uses redis when configured and reachable, memory otherwise.
func initRateCache(cfg *config.App, logger *slog.Logger) cache.RateCache {
	if cfg.ExchangeRate == nil || cfg.ExchangeRate.CacheRedisURL == "" {
		return infra_cache.NewMemoryCache()
	}
	c, err := infra_cache.NewRedisRateCache(cfg.ExchangeRate.CacheRedisURL, rateCachePrefix, logger)
	if err != nil {
		logger.Warn("Redis rate cache unavailable, using memory cache", "error", err)
		return infra_cache.NewMemoryCache()
	}
	return c
}

// initEventBus selects the bus driver. An explicit driver missing its
// address is a configuration error; an unreachable broker falls back to the
// in-memory bus so settlement keeps working without notifications leaving
// the process.
func initEventBus(cfg *config.App, logger *slog.Logger) (eventbus.Bus, error) {
	ebc := cfg.EventBus
	if ebc == nil {
		ebc = &config.EventBus{}
	}
	driver := strings.ToLower(strings.TrimSpace(ebc.Driver))
	switch driver {
	case "", "memory":
		return infra_eventbus.NewWithMemory(logger), nil
	case "redis":
		if ebc.RedisURL == "" {
			return nil, fmt.Errorf("event bus driver redis requires EVENT_BUS_REDIS_URL")
		}
		stream := ebc.Topic
		if stream == "" {
			stream = infra_eventbus.DefaultKafkaEventBusConfig().TopicPrefix
		}
		bus, err := infra_eventbus.NewWithRedis(ebc.RedisURL, stream, "backoffice", logger)
		if err != nil {
			logger.Warn("Redis event bus unavailable, falling back to memory", "error", err)
			return infra_eventbus.NewWithMemory(logger), nil
		}
		return bus, nil
	case "kafka":
		if strings.TrimSpace(ebc.KafkaBrokers) == "" {
			return nil, fmt.Errorf("event bus driver kafka requires EVENT_BUS_KAFKA_BROKERS")
		}
		kcfg := infra_eventbus.DefaultKafkaEventBusConfig()
		if ebc.Topic != "" {
			kcfg.TopicPrefix = ebc.Topic
		}
		bus, err := infra_eventbus.NewWithKafka(ebc.KafkaBrokers, logger, kcfg)
		if err != nil {
			logger.Warn("Kafka event bus unavailable, falling back to memory", "error", err)
			return infra_eventbus.NewWithMemory(logger), nil
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unsupported event bus driver %q", ebc.Driver)
	}
}
