package initializer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	infra_cache "github.com/travelagency/backoffice/infra/cache"
	infra_eventbus "github.com/travelagency/backoffice/infra/eventbus"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/testutils"
)

func TestInitEventBus_DefaultsToMemory(t *testing.T) {
	for _, cfg := range []*config.App{
		{},
		{EventBus: &config.EventBus{Driver: ""}},
		{EventBus: &config.EventBus{Driver: "Memory"}},
	} {
		bus, err := initEventBus(cfg, testutils.DiscardLogger())
		require.NoError(t, err)
		require.IsType(t, &infra_eventbus.MemoryEventBus{}, bus)
	}
}

func TestInitEventBus_ExplicitRedisRequiresURL(t *testing.T) {
	cfg := &config.App{EventBus: &config.EventBus{Driver: "redis"}}
	_, err := initEventBus(cfg, testutils.DiscardLogger())
	require.Error(t, err)
}

func TestInitEventBus_RedisConnectionErrorFallsBackToMemory(t *testing.T) {
	cfg := &config.App{
		EventBus: &config.EventBus{Driver: "redis", RedisURL: "redis://127.0.0.1:1", Topic: "settlements"},
	}
	bus, err := initEventBus(cfg, testutils.DiscardLogger())
	require.NoError(t, err)
	require.IsType(t, &infra_eventbus.MemoryEventBus{}, bus)
}

func TestInitEventBus_ExplicitKafkaRequiresBrokers(t *testing.T) {
	cfg := &config.App{EventBus: &config.EventBus{Driver: "kafka", KafkaBrokers: " "}}
	_, err := initEventBus(cfg, testutils.DiscardLogger())
	require.Error(t, err)
}

func TestInitEventBus_KafkaConnectionErrorFallsBackToMemory(t *testing.T) {
	cfg := &config.App{EventBus: &config.EventBus{Driver: "kafka", KafkaBrokers: "127.0.0.1:1"}}
	bus, err := initEventBus(cfg, testutils.DiscardLogger())
	require.NoError(t, err)
	require.IsType(t, &infra_eventbus.MemoryEventBus{}, bus)
}

func TestInitEventBus_UnsupportedDriverErrors(t *testing.T) {
	cfg := &config.App{EventBus: &config.EventBus{Driver: "nope"}}
	_, err := initEventBus(cfg, testutils.DiscardLogger())
	require.Error(t, err)
}

func TestInitRateCache(t *testing.T) {
	c := initRateCache(&config.App{}, testutils.DiscardLogger())
	assert.IsType(t, &infra_cache.MemoryCache{}, c)

	c = initRateCache(&config.App{ExchangeRate: &config.ExchangeRate{CacheRedisURL: "redis://127.0.0.1:1"}}, testutils.DiscardLogger())
	assert.IsType(t, &infra_cache.MemoryCache{}, c)
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Log{Format: "json", Level: -4})
	logger.Info("Settle successful", "payment_id", "p-1")
	assert.Contains(t, buf.String(), `"payment_id":"p-1"`)
	assert.Contains(t, buf.String(), "Settle successful")
}
