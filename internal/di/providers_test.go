package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantLens/internal/domain/models"
	"QuantLens/internal/handler/ws"
	internalrepo "QuantLens/internal/repository"
	"QuantLens/pkg/cache"
	"QuantLens/pkg/config"
)

func testConfig(t *testing.T, yml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yml))
	require.NoError(t, err)
	return cfg
}

func TestProvideLedgerStore_DefaultsToMemory(t *testing.T) {
	store, err := ProvideLedgerStore(testConfig(t, "environment: test\n"), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "none", store.Backend())
	assert.IsType(t, &internalrepo.MemoryLedgerStore{}, store)
}

func TestProvideLedgerStore_MissingClient(t *testing.T) {
	cfg := testConfig(t, "environment: test\n")
	cfg.Ledger.Backend = config.LedgerRedis
	_, err := ProvideLedgerStore(cfg, nil, nil, nil)
	assert.Error(t, err)

	cfg.Ledger.Backend = config.LedgerClickHouse
	_, err = ProvideLedgerStore(cfg, nil, nil, nil)
	assert.Error(t, err)
}

func TestProvideCache_MemoryWithoutRedis(t *testing.T) {
	c := ProvideCache(testConfig(t, "environment: test\n"), nil)
	defer c.Close()
	assert.IsType(t, &cache.MemoryCache{}, c.Service)

	ok, err := c.TryLock(context.Background(), "k", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProvideModelStore_DisabledIsNil(t *testing.T) {
	assert.Nil(t, ProvideModelStore(testConfig(t, "environment: test\n"), nil))
}

func TestProvideMarketData_RequiresClickHouse(t *testing.T) {
	_, err := ProvideMarketData(nil, nil)
	assert.Error(t, err)
}

func TestProvideRecommendationPublisher_HubOnly(t *testing.T) {
	hub := ws.NewHub(nil)
	pub := ProvideRecommendationPublisher(hub, nil)
	fan, ok := pub.(internalrepo.FanoutPublisher)
	require.True(t, ok)
	assert.Len(t, fan, 1)
	assert.NoError(t, pub.PublishScan(context.Background(), &models.ScanResult{ID: "s"}))
}

func TestProvidePublishPipeline_NoKafka(t *testing.T) {
	assert.Nil(t, ProvidePublishPipeline(testConfig(t, "environment: test\n"), nil, nil, nil))
}

func TestProvideRetrainScheduler_NoQueue(t *testing.T) {
	assert.Nil(t, ProvideRetrainScheduler(nil))
}

func TestProvideIntelligenceConfig(t *testing.T) {
	cfg := testConfig(t, "environment: test\nanalytics:\n  benchmark: QQQ\n  peers: [SPY]\n")
	icfg := ProvideIntelligenceConfig(cfg)
	assert.Equal(t, "QQQ", icfg.Benchmark)
	assert.Equal(t, []string{"SPY"}, icfg.Peers)
	assert.Equal(t, cfg.Analytics.CacheTTL, icfg.CacheTTL)
}
