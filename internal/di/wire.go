//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"QuantLens/pkg/config"
	"QuantLens/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideCache,

		// Repositories
		ProvideLedgerStore,
		ProvideModelStore,
		ProvideMarketData,
		ProvideHub,
		ProvidePublishPipeline,
		ProvideRecommendationPublisher,

		// Use cases
		ProvideSession,
		ProvideIntelligenceConfig,
		ProvideIntelligenceService,
		ProvideQueue,
		ProvideRetrainJob,
		ProvideRetrainScheduler,
		ProvideOutcomeHandler,
		ProvideKafkaConsumer,

		// Transport
		ProvideIntelligenceHandler,
		ProvideCandlesHandler,
		ProvideWSHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
