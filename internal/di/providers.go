package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	domrepo "QuantLens/internal/domain/repository"
	domsvc "QuantLens/internal/domain/service"
	"QuantLens/internal/handler/api"
	"QuantLens/internal/handler/ws"
	"QuantLens/internal/middleware"
	internalrepo "QuantLens/internal/repository"
	"QuantLens/internal/service/ratelimit"
	"QuantLens/internal/usecase"
	"QuantLens/pkg/cache"
	pkgch "QuantLens/pkg/clickhouse"
	"QuantLens/pkg/config"
	xhttp "QuantLens/pkg/http"
	pkgkafka "QuantLens/pkg/kafka"
	applogger "QuantLens/pkg/logger"
	"QuantLens/pkg/metrics"
	"QuantLens/pkg/queue"
	"QuantLens/pkg/server"
)

// ProvideLogger builds the application logger. Aggregated error logs go to Kafka when collection is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(applogger.String("service", "quantlens"), applogger.String("env", cfg.Environment))
	if cfg.Logging.Collect && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        "quantlens",
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Logging.Topic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client and applies the schema. Nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database, cfg.Ledger.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRedisCache connects to Redis. Nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix("quantlens"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// CacheService pairs the cache used by the service with its closer.
type CacheService struct {
	cache.Service
	io.Closer
}

// ProvideCache layers an in-process cache over Redis, or uses memory alone without Redis.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) CacheService {
	if rc == nil {
		mc := cache.NewMemoryCache(cache.WithMemoryDefaultTTL(cfg.Analytics.CacheTTL))
		return CacheService{Service: mc, Closer: mc}
	}
	lc := cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(cfg.Analytics.CacheTTL))
	return CacheService{Service: lc, Closer: lc}
}

// ProvideKafkaProducer creates a Kafka producer. Nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideLedgerStore selects the ledger persistence backend.
func ProvideLedgerStore(cfg *config.Config, ch *pkgch.Client, rc *cache.RedisCache, l *applogger.Logger) (domrepo.LedgerStore, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerRedis:
		if rc == nil {
			return nil, errors.New("ledger: redis backend without redis client")
		}
		return internalrepo.NewRedisLedgerStore(rc.Client(), cfg.Ledger.Key, cfg.Ledger.MaxRecords, l), nil
	case config.LedgerClickHouse:
		if ch == nil {
			return nil, errors.New("ledger: clickhouse backend without clickhouse client")
		}
		return internalrepo.NewCHLedgerStore(ch, cfg.Ledger.Table, l), nil
	default:
		return internalrepo.NewMemoryLedgerStore(), nil
	}
}

// ProvideModelStore persists trained models in Redis when analytics.model.persist is set.
func ProvideModelStore(cfg *config.Config, rc *cache.RedisCache) domrepo.ModelStore {
	if !cfg.Analytics.Model.Persist || rc == nil {
		return nil
	}
	return internalrepo.NewCacheModelStore(rc, cfg.Analytics.Model.Key, cfg.Analytics.Model.TTL)
}

// ProvideMarketData serves candles from ClickHouse.
func ProvideMarketData(ch *pkgch.Client, l *applogger.Logger) (domrepo.MarketDataProvider, error) {
	if ch == nil {
		return nil, errors.New("market data: clickhouse.enabled is required")
	}
	return internalrepo.NewCHMarketData(ch, l), nil
}

// ProvideHub creates the websocket recommendation hub.
func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvidePublishPipeline buffers Kafka recommendation publishes for redelivery. Nil without Kafka.
func ProvidePublishPipeline(cfg *config.Config, producer *pkgkafka.Producer, m domrepo.Metrics, l *applogger.Logger) *middleware.PublishPipeline {
	if producer == nil {
		return nil
	}
	kp := internalrepo.NewKafkaRecommendationPublisher(producer, cfg.Kafka.Topics.Recommendations, l)
	return middleware.NewPublishPipeline(kp,
		middleware.WithBufferSize(cfg.Kafka.Producer.RetryBuffer),
		middleware.WithPublishTimeout(cfg.Kafka.Producer.WriteTimeout),
		middleware.WithMetrics(m),
		middleware.WithLogger(l),
	)
}

// ProvideRecommendationPublisher fans scan results out to the hub and, when enabled, Kafka.
func ProvideRecommendationPublisher(hub *ws.Hub, pipeline *middleware.PublishPipeline) domrepo.RecommendationPublisher {
	fan := internalrepo.FanoutPublisher{hub}
	if pipeline != nil {
		fan = append(fan, pipeline)
	}
	return fan
}

// ProvideSession loads the ledger through the store and opens the shared session.
func ProvideSession(cfg *config.Config, store domrepo.LedgerStore, l *applogger.Logger) *usecase.Session {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return usecase.OpenSession(ctx, store, cfg.Ledger.MaxRecords, l)
}

// ProvideIntelligenceConfig maps the analytics section onto the service config.
func ProvideIntelligenceConfig(cfg *config.Config) usecase.IntelligenceConfig {
	a := cfg.Analytics
	return usecase.IntelligenceConfig{
		Benchmark: a.Benchmark,
		Peers:     a.Peers,
		Forest:    a.Forest,
		Training:  a.Training,
		Adaptive:  a.Adaptive,
		Anomaly:   a.Anomaly,
		Recommend: a.Recommend,
		CacheTTL:  a.CacheTTL,
	}
}

// ProvideIntelligenceService assembles the intelligence facade.
func ProvideIntelligenceService(
	icfg usecase.IntelligenceConfig,
	session *usecase.Session,
	market domrepo.MarketDataProvider,
	c CacheService,
	models domrepo.ModelStore,
	pub domrepo.RecommendationPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.IntelligenceService {
	opts := []usecase.ServiceOption{
		usecase.WithCache(c.Service),
		usecase.WithPublisher(pub),
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
	}
	if models != nil {
		opts = append(opts, usecase.WithModelStore(models))
	}
	return usecase.NewIntelligenceService(icfg, session, market, opts...)
}

// ProvideQueue creates the Redis job queue. Nil when disabled.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:      cfg.Queue.Workers,
		RetryLimit:   3,
		RetryDelay:   30 * time.Second,
		PollInterval: cfg.Queue.Poll,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix("quantlens:queue:"+cfg.Queue.Name))
}

// ProvideRetrainJob creates the background training job.
func ProvideRetrainJob(intel *usecase.IntelligenceService, l *applogger.Logger) queue.Job {
	return usecase.NewRetrainJob(intel, l)
}

// ProvideRetrainScheduler enqueues training requests when the queue is enabled.
func ProvideRetrainScheduler(q *queue.RedisQueue) domsvc.RetrainScheduler {
	if q == nil {
		return nil
	}
	return usecase.NewQueueRetrainScheduler(q)
}

// ProvideIntelligenceHandler creates the REST handler with the training rate limit.
func ProvideIntelligenceHandler(cfg *config.Config, intel *usecase.IntelligenceService, sched domsvc.RetrainScheduler, l *applogger.Logger) *api.IntelligenceHandler {
	opts := []api.HandlerOption{api.WithLogger(l)}
	if sched != nil {
		opts = append(opts, api.WithScheduler(sched))
	}
	if n := cfg.Server.TrainRateLimit; n > 0 {
		opts = append(opts, api.WithTrainLimiter(ratelimit.New(float64(n), float64(n)/60)))
	}
	return api.NewIntelligenceHandler(intel, opts...)
}

// ProvideCandlesHandler exposes stored candles.
func ProvideCandlesHandler(market domrepo.MarketDataProvider, l *applogger.Logger) *api.CandlesHandler {
	return api.NewCandlesHandler(l, usecase.NewCandlesUseCase(market))
}

// ProvideWSHandler exposes the recommendation stream.
func ProvideWSHandler(hub *ws.Hub) *ws.Handler {
	return ws.NewHandler(hub)
}

// ProvideHTTPServer registers every handler on the Echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, intel *api.IntelligenceHandler, candles *api.CandlesHandler, stream *ws.Handler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{intel, candles, stream},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideKafkaConsumer creates the outcome consumer. Nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewLoggingHook(l))
	return consumer, nil
}

// ProvideOutcomeHandler consumes realized outcomes into the ledger.
func ProvideOutcomeHandler(cfg *config.Config, intel *usecase.IntelligenceService, m domrepo.Metrics) pkgkafka.MessageHandler {
	return usecase.NewOutcomeHandler(cfg.Kafka.Topics.Outcomes, intel, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	intel *usecase.IntelligenceService,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	pipeline *middleware.PublishPipeline,
	consumer *pkgkafka.Consumer,
	outcomes pkgkafka.MessageHandler,
	q *queue.RedisQueue,
	retrain queue.Job,
	producer *pkgkafka.Producer,
	c CacheService,
	ch *pkgch.Client,
) *server.App {
	return server.New(server.Deps{
		Config:   cfg,
		Logger:   l,
		Intel:    intel,
		HTTP:     httpServer,
		Hub:      hub,
		Pipeline: pipeline,
		Consumer: consumer,
		Outcomes: outcomes,
		Queue:    q,
		Retrain:  retrain,
		Producer: producer,
		Cache:    c.Closer,
		CH:       ch,
	})
}
