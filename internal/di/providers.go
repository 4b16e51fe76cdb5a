package di

import (
	"context"
	"fmt"
	"time"

	domain "SignalForge/internal/domain/repository"
	"SignalForge/internal/handler/api"
	"SignalForge/internal/queue"
	"SignalForge/internal/repository"
	"SignalForge/internal/service/binance"
	"SignalForge/internal/service/cache"
	"SignalForge/internal/service/llm"
	"SignalForge/internal/service/vision"
	"SignalForge/internal/usecase"
	"SignalForge/pkg/clickhouse"
	"SignalForge/pkg/config"
	xhttp "SignalForge/pkg/http"
	"SignalForge/pkg/kafka"
	"SignalForge/pkg/logger"
	"SignalForge/pkg/metrics"
	"SignalForge/pkg/server"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const initTimeout = 10 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideRedisClient connects to Redis and verifies the connection.
// The client backs both the job queue and the OHLCV cache.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return cli, nil
}

// ProvidePgxPool connects to Postgres and verifies the connection.
func ProvidePgxPool(cfg *config.Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		pc.MaxConns = cfg.Postgres.MaxConns
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	return pool, nil
}

// ProvideResultStore creates the durable store and applies the schema.
func ProvideResultStore(lgr *logger.Logger, pool *pgxpool.Pool) (*repository.PostgresResultStore, error) {
	store := repository.NewPostgresResultStore(lgr, pool)

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	return store, nil
}

// ProvideQueue creates the Redis job queue.
func ProvideQueue(lgr *logger.Logger, cli *redis.Client, cfg *config.Config) *queue.RedisQueue {
	return queue.NewRedisQueue(lgr, cli,
		queue.WithQueueName(cfg.Queue.Name),
		queue.WithKeyPrefix(cfg.Queue.KeyPrefix),
		queue.WithJobTTL(cfg.Queue.JobTTL),
		queue.WithDequeueTimeout(cfg.Queue.DequeueTimeout),
	)
}

// ProvideCache creates the Redis byte cache used for OHLCV candles.
func ProvideCache(cli *redis.Client, cfg *config.Config) cache.BytesCache {
	return cache.NewRedisCache(cli, cfg.Queue.KeyPrefix)
}

// ProvideCandleSource creates the Binance market data client.
func ProvideCandleSource(lgr *logger.Logger, store cache.BytesCache, cfg *config.Config) *binance.Client {
	return binance.NewClient(lgr, store,
		binance.WithBaseURL(cfg.Binance.BaseURL),
		binance.WithCacheTTL(cfg.Binance.CacheTTL),
		binance.WithMaxRetries(cfg.Binance.MaxRetries),
		binance.WithRequestTimeout(cfg.Binance.RequestTimeout),
	)
}

// ProvideLLMClient creates the chat completion client for interpretation.
func ProvideLLMClient(lgr *logger.Logger, cfg *config.Config) *llm.Client {
	opts := []llm.ClientOption{
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTimeout(cfg.LLM.Timeout),
	}
	if cfg.LLM.Provider != "" {
		opts = append(opts, llm.WithProvider(llm.Provider(cfg.LLM.Provider)))
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	if cfg.LLM.Model != "" {
		opts = append(opts, llm.WithModel(cfg.LLM.Model))
	}
	if cfg.LLM.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(cfg.LLM.Temperature))
	}
	return llm.NewClient(lgr, opts...)
}

// ProvideInterpreter creates the interpretation service.
func ProvideInterpreter(lgr *logger.Logger, cli *llm.Client, cfg *config.Config) *llm.Interpreter {
	return llm.NewInterpreter(lgr, cli,
		llm.WithInterpretRetries(cfg.LLM.MaxRetries),
	)
}

// ProvideVision creates the chart image analyzer, or nil when disabled.
// It gets its own client so the vision model and timeout can differ from
// the interpretation ones.
func ProvideVision(lgr *logger.Logger, cfg *config.Config) domain.VisionAnalyzer {
	if !cfg.Vision.Enabled {
		return nil
	}

	opts := []llm.ClientOption{
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithTimeout(cfg.Vision.Timeout),
	}
	if cfg.LLM.Provider != "" {
		opts = append(opts, llm.WithProvider(llm.Provider(cfg.LLM.Provider)))
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	if cfg.Vision.Model != "" {
		opts = append(opts, llm.WithModel(cfg.Vision.Model))
	}

	return vision.NewAnalyzer(lgr, llm.NewClient(lgr, opts...))
}

// ProvideClickHouseClient connects to ClickHouse, or returns nil when the
// archive is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*clickhouse.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}

	opts := []clickhouse.ClientOption{
		clickhouse.WithHost(cfg.ClickHouse.Host),
		clickhouse.WithPort(cfg.ClickHouse.Port),
		clickhouse.WithDatabase(cfg.ClickHouse.Database),
		clickhouse.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		clickhouse.WithHTTP(cfg.ClickHouse.UseHTTP),
		clickhouse.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
	}
	if cfg.ClickHouse.DialTimeout > 0 {
		opts = append(opts, clickhouse.WithTimeouts(
			cfg.ClickHouse.DialTimeout,
			cfg.ClickHouse.ReadTimeout,
			cfg.ClickHouse.WriteTimeout,
		))
	}
	if cfg.ClickHouse.MaxExecutionTime > 0 {
		opts = append(opts, clickhouse.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime))
	}

	cli, err := clickhouse.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	return cli, nil
}

// ProvideArchive creates the signal archive on top of ClickHouse and applies
// its schema. Returns nil when ClickHouse is disabled.
func ProvideArchive(cli *clickhouse.Client) (domain.Archive, error) {
	if cli == nil {
		return nil, nil
	}

	archive := repository.NewClickHouseArchive(cli.DB())

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return archive, nil
}

// ProvideKafkaProducer creates the Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*kafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	opts := []kafka.ProducerOption{
		kafka.WithBrokers(cfg.Kafka.Brokers),
		kafka.WithHashByKey(true),
	}
	if cfg.Kafka.Compression != "" {
		opts = append(opts, kafka.WithCompression(cfg.Kafka.Compression))
	}
	if cfg.Kafka.RequiredAcks != 0 {
		opts = append(opts, kafka.WithRequiredAcks(cfg.Kafka.RequiredAcks))
	}
	if cfg.Kafka.MaxAttempts > 0 {
		opts = append(opts, kafka.WithMaxAttempts(cfg.Kafka.MaxAttempts))
	}
	if cfg.Kafka.BatchSize > 0 {
		opts = append(opts, kafka.WithBatchSize(cfg.Kafka.BatchSize))
	}
	if cfg.Kafka.BatchBytes > 0 {
		opts = append(opts, kafka.WithBatchBytes(cfg.Kafka.BatchBytes))
	}
	if cfg.Kafka.Linger > 0 {
		opts = append(opts, kafka.WithBatchTimeout(cfg.Kafka.Linger))
	}
	if cfg.Kafka.WriteTimeout > 0 {
		opts = append(opts, kafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout))
	}

	return kafka.NewProducer(opts...)
}

// ProvidePublisher creates the completed-signal publisher, or nil when Kafka
// is disabled.
func ProvidePublisher(producer *kafka.Producer, cfg *config.Config) domain.Publisher {
	if producer == nil {
		return nil
	}
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = "signalforge.signals"
	}
	return repository.NewKafkaSignalPublisher(producer, topic)
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.NewRecorder()
}

// ProvideProcessor assembles the signal pipeline.
func ProvideProcessor(
	lgr *logger.Logger,
	candles *binance.Client,
	interpreter *llm.Interpreter,
	store *repository.PostgresResultStore,
	visionAnalyzer domain.VisionAnalyzer,
	archive domain.Archive,
	publisher domain.Publisher,
	rec *metrics.Recorder,
) *usecase.SignalProcessor {
	opts := []usecase.ProcessorOption{usecase.WithMetrics(rec)}
	if visionAnalyzer != nil {
		opts = append(opts, usecase.WithVision(visionAnalyzer))
	}
	if archive != nil {
		opts = append(opts, usecase.WithArchive(archive))
	}
	if publisher != nil {
		opts = append(opts, usecase.WithPublisher(publisher))
	}
	return usecase.NewSignalProcessor(lgr, candles, interpreter, store, opts...)
}

// ProvideHandler creates the HTTP handler with health probes for the queue
// and the durable store.
func ProvideHandler(
	lgr *logger.Logger,
	q *queue.RedisQueue,
	store *repository.PostgresResultStore,
	rec *metrics.Recorder,
) xhttp.Handler {
	return api.NewSignalsHandler(lgr, q, store,
		api.WithMetrics(rec),
		api.WithPinger("redis", q),
		api.WithPinger("postgres", store),
	)
}

// ProvideApp assembles the API application.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	handler xhttp.Handler,
	rdb *redis.Client,
	pool *pgxpool.Pool,
) *server.App {
	return server.New(cfg, lgr, handler,
		server.WithCloser("redis", rdb.Close),
		server.WithCloser("postgres", func() error {
			pool.Close()
			return nil
		}),
	)
}
