package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"SignalForge/internal/di"
	"SignalForge/internal/worker"
	"SignalForge/pkg/config"
	xhttp "SignalForge/pkg/http"
	"SignalForge/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lgr, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	rdb, err := di.ProvideRedisClient(cfg)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	pool, err := di.ProvidePgxPool(cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	store, err := di.ProvideResultStore(lgr, pool)
	if err != nil {
		log.Fatalf("failed to init result store: %v", err)
	}

	ch, err := di.ProvideClickHouseClient(cfg)
	if err != nil {
		log.Fatalf("failed to connect to clickhouse: %v", err)
	}
	if ch != nil {
		defer ch.Close()
	}
	archive, err := di.ProvideArchive(ch)
	if err != nil {
		log.Fatalf("failed to init archive: %v", err)
	}

	producer, err := di.ProvideKafkaProducer(cfg)
	if err != nil {
		log.Fatalf("failed to create kafka producer: %v", err)
	}
	if producer != nil {
		defer producer.Close()
	}

	q := di.ProvideQueue(lgr, rdb, cfg)
	candles := di.ProvideCandleSource(lgr, di.ProvideCache(rdb, cfg), cfg)
	interpreter := di.ProvideInterpreter(lgr, di.ProvideLLMClient(lgr, cfg), cfg)
	rec := di.ProvideMetrics()

	processor := di.ProvideProcessor(lgr, candles, interpreter, store,
		di.ProvideVision(lgr, cfg),
		archive,
		di.ProvidePublisher(producer, cfg),
		rec,
	)

	// Bare server for /metrics scraping; the worker registers no API routes.
	msrv := xhttp.NewServer(nil, xhttp.WithPort(cfg.Server.Port), xhttp.WithCORS(false))
	if err := msrv.Start(); err != nil {
		log.Fatalf("failed to start metrics server: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = msrv.Stop(ctx)
	}()

	w := worker.New(lgr, q, store, processor,
		worker.WithErrorBackoff(cfg.Worker.ErrorBackoff))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		lgr.Error("worker exited", logger.Error(err))
	}
}
