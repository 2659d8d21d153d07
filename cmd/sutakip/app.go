package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sutakip/sutakip/internal/adapter/classifier"
	kafkaadapter "github.com/sutakip/sutakip/internal/adapter/kafka"
	"github.com/sutakip/sutakip/internal/adapter/snapshot"
	"github.com/sutakip/sutakip/internal/adapter/source"
	"github.com/sutakip/sutakip/internal/config"
	"github.com/sutakip/sutakip/internal/observability"
	"github.com/sutakip/sutakip/internal/pipeline"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	store     *snapshot.FileStore
	refresher *pipeline.Refresher
	writer    *kafkaadapter.Writer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	completer, err := classifier.NewCompleter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create classifier backend: %w", err)
	}
	if cfg.ClassifierAPIKey() == "" {
		logger.Warn("classifier credential missing, Ankara and İstanbul will yield no records",
			"provider", cfg.ClassifierProvider)
	}
	tc := classifier.New(completer, classifier.Options{
		MaxInput: cfg.ClassifierMaxInput,
		Timeout:  cfg.ClassifierTimeout,
		CacheTTL: cfg.ClassifierCacheTTL,
	}, logger, metrics)

	apiFetcher := source.NewFetcher(cfg.FetchTimeout, cfg.UserAgent)
	webFetcher := source.NewFetcher(cfg.WebFetchTimeout, cfg.UserAgent)

	extractors := []pipeline.Extractor{
		source.NewIzmirAPI(apiFetcher, cfg.IzmirAPIURL, logger, metrics),
		source.NewIzmirWeb(apiFetcher, cfg.IzmirWebURL, logger, metrics),
		source.NewAnkara(webFetcher, cfg.AnkaraWebURL, tc, logger, metrics),
		source.NewIstanbul(webFetcher, cfg.IstanbulWebURL, tc, logger, metrics),
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   snapshot.NewFileStore(cfg.SnapshotPath),
	}

	opts := []pipeline.Option{
		pipeline.WithConcurrency(cfg.RefreshConcurrency),
		pipeline.WithTimeout(cfg.RefreshTimeout),
	}
	if cfg.KafkaEnabled() {
		a.writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(a.writer))
		logger.Info("snapshot publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}
	a.refresher = pipeline.NewRefresher(extractors, a.store, logger, metrics, opts...)

	return a, nil
}

func (a *app) scheduler() *pipeline.Scheduler {
	return pipeline.NewScheduler(a.refresher, a.cfg.RefreshInterval, nil, a.logger, a.metrics)
}

func (a *app) Close() {
	if a.writer == nil {
		return
	}
	if err := a.writer.Close(); err != nil {
		a.logger.Error("kafka writer close error", "error", err)
	}
}
