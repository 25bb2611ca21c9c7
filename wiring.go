package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"

	"github.com/AnTengye/contractlens/analyzer"
	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/ingest"
	"github.com/AnTengye/contractlens/pipeline"
	"github.com/AnTengye/contractlens/pkg/anthropic"
	"github.com/AnTengye/contractlens/report"
	"github.com/AnTengye/contractlens/service"
)

// components is everything a command needs to run analyses.
type components struct {
	store    service.Store
	manager  *pipeline.Manager
	exporter *report.Exporter
	// mineru is set when remote extraction is configured.
	mineru *service.MineruService
}

func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	var remote ingest.Extractor
	var mineruSvc *service.MineruService
	if cfg.Minio.Enabled() && cfg.Mineru.Enabled() {
		minioSvc, err := service.NewMinioService(&cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := minioSvc.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		mineruSvc = service.NewMineruService(&cfg.Mineru)
		remote = ingest.NewRemoteExtractor(minioSvc, mineruSvc)
		slog.Info("remote extraction enabled", "bucket", cfg.Minio.Bucket)
	}

	classifier, err := newClassifier(cfg)
	if err != nil {
		return nil, err
	}

	store, err := service.NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	manager := pipeline.NewManager(pipeline.Options{
		Ingest:        cfg.Ingest,
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
		Store:         store,
		Extractor:     ingest.NewDefaultRegistry(remote),
		Analyzer:      analyzer.New(classifier, cfg.Analyzer),
		Aggregator:    report.NewAggregator(cfg.Report),
	})

	return &components{
		store:    store,
		manager:  manager,
		exporter: report.NewExporter(cfg.Report.ExportCacheSize, time.Duration(cfg.Report.ExportCacheTTLMin)*time.Minute),
		mineru:   mineruSvc,
	}, nil
}

func newClassifier(cfg *config.Config) (analyzer.Classifier, error) {
	switch cfg.Analyzer.Provider {
	case "rules", "":
		return analyzer.NewRuleClassifier(), nil
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, eris.New("anthropic provider requires anthropic.api_key")
		}
		client := anthropic.NewClient(cfg.Anthropic.APIKey)
		slog.Info("using LLM clause classifier", "model", cfg.Anthropic.Model)
		return analyzer.NewLLMClassifier(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens), nil
	}
	return nil, eris.Errorf("unknown analyzer provider %q", cfg.Analyzer.Provider)
}

// Close stops in-flight analyses and closes the store.
func (c *components) Close(ctx context.Context) error {
	shutdownErr := c.manager.Shutdown(ctx)
	if err := c.store.Close(); err != nil {
		return eris.Wrap(err, "close store")
	}
	return shutdownErr
}
