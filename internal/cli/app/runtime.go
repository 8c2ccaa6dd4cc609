// Package app implements the kitguide commands.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloo-solutions/kitguide/internal/config"
	"github.com/cloo-solutions/kitguide/internal/database"
	"github.com/cloo-solutions/kitguide/internal/detector"
	"github.com/cloo-solutions/kitguide/internal/openai"
	"github.com/cloo-solutions/kitguide/internal/repository"
	"github.com/cloo-solutions/kitguide/internal/service"
	"github.com/cloo-solutions/kitguide/internal/storage"
	"github.com/cloo-solutions/kitguide/internal/telemetry"
)

// NewLogger returns a text logger at debug level when debug is set and a JSON
// logger at info level otherwise.
func NewLogger(debug bool, w io.Writer) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// runtime owns the process-wide clients a command needs. Everything is built
// once here and handed to the services explicitly.
type runtime struct {
	cfg      *config.Config
	prompts  config.Prompts
	logger   *slog.Logger
	conns    *database.Connector
	steps    *repository.AssemblyStepRepository
	shutdown func()
}

func newRuntime(cfg *config.Config, req config.Requirement, logOut io.Writer) (*runtime, error) {
	if err := cfg.Validate(req); err != nil {
		return nil, err
	}

	logger := NewLogger(cfg.Debug, logOut)
	slog.SetDefault(logger)

	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		logger.Warn("telemetry init failed (continuing without tracing)", "error", err)
		shutdown = func() {}
	}

	conns, err := database.NewConnector(database.Config{DSN: cfg.DSN(), ConnectTimeout: cfg.RequestTimeout})
	if err != nil {
		shutdown()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		prompts:  prompts,
		logger:   logger,
		conns:    conns,
		steps:    repository.NewAssemblyStepRepository(conns),
		shutdown: shutdown,
	}, nil
}

func (rt *runtime) Close() {
	rt.shutdown()
}

func (rt *runtime) migrate() error {
	if err := database.Migrate(rt.cfg.DSN(), rt.logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// embeddingClient builds the embedding client and probes it once. A failed
// probe means nothing can be ingested or retrieved, so it is fatal.
func (rt *runtime) embeddingClient(ctx context.Context) (*openai.Client, error) {
	apiKey, baseURL := rt.cfg.EmbeddingCredentials()
	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              apiKey,
		BaseURL:             baseURL,
		EmbeddingModel:      rt.cfg.EmbeddingModel,
		EmbeddingDimensions: rt.cfg.EmbeddingDimensions,
	})

	probeCtx, cancel := context.WithTimeout(ctx, rt.cfg.RequestTimeout)
	defer cancel()
	if err := client.Probe(probeCtx); err != nil {
		return nil, err
	}
	rt.logger.Info("embedding service ready", "model", rt.cfg.EmbeddingModel, "dimensions", client.Dimensions())
	return client, nil
}

func (rt *runtime) pageSource(ctx context.Context, dir string) (storage.PageSource, error) {
	return storage.Open(ctx, dir, storage.S3ClientConfig{
		Endpoint:        rt.cfg.S3Endpoint,
		Region:          rt.cfg.S3Region,
		AccessKeyID:     rt.cfg.S3AccessKey,
		SecretAccessKey: rt.cfg.S3SecretKey,
	})
}

func (rt *runtime) chatConfig(model string) openai.ChatConfig {
	return openai.ChatConfig{APIKey: rt.cfg.OpenAIAPIKey, BaseURL: rt.cfg.OpenAIBaseURL, Model: model}
}

// corpusBuilder wires the vision describer and the store. The builder checks
// the store's vector width against the embedder before describing any page.
func (rt *runtime) corpusBuilder(source storage.PageSource, embedder service.QueryEmbedder) *service.CorpusBuilder {
	describer := service.NewDescriber(
		openai.NewVisionClient(rt.chatConfig(rt.cfg.VisionModel)),
		source,
		service.DescriberOptions{
			Prompt:  rt.prompts.Describe,
			Timeout: rt.cfg.RequestTimeout,
			Logger:  rt.logger,
		},
	)

	return service.NewCorpusBuilder(source, describer, embedder, rt.steps, service.CorpusOptions{
		Workers:   rt.cfg.IngestWorkers,
		Interval:  rt.cfg.IngestInterval,
		BatchSize: rt.cfg.IngestBatchSize,
		Dimension: embedder.Dimensions(),
		Timeout:   rt.cfg.RequestTimeout,
		Logger:    rt.logger,
	})
}

// pipeline constructs the retriever, which checks the corpus dimension, and
// wires it with guidance generation and the given detector.
func (rt *runtime) pipeline(ctx context.Context, embedder service.QueryEmbedder, det service.PartDetector, linker storage.ImageLinker) (*service.Pipeline, error) {
	retriever, err := service.NewRetriever(ctx, embedder, rt.steps, service.RetrieverOptions{
		K:             rt.cfg.KNearest,
		Timeout:       rt.cfg.RequestTimeout,
		QueryTemplate: rt.prompts.Query,
		Logger:        rt.logger,
	})
	if err != nil {
		return nil, err
	}

	guidance := service.NewGuidanceGenerator(
		openai.NewGenerator(rt.chatConfig(rt.cfg.GenerationModel)),
		service.GuidanceTemplates{
			Prompt:   rt.prompts.Guidance,
			Fallback: rt.prompts.Fallback,
			Failure:  rt.prompts.Failure,
		},
		rt.cfg.RequestTimeout,
		rt.logger,
	)

	return service.NewPipeline(det, retriever, guidance, service.PipelineOptions{
		DefaultWeightsPath: rt.cfg.DetectionWeightsPath,
		DetectTimeout:      rt.cfg.RequestTimeout,
		Linker:             linker,
		Logger:             rt.logger,
	}), nil
}

// newDetector picks the detection backend: an explicit detections file, the
// detection service when configured, or a result file written beside the image.
func newDetector(cfg *config.Config, detectionsPath string) service.PartDetector {
	if detectionsPath == "" && cfg.HasDetector() {
		return detector.NewHTTPDetector(cfg.DetectorURL, cfg.OutputDir, cfg.RequestTimeout)
	}
	return detector.NewFileDetector(detectionsPath)
}

func linkerFor(source storage.PageSource) storage.ImageLinker {
	if linker, ok := source.(storage.ImageLinker); ok {
		return linker
	}
	return nil
}
