package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/cloo-solutions/kitguide/internal/storage"
	"github.com/cloo-solutions/kitguide/internal/telemetry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// PageDescriber produces the structured description of one page.
type PageDescriber interface {
	Describe(ctx context.Context, page storage.Page, pageNumber int) (*domain.StructuredPage, error)
}

// StepWriter persists assembly step records.
type StepWriter interface {
	InsertBatch(ctx context.Context, recs []*domain.AssemblyStepRecord, replace bool) error
	DeleteAll(ctx context.Context) error
	Dimension(ctx context.Context) (int, error)
}

// CorpusOptions tunes a CorpusBuilder.
type CorpusOptions struct {
	// Workers bounds the pages processed concurrently.
	Workers int
	// Interval is the minimum spacing between vision calls.
	Interval  time.Duration
	BatchSize int
	// Dimension is the embedder's output width. When set, Build refuses to
	// start if the store declares a different width.
	Dimension int
	// Timeout bounds each embedding call.
	Timeout time.Duration
	Logger  *slog.Logger
}

// BuildOptions selects how a build treats existing records.
type BuildOptions struct {
	// Replace deletes stored rows sharing a page number with each batch.
	Replace bool
	// Rebuild clears the whole table before any page is processed.
	Rebuild bool
}

// SkippedPage records a page that produced no record.
type SkippedPage struct {
	PageNumber int    `json:"page_number"`
	Source     string `json:"source"`
	Reason     string `json:"reason"`
}

// BuildReport summarises one corpus build.
type BuildReport struct {
	RunID         string        `json:"run_id"`
	Pages         int           `json:"pages"`
	Described     int           `json:"described"`
	Skipped       []SkippedPage `json:"skipped"`
	Inserted      int           `json:"inserted"`
	FailedBatches []string      `json:"failed_batches"`
	Dimension     int           `json:"dimension"`
}

// CorpusBuilder scans manual page images, describes and embeds each page, and
// writes the resulting records to the store.
type CorpusBuilder struct {
	source    storage.PageSource
	describer PageDescriber
	embedder  EmbeddingClient
	store     StepWriter
	opts      CorpusOptions
	logger    *slog.Logger
}

func NewCorpusBuilder(source storage.PageSource, describer PageDescriber, embedder EmbeddingClient, store StepWriter, opts CorpusOptions) *CorpusBuilder {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusBuilder{
		source:    source,
		describer: describer,
		embedder:  embedder,
		store:     store,
		opts:      opts,
		logger:    logger,
	}
}

// Build runs one full corpus build. Individual page failures are reported as
// skips; an error is returned only when the store dimension does not match the
// embedder, the source cannot be listed, the build is cancelled, or every
// insert batch fails.
func (b *CorpusBuilder) Build(ctx context.Context, opts BuildOptions) (*BuildReport, error) {
	report := &BuildReport{RunID: uuid.NewString()}

	ctx, span := telemetry.StartSpan(ctx, "service.CorpusBuilder.Build", telemetry.SpanAttributes{
		RunID:     report.RunID,
		Operation: "ingest",
	})
	defer span.End()

	logger := b.logger.With("run_id", report.RunID)

	if err := b.checkDimension(ctx); err != nil {
		span.SetError(err)
		return report, err
	}

	pages, err := b.source.List(ctx)
	if err != nil {
		span.SetError(err)
		return report, fmt.Errorf("failed to list manual pages: %w", err)
	}
	SortPages(pages)
	report.Pages = len(pages)

	if len(pages) == 0 {
		logger.Warn("no manual page images found")
		return report, nil
	}

	if opts.Rebuild {
		if err := b.store.DeleteAll(ctx); err != nil {
			span.SetError(err)
			return report, fmt.Errorf("failed to clear corpus: %w", err)
		}
		logger.Info("cleared existing corpus")
	}

	logger.Info("building corpus", "pages", len(pages), "workers", b.opts.Workers)

	records := b.processPages(ctx, logger, pages, report)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Described = len(records)
	if len(records) == 0 {
		logger.Warn("zero records produced", "skipped", len(report.Skipped))
		return report, nil
	}
	report.Dimension = len(records[0].Embedding)

	var batchErrs []error
	batches := 0
	for start := 0; start < len(records); start += b.opts.BatchSize {
		end := min(start+b.opts.BatchSize, len(records))
		batch := records[start:end]
		batches++

		if err := b.store.InsertBatch(ctx, batch, opts.Replace); err != nil {
			err = fmt.Errorf("pages %d-%d: %w", batch[0].PageNumber, batch[len(batch)-1].PageNumber, err)
			batchErrs = append(batchErrs, err)
			report.FailedBatches = append(report.FailedBatches, err.Error())
			logger.Error("batch insert failed", "error", err)
			telemetry.CaptureError(ctx, err)
			continue
		}
		report.Inserted += len(batch)
	}

	logger.Info("corpus build finished",
		"pages", report.Pages,
		"described", report.Described,
		"skipped", len(report.Skipped),
		"inserted", report.Inserted,
		"failed_batches", len(report.FailedBatches),
	)

	if len(batchErrs) == batches {
		err := errors.Join(batchErrs...)
		span.SetError(err)
		return report, err
	}
	return report, nil
}

// checkDimension compares the store's declared width with the embedder before
// any page is described. An empty store with no declared width passes.
func (b *CorpusBuilder) checkDimension(ctx context.Context) error {
	if b.opts.Dimension <= 0 {
		return nil
	}
	storeDim, err := b.store.Dimension(ctx)
	if err != nil {
		return fmt.Errorf("failed to read corpus dimension: %w", err)
	}
	if storeDim > 0 && storeDim != b.opts.Dimension {
		return domain.Wrap(domain.ErrDimensionMismatch,
			fmt.Errorf("corpus has %d dimensions, embedding service produces %d", storeDim, b.opts.Dimension))
	}
	return nil
}

// processPages describes and embeds every page on a bounded worker group.
// Page numbers are fixed by the sorted order before any work starts; the
// returned records are in page order.
func (b *CorpusBuilder) processPages(ctx context.Context, logger *slog.Logger, pages []storage.Page, report *BuildReport) []*domain.AssemblyStepRecord {
	limit := rate.Inf
	if b.opts.Interval > 0 {
		limit = rate.Every(b.opts.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	results := make([]*domain.AssemblyStepRecord, len(pages))
	var mu sync.Mutex
	skip := func(pageNumber int, page storage.Page, reason error) {
		logger.Warn("skipping page", "page", pageNumber, "source", page.Source, "reason", reason)
		telemetry.AddBreadcrumb(ctx, "ingest", fmt.Sprintf("skipped page %d: %v", pageNumber, reason))
		mu.Lock()
		report.Skipped = append(report.Skipped, SkippedPage{PageNumber: pageNumber, Source: page.Source, Reason: reason.Error()})
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(b.opts.Workers)

	for idx, page := range pages {
		if ctx.Err() != nil {
			break
		}
		pageNumber := idx + 1
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				skip(pageNumber, page, err)
				return nil
			}

			rec, err := b.processPage(ctx, page, pageNumber)
			if err != nil {
				skip(pageNumber, page, err)
				return nil
			}
			results[idx] = rec
			logger.Debug("page processed", "page", pageNumber, "parts", rec.PartNames)
			return nil
		})
	}
	_ = g.Wait()

	records := make([]*domain.AssemblyStepRecord, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			records = append(records, rec)
		}
	}

	mu.Lock()
	sortSkipped(report.Skipped)
	mu.Unlock()

	return records
}

func (b *CorpusBuilder) processPage(ctx context.Context, page storage.Page, pageNumber int) (*domain.AssemblyStepRecord, error) {
	structured, err := b.describer.Describe(ctx, page, pageNumber)
	if err != nil {
		return nil, err
	}

	rec := structured.Record(pageNumber, page.Source)
	if rec.Description == "" {
		return nil, domain.ErrEmptyDescription
	}

	embedCtx, cancel := withTimeout(ctx, b.opts.Timeout)
	defer cancel()

	embedding, err := b.embedder.GenerateEmbedding(embedCtx, rec.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to embed description: %w", err)
	}
	rec.Embedding = embedding

	return rec, nil
}

func sortSkipped(skipped []SkippedPage) {
	sort.Slice(skipped, func(i, j int) bool {
		return skipped[i].PageNumber < skipped[j].PageNumber
	})
}
