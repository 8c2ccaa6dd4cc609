package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/cloo-solutions/kitguide/internal/telemetry"
)

// QueryEmbedder embeds query sentences and reports its output dimension.
type QueryEmbedder interface {
	EmbeddingClient
	Dimensions() int
}

// VectorStore answers nearest-neighbor queries over stored pages.
type VectorStore interface {
	Nearest(ctx context.Context, vec []float32, k int) ([]domain.RetrievedContext, error)
	Dimension(ctx context.Context) (int, error)
}

// RetrieverOptions configures a Retriever. QueryTemplate takes the joined labels.
type RetrieverOptions struct {
	K             int
	Timeout       time.Duration
	QueryTemplate string
	Logger        *slog.Logger
}

// Retriever finds the manual pages most relevant to a set of part labels.
type Retriever struct {
	embedder      QueryEmbedder
	store         VectorStore
	k             int
	timeout       time.Duration
	queryTemplate string
	logger        *slog.Logger
	// guarded is set once the corpus dimension has been checked against the embedder.
	guarded atomic.Bool
}

// NewRetriever checks the corpus dimension against the embedder before
// returning. A mismatch is a CONFIG_ERROR. When the store cannot be reached
// the check is deferred to the first query.
func NewRetriever(ctx context.Context, embedder QueryEmbedder, store VectorStore, opts RetrieverOptions) (*Retriever, error) {
	if opts.K <= 0 {
		return nil, domain.ErrInvalidNeighbors
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Retriever{
		embedder:      embedder,
		store:         store,
		k:             opts.K,
		timeout:       opts.Timeout,
		queryTemplate: opts.QueryTemplate,
		logger:        logger,
	}

	if err := r.checkDimension(ctx); err != nil {
		if domain.IsCode(err, domain.ErrCodeConfig) {
			return nil, err
		}
		logger.Warn("vector store unavailable, dimension check deferred", "error", err)
	}

	return r, nil
}

// K returns the number of neighbors requested per query.
func (r *Retriever) K() int {
	return r.k
}

// BuildQueryText renders the query sentence for labels, joined in caller order.
func (r *Retriever) BuildQueryText(labels []string) string {
	return fmt.Sprintf(r.queryTemplate, strings.Join(labels, domain.PartNameSeparator))
}

// Retrieve returns at most K contexts in ascending distance order. It never
// fails: no labels, an embedding failure, a store failure, or a timeout all
// yield an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, labels []string) []domain.RetrievedContext {
	ctx, span := telemetry.StartSpan(ctx, "service.Retriever.Retrieve", telemetry.SpanAttributes{
		Labels:    labels,
		Operation: "retrieve",
	})
	defer span.End()

	if len(labels) == 0 {
		return []domain.RetrievedContext{}
	}

	if err := r.checkDimension(ctx); err != nil {
		r.softFail(ctx, span, "dimension check failed", err)
		return []domain.RetrievedContext{}
	}

	query := domain.RetrievalQuery{PartLabels: labels, QueryText: r.BuildQueryText(labels)}

	embedCtx, cancel := withTimeout(ctx, r.timeout)
	vec, err := r.embedder.GenerateEmbedding(embedCtx, query.QueryText)
	cancel()
	if err != nil {
		r.softFail(ctx, span, "query embedding failed", err)
		return []domain.RetrievedContext{}
	}
	query.QueryVector = vec

	storeCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	results, err := r.store.Nearest(storeCtx, query.QueryVector, r.k)
	if err != nil {
		r.softFail(ctx, span, "vector store query failed", err)
		return []domain.RetrievedContext{}
	}

	r.logger.Debug("retrieved context", "labels", labels, "results", len(results))
	return results
}

func (r *Retriever) checkDimension(ctx context.Context) error {
	if r.guarded.Load() {
		return nil
	}

	storeCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	corpusDim, err := r.store.Dimension(storeCtx)
	if err != nil {
		return err
	}
	if corpusDim > 0 && corpusDim != r.embedder.Dimensions() {
		return domain.Wrap(domain.ErrDimensionMismatch,
			fmt.Errorf("corpus has %d dimensions, embedding service produces %d", corpusDim, r.embedder.Dimensions()))
	}

	r.guarded.Store(true)
	return nil
}

func (r *Retriever) softFail(ctx context.Context, span *telemetry.Span, msg string, err error) {
	r.logger.Error(msg, "error", err)
	span.SetError(err)
	telemetry.CaptureError(ctx, err)
}
