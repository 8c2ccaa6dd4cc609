package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cloo-solutions/kitguide/internal/service"
	"github.com/cloo-solutions/kitguide/internal/storage"
)

// PageLister lists the manual page images of the corpus source.
type PageLister interface {
	List(ctx context.Context) ([]storage.Page, error)
}

// CorpusBuilder rebuilds the corpus from the page source.
type CorpusBuilder interface {
	Build(ctx context.Context, opts service.BuildOptions) (*service.BuildReport, error)
}

// RecordCounter reports how many records the store holds.
type RecordCounter interface {
	Count(ctx context.Context) (int, error)
}

// CorpusSyncProcessor rebuilds the corpus whenever the page listing changes.
// The listing is fingerprinted by name and size. The first run only records
// the fingerprint unless the store is empty. A listing that lost pages is
// rebuilt from scratch; otherwise stored pages are replaced by page number.
type CorpusSyncProcessor struct {
	source  PageLister
	builder CorpusBuilder
	counter RecordCounter
	logger  *slog.Logger

	mu          sync.Mutex
	fingerprint string
	pages       int
}

func NewCorpusSyncProcessor(source PageLister, builder CorpusBuilder, counter RecordCounter, logger *slog.Logger) *CorpusSyncProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusSyncProcessor{
		source:  source,
		builder: builder,
		counter: counter,
		logger:  logger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (p *CorpusSyncProcessor) ProcessJobs(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pages, err := p.source.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	fingerprint := Fingerprint(pages)

	if fingerprint == p.fingerprint {
		return nil
	}

	if p.fingerprint == "" {
		count, err := p.counter.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count records: %w", err)
		}
		if count > 0 {
			p.logger.Info("corpus sync: tracking existing corpus", "pages", len(pages), "records", count)
			p.fingerprint, p.pages = fingerprint, len(pages)
			return nil
		}
	}

	opts := service.BuildOptions{Replace: true}
	if len(pages) < p.pages {
		opts = service.BuildOptions{Rebuild: true}
	}

	p.logger.Info("corpus sync: page listing changed, rebuilding",
		"pages", len(pages), "previous_pages", p.pages, "rebuild", opts.Rebuild)

	report, err := p.builder.Build(ctx, opts)
	if err != nil {
		return fmt.Errorf("corpus rebuild failed: %w", err)
	}

	p.logger.Info("corpus sync: rebuild complete", "run_id", report.RunID, "inserted", report.Inserted)
	p.fingerprint, p.pages = fingerprint, len(pages)
	return nil
}

// Fingerprint hashes the page names and sizes independently of listing order.
func Fingerprint(pages []storage.Page) string {
	lines := make([]string, 0, len(pages))
	for _, p := range pages {
		lines = append(lines, fmt.Sprintf("%s\x00%d", p.Source, p.Size))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
