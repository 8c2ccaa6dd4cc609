package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/cloo-solutions/kitguide/internal/storage"
	"github.com/cloo-solutions/kitguide/internal/telemetry"
)

const rawOutputLogLimit = 200

// VisionModel sends one image and an instruction prompt to a vision-language model.
type VisionModel interface {
	DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// PageReader loads page image bytes by image source.
type PageReader interface {
	Read(ctx context.Context, source string) ([]byte, error)
}

// Describer turns a manual page image into a StructuredPage.
type Describer struct {
	vision  VisionModel
	pages   PageReader
	prompt  string
	timeout time.Duration
	logger  *slog.Logger
}

// DescriberOptions configures a Describer. Prompt takes the page number twice.
type DescriberOptions struct {
	Prompt  string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewDescriber(vision VisionModel, pages PageReader, opts DescriberOptions) *Describer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Describer{
		vision:  vision,
		pages:   pages,
		prompt:  opts.Prompt,
		timeout: opts.Timeout,
		logger:  logger,
	}
}

// Describe reads the page image and asks the vision model for its structured
// description. A missing image is a NOT_FOUND error and unparsable model
// output is a PARSE_ERROR.
func (d *Describer) Describe(ctx context.Context, page storage.Page, pageNumber int) (*domain.StructuredPage, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.Describer.Describe", telemetry.SpanAttributes{
		PageNumber: pageNumber,
		Operation:  "describe",
	})
	defer span.End()

	image, err := d.pages.Read(ctx, page.Source)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	prompt := fmt.Sprintf(d.prompt, pageNumber, pageNumber)
	raw, err := d.vision.DescribeImage(callCtx, prompt, image, imageMimeType(page.Name))
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("vision model failed for page %d: %w", pageNumber, err)
	}

	structured, err := DecodeStructuredPage(raw)
	if err != nil {
		d.logger.Warn("unparsable page description",
			"page", pageNumber,
			"source", page.Source,
			"error", err,
			"raw", truncate(raw, rawOutputLogLimit),
		)
		return nil, err
	}

	return structured, nil
}

type wirePage struct {
	Page      *int      `json:"page"`
	PartsList *[]string `json:"parts_list"`
	Summary   *string   `json:"summary"`
	Detail    *string   `json:"detail"`
}

// DecodeStructuredPage strictly decodes model output. The only leniency is
// stripping a surrounding markdown code fence. Unknown fields, missing fields,
// a null parts_list, or trailing data are all PARSE_ERRORs. Labels are trimmed
// and otherwise kept verbatim.
func DecodeStructuredPage(raw string) (*domain.StructuredPage, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, domain.Wrap(domain.ErrMalformedDescription, errors.New("empty output"))
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()

	var w wirePage
	if err := dec.Decode(&w); err != nil {
		return nil, domain.Wrap(domain.ErrMalformedDescription, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, domain.Wrap(domain.ErrMalformedDescription, errors.New("unexpected data after JSON object"))
	}

	var missing []string
	if w.Page == nil {
		missing = append(missing, "page")
	}
	if w.PartsList == nil {
		missing = append(missing, "parts_list")
	}
	if w.Summary == nil {
		missing = append(missing, "summary")
	}
	if w.Detail == nil {
		missing = append(missing, "detail")
	}
	if len(missing) > 0 {
		return nil, domain.Wrap(domain.ErrMalformedDescription, fmt.Errorf("missing fields: %s", strings.Join(missing, ", ")))
	}

	parts := make([]string, 0, len(*w.PartsList))
	for _, label := range *w.PartsList {
		if label = strings.TrimSpace(label); label != "" {
			parts = append(parts, label)
		}
	}

	return &domain.StructuredPage{
		Page:      *w.Page,
		PartsList: parts,
		Summary:   *w.Summary,
		Detail:    *w.Detail,
	}, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func imageMimeType(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
