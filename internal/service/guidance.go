package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/cloo-solutions/kitguide/internal/telemetry"
)

const noLabelsText = "(none)"

// TextGenerator produces text from a single prompt.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GuidanceTemplates holds the prompt and fixed reply templates.
// Prompt takes labels and context, Fallback takes labels, Failure takes the error.
type GuidanceTemplates struct {
	Prompt   string
	Fallback string
	Failure  string
}

// GuidanceGenerator writes assembly guidance grounded in retrieved pages.
type GuidanceGenerator struct {
	generator TextGenerator
	templates GuidanceTemplates
	timeout   time.Duration
	logger    *slog.Logger
}

func NewGuidanceGenerator(generator TextGenerator, templates GuidanceTemplates, timeout time.Duration, logger *slog.Logger) *GuidanceGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuidanceGenerator{
		generator: generator,
		templates: templates,
		timeout:   timeout,
		logger:    logger,
	}
}

// Generate returns markdown guidance. With no context it returns the fallback
// text without calling the model; a model failure returns the failure text.
func (g *GuidanceGenerator) Generate(ctx context.Context, labels []string, contexts []domain.RetrievedContext) string {
	joined := joinLabels(labels)

	if len(contexts) == 0 {
		return fmt.Sprintf(g.templates.Fallback, joined)
	}

	ctx, span := telemetry.StartSpan(ctx, "service.GuidanceGenerator.Generate", telemetry.SpanAttributes{
		Labels:    labels,
		Operation: "generate",
	})
	defer span.End()

	prompt := fmt.Sprintf(g.templates.Prompt, joined, FormatContext(contexts))

	callCtx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.generator.Complete(callCtx, prompt)
	if err != nil {
		g.logger.Error("guidance generation failed", "error", err, "labels", labels)
		span.SetError(err)
		return fmt.Sprintf(g.templates.Failure, err)
	}

	return text
}

// FormatContext renders one "[page N]: description" line per context item.
func FormatContext(contexts []domain.RetrievedContext) string {
	lines := make([]string, 0, len(contexts))
	for _, c := range contexts {
		lines = append(lines, fmt.Sprintf("[page %d]: %s", c.PageNumber, c.Description))
	}
	return strings.Join(lines, "\n")
}

func joinLabels(labels []string) string {
	if len(labels) == 0 {
		return noLabelsText
	}
	return strings.Join(labels, domain.PartNameSeparator)
}
