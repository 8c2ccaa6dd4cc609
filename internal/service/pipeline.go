package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"time"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/cloo-solutions/kitguide/internal/storage"
	"github.com/cloo-solutions/kitguide/internal/telemetry"
)

// User-facing failure messages returned by Run.
const (
	MsgWeightsNotFound = "Model weights not found! Train a model first or set a valid default weights path."
	MsgImageRequired   = "Error: please upload an image of the parts to detect!"
	MsgImageNotFound   = "Error: image not found: %s"
	MsgDetectionFailed = "Part detection failed: %v"
)

// PartDetector runs part detection on an image.
type PartDetector interface {
	Detect(ctx context.Context, weightsPath, imagePath string) (*domain.DetectionResult, error)
}

// WeightsChecker is implemented by detectors that resolve weights themselves.
// Detectors without it get a local file check.
type WeightsChecker interface {
	HasWeights(ctx context.Context, path string) bool
}

// ContextRetriever finds manual pages for part labels.
type ContextRetriever interface {
	BuildQueryText(labels []string) string
	Retrieve(ctx context.Context, labels []string) []domain.RetrievedContext
}

// GuidanceWriter turns retrieved pages into guidance text.
type GuidanceWriter interface {
	Generate(ctx context.Context, labels []string, contexts []domain.RetrievedContext) string
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	DefaultWeightsPath string
	DetectTimeout      time.Duration
	// Linker resolves image sources for clients; nil leaves them unchanged.
	Linker storage.ImageLinker
	Logger *slog.Logger
}

// GuideRequest is one detect-retrieve-generate invocation.
type GuideRequest struct {
	WeightsPath string `json:"weights_path"`
	ImagePath   string `json:"image_path"`
}

// GuideResult is what Run hands back to the caller. Images holds the annotated
// detection image first, then the retrieved manual pages. On a precondition or
// detection failure Images is empty, Failure holds the message, HTML its
// escaped form and Code the error code of the cause.
type GuideResult struct {
	Images   []string                  `json:"images"`
	HTML     string                    `json:"html"`
	Labels   []string                  `json:"labels,omitempty"`
	Contexts []domain.RetrievedContext `json:"contexts,omitempty"`
	Failure  string                    `json:"failure,omitempty"`
	Code     string                    `json:"code,omitempty"`
}

// Answer is the retrieval and guidance result for a set of labels.
type Answer struct {
	Labels   []string                  `json:"labels"`
	Query    string                    `json:"query"`
	Contexts []domain.RetrievedContext `json:"contexts"`
	Guidance string                    `json:"guidance"`
	HTML     string                    `json:"html"`
}

// Pipeline wires detection, retrieval and guidance generation.
type Pipeline struct {
	detector  PartDetector
	retriever ContextRetriever
	guidance  GuidanceWriter
	opts      PipelineOptions
	logger    *slog.Logger
}

func NewPipeline(detector PartDetector, retriever ContextRetriever, guidance GuidanceWriter, opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		detector:  detector,
		retriever: retriever,
		guidance:  guidance,
		opts:      opts,
		logger:    logger,
	}
}

// Run checks the weights and image, detects parts, retrieves pages and
// generates guidance. It never returns an error; failures come back as a
// readable message.
func (p *Pipeline) Run(ctx context.Context, req GuideRequest) *GuideResult {
	ctx, span := telemetry.StartSpan(ctx, "service.Pipeline.Run", telemetry.SpanAttributes{Operation: "guide"})
	defer span.End()

	weights, ok := p.resolveWeights(ctx, req.WeightsPath)
	if !ok {
		return failure(domain.ErrWeightsNotFound, MsgWeightsNotFound)
	}

	if req.ImagePath == "" {
		return failure(domain.ErrImageRequired, MsgImageRequired)
	}
	if _, err := os.Stat(req.ImagePath); err != nil {
		return failure(domain.Wrap(domain.ErrImageNotFound, err), fmt.Sprintf(MsgImageNotFound, req.ImagePath))
	}

	detectCtx, cancel := withTimeout(ctx, p.opts.DetectTimeout)
	detection, err := p.detector.Detect(detectCtx, weights, req.ImagePath)
	cancel()
	if err != nil {
		p.logger.Error("part detection failed", "image", req.ImagePath, "error", err)
		span.SetError(err)
		return failure(err, fmt.Sprintf(MsgDetectionFailed, err))
	}

	answer := p.Answer(ctx, detection.DistinctLabels())

	images := make([]string, 0, len(answer.Contexts)+1)
	images = append(images, detection.AnnotatedImage)
	images = append(images, p.link(ctx, domain.ImageSources(answer.Contexts))...)

	return &GuideResult{
		Images:   images,
		HTML:     answer.HTML,
		Labels:   answer.Labels,
		Contexts: answer.Contexts,
	}
}

// Answer retrieves pages for labels and writes guidance for them. No labels
// skip retrieval, so the fallback text is used.
func (p *Pipeline) Answer(ctx context.Context, labels []string) *Answer {
	labels = domain.DistinctLabels(labels)

	answer := &Answer{Labels: labels, Contexts: []domain.RetrievedContext{}}
	if len(labels) > 0 {
		answer.Query = p.retriever.BuildQueryText(labels)
		answer.Contexts = p.retriever.Retrieve(ctx, labels)
	}

	answer.Guidance = p.guidance.Generate(ctx, labels, answer.Contexts)

	rendered, err := RenderGuidanceHTML(answer.Guidance)
	if err != nil {
		p.logger.Error("failed to render guidance", "error", err)
		rendered = wrapPlainText(answer.Guidance)
	}
	answer.HTML = rendered

	return answer
}

func (p *Pipeline) resolveWeights(ctx context.Context, requested string) (string, bool) {
	if requested != "" && p.hasWeights(ctx, requested) {
		return requested, true
	}
	if p.opts.DefaultWeightsPath != "" && p.hasWeights(ctx, p.opts.DefaultWeightsPath) {
		return p.opts.DefaultWeightsPath, true
	}
	return "", false
}

func (p *Pipeline) hasWeights(ctx context.Context, path string) bool {
	if checker, ok := p.detector.(WeightsChecker); ok {
		return checker.HasWeights(ctx, path)
	}
	_, err := os.Stat(path)
	return err == nil
}

func (p *Pipeline) link(ctx context.Context, sources []string) []string {
	if p.opts.Linker == nil {
		return sources
	}
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		link, err := p.opts.Linker.Link(ctx, src)
		if err != nil {
			p.logger.Warn("failed to link image", "source", src, "error", err)
			link = src
		}
		out = append(out, link)
	}
	return out
}

func failure(cause error, msg string) *GuideResult {
	code := domain.ErrCodeInternalError
	var de *domain.DomainError
	if errors.As(cause, &de) {
		code = de.Code
	}
	return &GuideResult{Images: []string{}, HTML: html.EscapeString(msg), Failure: msg, Code: code}
}
