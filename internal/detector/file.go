package detector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cloo-solutions/kitguide/internal/domain"
)

// ResultSuffix is appended to an image path to find the detection file the
// runtime wrote beside it.
const ResultSuffix = ".detections.json"

// FileDetector reads detection results the runtime already wrote to disk.
// Path, when set, is used for every image; otherwise <image>.detections.json.
type FileDetector struct {
	Path string
}

func NewFileDetector(path string) *FileDetector {
	return &FileDetector{Path: path}
}

func (d *FileDetector) Detect(ctx context.Context, weightsPath, imagePath string) (*domain.DetectionResult, error) {
	path := d.Path
	if path == "" {
		path = imagePath + ResultSuffix
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "detection result not found", fmt.Errorf("%s", path))
		}
		return nil, fmt.Errorf("failed to read detection result: %w", err)
	}

	wire, err := decodeResult(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(wire.AnnotatedImage) == "" {
		wire.AnnotatedImage = imagePath
	}

	result, err := wire.toDomain()
	if err != nil {
		return nil, domain.Wrap(domain.ErrMalformedDetection, err)
	}
	if err := domain.ValidateDetectionResult(result); err != nil {
		return nil, domain.Wrap(domain.ErrMalformedDetection, err)
	}
	return result, nil
}

// HasWeights always reports true: the weights were applied when the result file was written.
func (d *FileDetector) HasWeights(ctx context.Context, path string) bool {
	return true
}
