// Package detector talks to the part-detection runtime. The runtime owns the
// model weights; this package only sends it images and decodes its results.
package detector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/kitguide/internal/domain"
)

// Detector runs part detection on one image with the given weights.
type Detector interface {
	Detect(ctx context.Context, weightsPath, imagePath string) (*domain.DetectionResult, error)
}

// wireResult is the JSON document produced by the detection runtime.
type wireResult struct {
	AnnotatedImage       string          `json:"annotated_image"`
	AnnotatedImageBase64 string          `json:"annotated_image_base64,omitempty"`
	Detections           []wireDetection `json:"detections"`
}

type wireDetection struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"`
}

func (w *wireResult) toDomain() (*domain.DetectionResult, error) {
	result := &domain.DetectionResult{
		AnnotatedImage: w.AnnotatedImage,
		Detections:     make([]domain.Detection, 0, len(w.Detections)),
	}
	for i, d := range w.Detections {
		if len(d.Box) != 0 && len(d.Box) != 4 {
			return nil, fmt.Errorf("detection %d box has %d coordinates, expected 4", i, len(d.Box))
		}
		det := domain.Detection{Label: d.Label, Confidence: d.Confidence}
		if len(d.Box) == 4 {
			det.Box = domain.BoundingBox{X1: d.Box[0], Y1: d.Box[1], X2: d.Box[2], Y2: d.Box[3]}
		}
		result.Detections = append(result.Detections, det)
	}
	return result, nil
}

func decodeResult(data []byte) (*wireResult, error) {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, domain.Wrap(domain.ErrMalformedDetection, err)
	}
	return &w, nil
}
