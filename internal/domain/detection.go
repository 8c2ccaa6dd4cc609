package domain

import (
	"fmt"
	"strings"
)

// BoundingBox is an axis-aligned box in image pixel coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection is a single labeled box produced by the detection runtime.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// DetectionResult is the output of one detection run.
type DetectionResult struct {
	// AnnotatedImage is the path of the image with boxes drawn on it.
	AnnotatedImage string      `json:"annotated_image"`
	Detections     []Detection `json:"detections"`
}

// Labels returns the detected labels in detection order, duplicates included.
func (r *DetectionResult) Labels() []string {
	if r == nil {
		return nil
	}
	labels := make([]string, 0, len(r.Detections))
	for _, d := range r.Detections {
		if label := strings.TrimSpace(d.Label); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// DistinctLabels returns the labels in first-occurrence order without duplicates.
func (r *DetectionResult) DistinctLabels() []string {
	return DistinctLabels(r.Labels())
}

// DistinctLabels removes duplicate labels, keeping first-occurrence order.
func DistinctLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// ValidateDetectionResult validates a result decoded from the detection runtime.
func ValidateDetectionResult(r *DetectionResult) error {
	if r == nil {
		return fmt.Errorf("detection result cannot be nil")
	}

	if r.AnnotatedImage == "" {
		return fmt.Errorf("detection result AnnotatedImage is required")
	}

	for i, d := range r.Detections {
		if strings.TrimSpace(d.Label) == "" {
			return fmt.Errorf("detection %d has an empty label", i)
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			return fmt.Errorf("detection %d confidence %.3f is out of range", i, d.Confidence)
		}
	}

	return nil
}
