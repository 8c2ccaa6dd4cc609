package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectionResult_Labels(t *testing.T) {
	result := &DetectionResult{
		AnnotatedImage: "runs/current/parts.jpg",
		Detections: []Detection{
			{Label: "A11", Confidence: 0.9},
			{Label: "E13", Confidence: 0.8},
			{Label: "A11", Confidence: 0.7},
			{Label: " ", Confidence: 0.5},
		},
	}

	assert.Equal(t, []string{"A11", "E13", "A11"}, result.Labels())
	assert.Equal(t, []string{"A11", "E13"}, result.DistinctLabels())
}

func TestDetectionResult_NilLabels(t *testing.T) {
	var result *DetectionResult
	assert.Empty(t, result.Labels())
	assert.Empty(t, result.DistinctLabels())
}

func TestValidateDetectionResult(t *testing.T) {
	tests := []struct {
		name    string
		result  *DetectionResult
		wantErr bool
	}{
		{"nil", nil, true},
		{"missing annotated image", &DetectionResult{}, true},
		{"no detections", &DetectionResult{AnnotatedImage: "a.jpg"}, false},
		{"empty label", &DetectionResult{AnnotatedImage: "a.jpg", Detections: []Detection{{Label: ""}}}, true},
		{"bad confidence", &DetectionResult{AnnotatedImage: "a.jpg", Detections: []Detection{{Label: "A1", Confidence: 1.5}}}, true},
		{"valid", &DetectionResult{AnnotatedImage: "a.jpg", Detections: []Detection{{Label: "B1-18", Confidence: 0.42}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDetectionResult(tt.result)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
