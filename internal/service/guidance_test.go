package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/kitguide/internal/config"
	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func defaultTemplates() GuidanceTemplates {
	p := config.DefaultPrompts()
	return GuidanceTemplates{Prompt: p.Guidance, Fallback: p.Fallback, Failure: p.Failure}
}

func TestGuidanceGenerator_EmptyContextFallback(t *testing.T) {
	gen := new(MockTextGenerator)
	guidance := NewGuidanceGenerator(gen, defaultTemplates(), 0, nil)

	text := guidance.Generate(context.Background(), []string{"A11"}, nil)

	assert.Contains(t, text, "A11")
	assert.Equal(t, "Detected parts A11, but no matching assembly instructions were found. Please check your manual.", text)
	gen.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGuidanceGenerator_NoLabels(t *testing.T) {
	gen := new(MockTextGenerator)
	guidance := NewGuidanceGenerator(gen, defaultTemplates(), 0, nil)

	text := guidance.Generate(context.Background(), nil, []domain.RetrievedContext{})

	assert.Contains(t, text, "(none)")
	gen.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGuidanceGenerator_Generate(t *testing.T) {
	gen := new(MockTextGenerator)
	guidance := NewGuidanceGenerator(gen, defaultTemplates(), 0, nil)
	contexts := []domain.RetrievedContext{
		{PageNumber: 3, Description: "Insert C11 into A11 | Press firmly"},
		{PageNumber: 7, Description: "Attach B1-18 | Align the tabs"},
	}

	gen.On("Complete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return assert.Contains(t, prompt, "Detected parts: A11, B1-18") &&
			assert.Contains(t, prompt, "[page 3]: Insert C11 into A11 | Press firmly\n[page 7]: Attach B1-18 | Align the tabs")
	})).Return("## Steps\n1. Page 3: insert C11.", nil).Once()

	text := guidance.Generate(context.Background(), []string{"A11", "B1-18"}, contexts)

	assert.Equal(t, "## Steps\n1. Page 3: insert C11.", text)
	gen.AssertExpectations(t)
}

func TestGuidanceGenerator_FailureIsText(t *testing.T) {
	gen := new(MockTextGenerator)
	guidance := NewGuidanceGenerator(gen, defaultTemplates(), 0, nil)

	gen.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	text := guidance.Generate(context.Background(), []string{"A11"}, []domain.RetrievedContext{{PageNumber: 1, Description: "d"}})

	assert.Equal(t, "Guidance generation failed: quota exceeded", text)
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
	assert.Equal(t, "[page 12]: s | d", FormatContext([]domain.RetrievedContext{{PageNumber: 12, Description: "s | d"}}))
}
