//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_GenerateEmbedding_RealAPI(t *testing.T) {
	baseURL := os.Getenv("KITGUIDE_EMBEDDING_BASE_URL")
	if baseURL == "" {
		t.Skip("KITGUIDE_EMBEDDING_BASE_URL not set, skipping integration test")
	}

	client := NewClientWithConfig(Config{
		APIKey:  os.Getenv("KITGUIDE_EMBEDDING_API_KEY"),
		BaseURL: baseURL,
	})
	ctx := context.Background()
	text := "Provide the assembly manual steps and instructions that use parts A11, B1-18."

	first, err := client.GenerateEmbedding(ctx, text)
	require.NoError(t, err)
	assert.Len(t, first, DefaultEmbeddingDimensions)

	second, err := client.GenerateEmbedding(ctx, text)
	require.NoError(t, err)
	assert.InDeltaSlice(t, first, second, 1e-5)
}
