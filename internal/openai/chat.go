package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when the model answers without any content.
var ErrEmptyResponse = errors.New("model returned no content")

// ChatCompletionAPI is the subset of the go-openai client used for generation
// and vision calls.
type ChatCompletionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatConfig selects the endpoint and model for a chat-completion client.
type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Generator produces free-form text from a single prompt.
type Generator struct {
	api   ChatCompletionAPI
	model string
}

func NewGenerator(cfg ChatConfig) *Generator {
	return NewGeneratorWithAPI(newOpenAIClient(cfg.APIKey, cfg.BaseURL), cfg.Model)
}

func NewGeneratorWithAPI(api ChatCompletionAPI, model string) *Generator {
	return &Generator{api: api, model: model}
}

// Complete sends prompt as one user message and returns the reply verbatim.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyText
	}

	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	return firstChoice(resp)
}

// VisionClient sends an image with an instruction prompt and requests a JSON
// object back.
type VisionClient struct {
	api   ChatCompletionAPI
	model string
}

func NewVisionClient(cfg ChatConfig) *VisionClient {
	return NewVisionClientWithAPI(newOpenAIClient(cfg.APIKey, cfg.BaseURL), cfg.Model)
}

func NewVisionClientWithAPI(api ChatCompletionAPI, model string) *VisionClient {
	return &VisionClient{api: api, model: model}
}

// DescribeImage returns the raw model output for the image. mimeType is
// sniffed from the bytes when empty.
func (v *VisionClient) DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("image cannot be empty")
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}

	resp, err := v.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    DataURI(mimeType, image),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe image: %w", err)
	}

	return firstChoice(resp)
}

// DataURI encodes image bytes as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
