package service

import (
	"context"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/cloo-solutions/kitguide/internal/storage"
	"github.com/stretchr/testify/mock"
)

// MockEmbeddingClient mocks the embedding service
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockQueryEmbedder adds Dimensions to MockEmbeddingClient
type MockQueryEmbedder struct {
	MockEmbeddingClient
	dimensions int
}

func (m *MockQueryEmbedder) Dimensions() int {
	return m.dimensions
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Nearest(ctx context.Context, vec []float32, k int) ([]domain.RetrievedContext, error) {
	args := m.Called(ctx, vec, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedContext), args.Error(1)
}

func (m *MockVectorStore) Dimension(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPageSource struct {
	mock.Mock
}

func (m *MockPageSource) List(ctx context.Context) ([]storage.Page, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Page), args.Error(1)
}

func (m *MockPageSource) Read(ctx context.Context, source string) ([]byte, error) {
	args := m.Called(ctx, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockPageDescriber struct {
	mock.Mock
}

func (m *MockPageDescriber) Describe(ctx context.Context, page storage.Page, pageNumber int) (*domain.StructuredPage, error) {
	args := m.Called(ctx, page, pageNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StructuredPage), args.Error(1)
}

type MockStepWriter struct {
	mock.Mock
}

func (m *MockStepWriter) InsertBatch(ctx context.Context, recs []*domain.AssemblyStepRecord, replace bool) error {
	args := m.Called(ctx, recs, replace)
	return args.Error(0)
}

func (m *MockStepWriter) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStepWriter) Dimension(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockVisionModel struct {
	mock.Mock
}

func (m *MockVisionModel) DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	args := m.Called(ctx, prompt, image, mimeType)
	return args.String(0), args.Error(1)
}

type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockPartDetector struct {
	mock.Mock
}

func (m *MockPartDetector) Detect(ctx context.Context, weightsPath, imagePath string) (*domain.DetectionResult, error) {
	args := m.Called(ctx, weightsPath, imagePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DetectionResult), args.Error(1)
}

type MockContextRetriever struct {
	mock.Mock
}

func (m *MockContextRetriever) BuildQueryText(labels []string) string {
	args := m.Called(labels)
	return args.String(0)
}

func (m *MockContextRetriever) Retrieve(ctx context.Context, labels []string) []domain.RetrievedContext {
	args := m.Called(ctx, labels)
	return args.Get(0).([]domain.RetrievedContext)
}

type MockGuidanceWriter struct {
	mock.Mock
}

func (m *MockGuidanceWriter) Generate(ctx context.Context, labels []string, contexts []domain.RetrievedContext) string {
	args := m.Called(ctx, labels, contexts)
	return args.String(0)
}

type MockImageLinker struct {
	mock.Mock
}

func (m *MockImageLinker) Link(ctx context.Context, source string) (string, error) {
	args := m.Called(ctx, source)
	return args.String(0), args.Error(1)
}
