package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/google/uuid"
)

const maxResponseBytes = 32 << 20

// HTTPDetector posts images to a detection inference service:
//
//	POST {baseURL}/detect  multipart: weights=<path>, image=<file>
//
// The service answers with the detection JSON document. When it returns the
// annotated image inline (annotated_image_base64) the image is written to OutputDir.
type HTTPDetector struct {
	baseURL    string
	outputDir  string
	httpClient *http.Client
}

// HTTPError is a non-2xx answer from the inference service.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("detector error (%d): %s", e.StatusCode, e.Message)
}

func NewHTTPDetector(baseURL, outputDir string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPDetector{
		baseURL:    strings.TrimRight(baseURL, "/"),
		outputDir:  outputDir,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDetector) Detect(ctx context.Context, weightsPath, imagePath string) (*domain.DetectionResult, error) {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.Wrap(domain.ErrImageNotFound, fmt.Errorf("%s", imagePath))
		}
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	body, contentType, err := multipartBody(weightsPath, filepath.Base(imagePath), image)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/detect", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read detector response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	wire, err := decodeResult(respBody)
	if err != nil {
		return nil, err
	}

	if wire.AnnotatedImageBase64 != "" {
		path, err := d.saveAnnotated(wire.AnnotatedImageBase64, filepath.Ext(imagePath))
		if err != nil {
			return nil, err
		}
		wire.AnnotatedImage = path
	}
	if wire.AnnotatedImage == "" {
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

func (d *HTTPDetector) saveAnnotated(encoded, ext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", domain.Wrap(domain.ErrMalformedDetection, fmt.Errorf("annotated image: %w", err))
	}

	dir := filepath.Join(d.outputDir, "annotated")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(dir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write annotated image: %w", err)
	}
	return path, nil
}

func multipartBody(weightsPath, filename string, image []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("weights", weightsPath); err != nil {
		return nil, "", fmt.Errorf("failed to write weights field: %w", err)
	}
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("failed to write image part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// HasWeights accepts any non-empty path; the inference service loads the
// weights and reports a missing file as an error response.
func (d *HTTPDetector) HasWeights(ctx context.Context, path string) bool {
	return path != ""
}
