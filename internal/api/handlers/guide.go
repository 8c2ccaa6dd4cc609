package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/kitguide/internal/api"
	"github.com/cloo-solutions/kitguide/internal/service"
	"github.com/cloo-solutions/kitguide/internal/storage"
	"github.com/google/uuid"
)

const maxMultipartMemory = 8 << 20

// GuidePipeline is the detect-retrieve-generate pipeline behind the API.
type GuidePipeline interface {
	Run(ctx context.Context, req service.GuideRequest) *service.GuideResult
	Answer(ctx context.Context, labels []string) *service.Answer
}

// errImageOutsideRoot rejects a JSON image_path that does not resolve under
// an image directory.
var errImageOutsideRoot = errors.New("image_path must be inside the image directory")

type GuideHandler struct {
	pipeline  GuidePipeline
	uploadDir string
	imageDir  string
	logger    *slog.Logger
}

// NewGuideHandler creates a handler that stores uploaded images in uploadDir.
// JSON requests may only name images under imageDir (relative paths are
// resolved against it) or under uploadDir when imageDir is empty.
func NewGuideHandler(pipeline GuidePipeline, uploadDir, imageDir string, logger *slog.Logger) *GuideHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuideHandler{pipeline: pipeline, uploadDir: uploadDir, imageDir: imageDir, logger: logger}
}

type RetrieveRequest struct {
	Labels []string `json:"labels"`
}

// Guide runs the pipeline on an uploaded image (multipart "image" field, with
// an optional "weights" field) or on server-side paths given as JSON. With
// ?format=html the rendered output box is returned instead of JSON.
func (h *GuideHandler) Guide(w http.ResponseWriter, r *http.Request) {
	var req service.GuideRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		defer r.MultipartForm.RemoveAll()

		path, err := h.saveUpload(r)
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			h.logger.Error("failed to store uploaded image", "error", err)
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if path != "" {
			defer h.removeUpload(path)
		}
		req.ImagePath = path
		req.WeightsPath = r.FormValue("weights")
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		path, err := h.resolveImagePath(req.ImagePath)
		if err != nil {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		req.ImagePath = path
	}

	result := h.pipeline.Run(r.Context(), req)

	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, result.HTML)
		return
	}

	api.Success(w, http.StatusOK, result)
}

// Retrieve answers a label list without running detection.
func (h *GuideHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	api.Success(w, http.StatusOK, h.pipeline.Answer(r.Context(), req.Labels))
}

// resolveImagePath maps a client-supplied path onto the image directory and
// rejects anything that escapes it. An empty path is passed through.
func (h *GuideHandler) resolveImagePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	root := h.imageDir
	if root == "" {
		root = h.uploadDir
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", errImageOutsideRoot
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errImageOutsideRoot
	}
	return resolved, nil
}

func (h *GuideHandler) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("failed to remove uploaded image", "path", path, "error", err)
	}
}

func (h *GuideHandler) saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if !storage.IsImageName(header.Filename) {
		return "", fmt.Errorf("unsupported image type: %s", header.Filename)
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(h.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(header.Filename)))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		h.removeUpload(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	return path, nil
}
