package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cloo-solutions/kitguide/internal/api"
	"github.com/cloo-solutions/kitguide/internal/service"
)

type CorpusBuilder interface {
	Build(ctx context.Context, opts service.BuildOptions) (*service.BuildReport, error)
}

type CorpusHandler struct {
	builder CorpusBuilder
}

func NewCorpusHandler(builder CorpusBuilder) *CorpusHandler {
	return &CorpusHandler{builder: builder}
}

type BuildRequest struct {
	Replace bool `json:"replace"`
	Rebuild bool `json:"rebuild"`
}

// Build runs a corpus build synchronously and returns its report. An empty
// body appends to the existing corpus.
func (h *CorpusHandler) Build(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.builder.Build(r.Context(), service.BuildOptions{Replace: req.Replace, Rebuild: req.Rebuild})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, report)
}
