package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cloo-solutions/kitguide/internal/api"
	"github.com/cloo-solutions/kitguide/internal/api/handlers"
	"github.com/cloo-solutions/kitguide/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// MaxBodyBytes bounds request bodies, including uploaded images.
const MaxBodyBytes int64 = 20 * 1024 * 1024

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	GuideHandler  *handlers.GuideHandler
	CorpusHandler *handlers.CorpusHandler
	// Store is optional; when set /health reports its reachability.
	Store  HealthChecker
	Logger *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if cfg.Store != nil {
			if err := cfg.Store.Ping(r.Context()); err != nil {
				status["store"] = "unreachable"
			} else {
				status["store"] = "ok"
			}
		}
		api.Success(w, http.StatusOK, status)
	})

	r.Post("/guide", cfg.GuideHandler.Guide)
	r.Post("/retrieve", cfg.GuideHandler.Retrieve)

	if cfg.CorpusHandler != nil {
		r.Post("/corpus/build", cfg.CorpusHandler.Build)
	}

	return r
}
