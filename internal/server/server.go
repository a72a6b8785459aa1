package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/randompersona1/ussplitter-server/internal/config"
	"github.com/randompersona1/ussplitter-server/internal/engine"
	"github.com/randompersona1/ussplitter-server/internal/logging"
	"github.com/randompersona1/ussplitter-server/internal/splitter"
)

// Handlers binds the HTTP surface to the splitter service.
type Handlers struct {
	svc          *splitter.Service
	catalog      engine.Catalog
	defaultModel string
	logger       *slog.Logger
}

// NewHandlers constructs the handler set.
func NewHandlers(cfg *config.Config, svc *splitter.Service, eng engine.Engine, logger *slog.Logger) *Handlers {
	return &Handlers{
		svc:          svc,
		catalog:      eng.Catalog(),
		defaultModel: cfg.Engine.DefaultModel,
		logger:       logging.WithComponent(logger, "http"),
	}
}

// NewRouter wires the routes onto a chi router.
func NewRouter(cfg *config.Config, svc *splitter.Service, eng engine.Engine, logger *slog.Logger) http.Handler {
	h := NewHandlers(cfg, svc, eng, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Post("/split", h.Split)
	r.Get("/status", h.Status)
	r.Get("/result/vocals", h.Vocals)
	r.Get("/result/instrumental", h.Instrumental)
	r.Post("/cleanup", h.Cleanup)
	r.Post("/cleanupall", h.CleanupAll)
	r.Get("/healthz", h.Health)
	r.Get("/models", h.Models)

	return r
}

// requestLogger records method, path, status, and duration at debug level.
func (h *Handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	})
}
