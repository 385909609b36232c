package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/chat"
	"github.com/JakeFAU/sitechat-crawler/internal/ingest"
	"github.com/JakeFAU/sitechat-crawler/internal/metrics"
	"github.com/JakeFAU/sitechat-crawler/internal/store"
	"github.com/JakeFAU/sitechat-crawler/internal/training"
)

// DefaultRequestTimeout bounds non-crawl requests.
const DefaultRequestTimeout = 60 * time.Second

// maxUploadBytes caps training uploads and JSON bodies.
const maxUploadBytes = 10 << 20

// Crawler runs a crawl and stores the website.
type Crawler interface {
	Crawl(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Chatter answers questions and manages conversations.
type Chatter interface {
	Ask(ctx context.Context, userID, query string) (chat.Answer, error)
	History(ctx context.Context, userID string) ([]store.Message, error)
	Reset(ctx context.Context, userID string) error
	Availability(ctx context.Context) (chat.Availability, error)
}

// Trainer imports and manages training data.
type Trainer interface {
	Import(ctx context.Context, data []byte, defaults training.Defaults) (training.Report, error)
	Summary(ctx context.Context, filter store.TrainingFilter) ([]store.TrainingData, store.TrainingStats, error)
	Delete(ctx context.Context, id string) error
}

// Deps are the collaborators a Server routes to. Ready may be nil.
type Deps struct {
	Crawler        Crawler
	Chat           Chatter
	Training       Trainer
	Websites       store.WebsiteStore
	Ready          func(context.Context) error
	Logger         *zap.Logger
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// Server wires HTTP handlers to the services and stores.
type Server struct {
	router   chi.Router
	crawler  Crawler
	chat     Chatter
	training Trainer
	websites store.WebsiteStore
	ready    func(context.Context) error
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	s := &Server{
		crawler:  deps.Crawler,
		chat:     deps.Chat,
		training: deps.Training,
		websites: deps.Websites,
		ready:    deps.Ready,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.NotFound(s.notFound)

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Crawls carry their own per-page timeouts and may run for minutes.
		r.Post("/crawl", s.crawl)

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(timeout))

			r.Get("/config", s.chatConfig)
			r.Route("/websites", s.websiteRoutes)
			r.Route("/chat", s.chatRoutes)
			r.Route("/training", func(r chi.Router) {
				r.Post("/", s.uploadTraining)
				r.Get("/", s.listTraining)
				r.Delete("/{id}", s.deleteTraining)
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/setup", s.adminSetup)
		r.With(timeoutMiddleware(timeout)).Route("/websites", s.websiteRoutes)
	})
	r.With(timeoutMiddleware(timeout)).Route("/chat", s.chatRoutes)

	s.router = r
	return s
}

func (s *Server) websiteRoutes(r chi.Router) {
	r.Get("/", s.listWebsites)
	r.Get("/{id}", s.getWebsite)
	r.Delete("/{id}", s.deleteWebsite)
}

func (s *Server) chatRoutes(r chi.Router) {
	r.Post("/", s.ask)
	r.Post("/query", s.ask)
	r.Post("/new", s.newChat)
	r.Get("/history", s.history)
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// endpoints is the route summary served at / and with 404s.
var endpoints = map[string]string{
	"crawl":    "POST /api/crawl",
	"setup":    "POST /admin/setup",
	"websites": "GET /api/websites",
	"website":  "GET|DELETE /api/websites/{id}",
	"config":   "GET /api/config",
	"chat":     "POST /api/chat/query",
	"newChat":  "POST /api/chat/new",
	"history":  "GET /api/chat/history?userId=",
	"training": "GET|POST /api/training",
	"health":   "GET /healthz",
	"ready":    "GET /readyz",
	"metrics":  "GET /metrics",
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "sitechat",
		"endpoints": endpoints,
	})
}

func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"success":         false,
		"error":           "Route not found",
		"availableRoutes": endpoints,
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
