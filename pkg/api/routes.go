package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mediapruner/queue/internal/config"
	"github.com/mediapruner/queue/internal/queue"
	"github.com/mediapruner/queue/internal/queue/eventbus"
	"github.com/mediapruner/queue/pkg/middleware"
	"github.com/mediapruner/queue/pkg/websocket"
)

// parseAllowedOrigins parses comma-separated origins into a slice.
func parseAllowedOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// RouterConfig holds dependencies for setting up routes.
type RouterConfig struct {
	Config       *config.Config
	QueueService *queue.Service
	Worker       *queue.Worker
	Bus          *eventbus.Bus
	WebSocketHub *websocket.Hub
	DB           HealthChecker
	Redis        HealthChecker
}

// NewRouter creates a new chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(cfg.Config.Security.MaxRequestBodySize))

	allowedOrigins := parseAllowedOrigins(cfg.Config.Security.CORSAllowedOrigins)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: len(allowedOrigins) > 0,
		MaxAge:           300,
	}))

	r.Use(middleware.RateLimit(cfg.Config.Security.RateLimitRPS, cfg.Config.Security.RateLimitBurst))

	healthHandler := NewHealthHandler(cfg.DB, cfg.Redis)
	queueHandler := NewQueueHandler(cfg.QueueService, cfg.Worker, cfg.Config.Queue.DebugMode, cfg.Config.Queue.DefaultListLimit)
	streamHandler := NewStreamHandler(cfg.QueueService, cfg.Bus, cfg.Config.Queue.StreamPingInterval)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Check)
		r.Get("/ready", healthHandler.Ready)
		r.Get("/live", healthHandler.Live)
	})

	r.Route("/api/queues", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", queueHandler.CreateTask)
			r.Get("/", queueHandler.ListTasks)
			r.Post("/clear", queueHandler.ClearTasks)
			r.Get("/{id}", queueHandler.GetTask)
			r.Post("/{id}/cancel", queueHandler.CancelTask)
		})

		r.Get("/ongoing", queueHandler.Ongoing)

		r.Route("/worker", func(r chi.Router) {
			r.Get("/", queueHandler.WorkerStatus)
			r.Get("/debug", queueHandler.WorkerDebug)
			r.Post("/start", queueHandler.WorkerStart)
			r.Post("/stop", queueHandler.WorkerStop)
			r.Post("/run-once", queueHandler.WorkerRunOnce)
		})

		r.Get("/stream", streamHandler.ServeHTTP)
	})

	if cfg.WebSocketHub != nil {
		wsHandler := websocket.NewHandler(cfg.WebSocketHub)
		r.Get("/ws", wsHandler.ServeHTTP)
	}

	return r
}
