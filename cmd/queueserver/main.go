package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediapruner/queue/internal/config"
	"github.com/mediapruner/queue/internal/database"
	"github.com/mediapruner/queue/internal/providers"
	"github.com/mediapruner/queue/internal/queue"
	"github.com/mediapruner/queue/internal/queue/eventbus"
	"github.com/mediapruner/queue/pkg/api"
	"github.com/mediapruner/queue/pkg/logger"
	"github.com/mediapruner/queue/pkg/websocket"
)

func main() {
	logger.StartPeriodicFlush()
	defer logger.FlushLogs()

	logger.Info("queueserver starting", map[string]interface{}{"version": "1.0.0"})

	cfg := config.MustLoad()
	log.Println("Configuration loaded")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	db, err := database.NewPostgresDB(ctx, cfg.Database)
	if err != nil {
		cancel()
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Redis is an optional secondary transport: the in-process event bus
	// and the HTTP API work without it. Only the cross-instance SSE
	// mirror and the websocket bridge need it.
	redisDB, err := database.NewRedisDB(ctx, cfg.Redis)
	if err != nil {
		log.Printf("Redis unavailable, running without cross-instance fan-out: %v", err)
		redisDB = nil
	} else {
		defer redisDB.Close()
		log.Println("Connected to Redis")
	}
	cancel()

	bus := eventbus.NewWithCapacity(cfg.Queue.SubscriberBuffer)

	// NewBusPublisher takes a redisPublisher interface; passing a nil
	// *database.RedisDB through it directly would produce a non-nil
	// interface wrapping a nil pointer, so route through the typed nil
	// check here instead.
	var publisher *queue.BusPublisher
	if redisDB != nil {
		publisher = queue.NewBusPublisher(bus, redisDB)
	} else {
		publisher = queue.NewBusPublisher(bus, nil)
	}

	store := queue.NewPostgresStore(db.Pool)

	registry := queue.NewHandlerRegistry()
	queue.RegisterCoreHandlers(registry, coreHandlerDeps(cfg, store))

	service := queue.NewService(store, publisher, registry)
	worker := queue.NewWorker(store, publisher, registry, cfg.Queue.PollInterval)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	worker.Start(workerCtx)
	log.Println("Queue worker started")

	var wsHub *websocket.Hub
	if redisDB != nil {
		wsHub = websocket.NewHub()
		go wsHub.Run(workerCtx)
		go websocket.BridgeRedisToHub(workerCtx, redisDB.Client, wsHub, queue.RedisChannel)
		log.Println("WebSocket hub started, bridged to Redis")
	}

	var dbHealth, redisHealth api.HealthChecker = db, nil
	if redisDB != nil {
		redisHealth = redisDB
	}

	router := api.NewRouter(api.RouterConfig{
		Config:       cfg,
		QueueService: service,
		Worker:       worker,
		Bus:          bus,
		WebSocketHub: wsHub,
		DB:           dbHealth,
		Redis:        redisHealth,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down...")

	worker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	workerCancel()
	log.Println("Stopped")
}

// coreHandlerDeps wires the real provider implementations configured via
// environment variables. Any provider left unconfigured (empty API key
// or base URL) still registers; calls to it fail with a descriptive
// error rather than panicking, so a deployment that only scans media
// without scraping metadata still starts cleanly.
func coreHandlerDeps(cfg *config.Config, store queue.Store) queue.CoreHandlerDeps {
	return queue.CoreHandlerDeps{
		Scanner: providers.NewFilesystemScanner(),
		Probe:   providers.NewFFProbe(""),
		TMDB:    providers.NewTMDBClient(cfg.TMDB.APIKey, cfg.TMDB.Timeout),
		OMDb:    providers.NewOMDbClient(cfg.OMDb.APIKey, cfg.OMDb.Timeout),
		History: providers.NewPlexTautulli(cfg.Plex.BaseURL, cfg.Plex.Token, cfg.Tautulli.BaseURL, cfg.Tautulli.APIKey, cfg.Plex.Timeout),
		Library: providers.NewInMemoryLibrary(),
		Store:   store,
	}
}
