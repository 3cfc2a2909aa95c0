package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"filescan-service/internal/api"
	"filescan-service/internal/config"
	"filescan-service/internal/entity"
	"filescan-service/internal/kv"
	"filescan-service/internal/logger"
	"filescan-service/internal/model"
	"filescan-service/internal/scan"
	"filescan-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	log.Info().Str("version", cfg.App.Version).Msg("Starting API server")

	store, closeStore, err := newStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to initialize keyed store")
	}
	defer closeStore()

	scans := entity.NewCollection(store, "scans", func(r model.ScanRecord) string { return r.ID })
	users := entity.NewCollection(store, "users", func(r model.User) string { return r.ID })
	chats := entity.NewCollection(store, "chats", func(r model.Chat) string { return r.ID })
	messages := entity.NewCollection(store, "messages", func(r model.ChatMessage) string { return r.ID })

	driverCtx, cancelDriver := context.WithCancel(context.Background())
	defer cancelDriver()

	driver := scan.NewDriver(scans, cfg.Scan)
	driver.Start(driverCtx)

	var archive storage.Storage
	if cfg.Archive.Enabled {
		s3Archive, err := storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 archive")
		}
		archive = s3Archive
	}

	handler := api.NewHandler(scans, users, chats, messages, driver, archive, cfg)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(api.CORSMiddleware())
	router.Use(api.LoggingMiddleware())
	router.Use(api.RecoveryMiddleware())

	api.SetupRoutes(router, handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight deferred transitions finish or are abandoned here; a scan
	// left in processing is picked up again only through an explicit retry.
	cancelDriver()
	driver.Stop()

	log.Info().Msg("Server exited")
}

func newStore(cfg *config.Config) (kv.Store, func(), error) {
	switch cfg.Store.Backend {
	case "memory", "":
		return kv.NewMemoryStore(), func() {}, nil
	case "redis":
		store, err := kv.NewRedisStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "mysql":
		store, err := kv.NewMySQLStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
