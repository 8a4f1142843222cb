package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otcheredev/dicom-catalog-indexer/internal/cache"
	"github.com/otcheredev/dicom-catalog-indexer/internal/catalog"
	"github.com/otcheredev/dicom-catalog-indexer/internal/config"
	"github.com/otcheredev/dicom-catalog-indexer/internal/database"
	"github.com/otcheredev/dicom-catalog-indexer/internal/events"
	"github.com/otcheredev/dicom-catalog-indexer/internal/handlers"
	"github.com/otcheredev/dicom-catalog-indexer/internal/indexer"
	"github.com/otcheredev/dicom-catalog-indexer/internal/middleware"
	"github.com/otcheredev/dicom-catalog-indexer/internal/repository"
	"github.com/otcheredev/dicom-catalog-indexer/internal/rules"
	"github.com/otcheredev/dicom-catalog-indexer/internal/tagcache"
	"github.com/otcheredev/dicom-catalog-indexer/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting DICOM catalog indexer")

	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	var cacheImpl cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.Type == "redis" {
			addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			cacheImpl, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to connect to Redis")
			}
			log.Info().Msg("Redis cache initialized")
		} else {
			cacheImpl = cache.NewMemoryCache()
			log.Info().Msg("Memory cache initialized")
		}
	} else {
		cacheImpl = cache.NewMemoryCache()
		log.Info().Msg("Cache disabled, using memory cache as fallback")
	}

	pipeline := rules.NewPipeline()
	tagStore := tagcache.NewStore(cacheImpl)

	precache := dedupTagKeys(pipeline.RequiredTags(), cfg.Catalog.TagsToPrecache)
	catalogStore := catalog.New(tagStore, cfg.Catalog.StorageRoot, precache, log.Logger)
	fieldsUpdater := catalog.NewDisplayFieldsUpdater(catalogStore, pipeline)
	runLogRepo := repository.NewRunLogRepository()

	coordinator := indexer.New(catalogStore, fieldsUpdater, runLogRepo, log.Logger)
	go drainEvents(coordinator)

	healthHandler := handlers.NewHealthHandler()
	indexingHandler := handlers.NewIndexingHandler(coordinator)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1/index", func(r chi.Router) {
		r.Post("/file", indexingHandler.AddFile)
		r.Post("/directory", indexingHandler.AddDirectory)
		r.Post("/files", indexingHandler.AddListOfFiles)
		r.Post("/dicomdir", indexingHandler.AddDicomdir)
		r.Post("/cancel", indexingHandler.Cancel)
		r.Get("/status", indexingHandler.Status)
		r.Get("/counts", indexingHandler.Counts)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// drainEvents logs every event the coordinator emits; a real UI would
// instead fan these out over a websocket or SSE stream.
func drainEvents(c *indexer.Coordinator) {
	for ev := range c.Events() {
		switch ev.Kind {
		case events.Progress:
			log.Debug().Int("percent", ev.Percent).Msg("indexing progress")
		case events.IndexingFilePath:
			log.Debug().Str("path", ev.FilePath).Msg("indexing file")
		case events.IndexingComplete:
			log.Info().
				Int("patients", ev.Deltas.Patients).
				Int("studies", ev.Deltas.Studies).
				Int("series", ev.Deltas.Series).
				Int("instances", ev.Deltas.Instances).
				Msg("indexing batch complete")
		}
	}
}

// dedupTagKeys unions any number of tag-key slices, preserving first-seen order.
func dedupTagKeys(groups ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range groups {
		for _, k := range g {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
