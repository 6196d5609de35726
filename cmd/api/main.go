package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"boardmeta-api/internal/cache"
	"boardmeta-api/internal/config"
	"boardmeta-api/internal/fetcher"
	"boardmeta-api/internal/handler"
	"boardmeta-api/internal/repository"
	"boardmeta-api/internal/router"
	"boardmeta-api/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting boardmeta API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize game repository based on config
	var repo repository.GameRepository
	var err error
	switch cfg.Store.Type {
	case "mysql":
		repo, err = repository.NewMySQLGameRepository(cfg.Store.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL store: %v", err)
		}
	case "postgres", "postgresql":
		repo, err = repository.NewPostgresGameRepository(cfg.Store.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL store: %v", err)
		}
	default: // sqlite
		repo, err = repository.NewSQLiteGameRepository(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite store: %v", err)
		}
	}
	defer repo.Close()

	// Initialize byte cache (cooldown marks + fetched pages)
	var byteCache cache.Cache
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, falling back to memory cache: %v", err)
			byteCache = cache.NewMemoryCache()
		} else {
			log.Println("Redis cache initialized")
			byteCache = redisCache
		}
	} else {
		byteCache = cache.NewMemoryCache()
	}
	defer byteCache.Close()

	// Load the catalog into the search cache
	searchCache := cache.NewSearchCache()
	records, err := repo.LoadCatalog(context.Background())
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	searchCache.LoadGames(records)
	log.Printf("Search cache loaded with %d games", searchCache.Count())

	// Initialize fetcher and enrichment service
	pageFetcher := fetcher.New(cfg.Fetcher, byteCache)
	enrichmentService := service.NewEnrichmentService(
		repo, pageFetcher, searchCache, byteCache, cfg.Cache.PageTTL, cfg.Enrichment)

	// Optional scheduled bulk enrichment
	var scheduler *service.Scheduler
	if cfg.Enrichment.CronSpec != "" {
		scheduler = service.NewScheduler(enrichmentService, cfg.Enrichment.CronSpec)
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer scheduler.Stop()
	}

	// Initialize handlers
	healthHandler := handler.New(searchCache, cfg.App.Version)
	searchHandler := handler.NewSearchHandler(searchCache)
	enrichmentHandler := handler.NewEnrichmentHandler(enrichmentService)

	// Create router
	r := router.New(router.Config{
		Handler:           healthHandler,
		SearchHandler:     searchHandler,
		EnrichmentHandler: enrichmentHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Ask a running bulk job to stop; it finishes the current item.
	enrichmentService.StopBulk()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
