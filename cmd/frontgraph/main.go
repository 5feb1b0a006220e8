package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/raki39/FRONTGraph-sub001/internal/config"
	"github.com/raki39/FRONTGraph-sub001/internal/database"
	"github.com/raki39/FRONTGraph-sub001/internal/embedding"
	"github.com/raki39/FRONTGraph-sub001/internal/handler"
	"github.com/raki39/FRONTGraph-sub001/internal/history"
	"github.com/raki39/FRONTGraph-sub001/internal/repository"
	"github.com/raki39/FRONTGraph-sub001/internal/router"
	"github.com/raki39/FRONTGraph-sub001/internal/worker"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connected: %s", cfg.Database.DBName)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	repos := repository.NewRepositories(db.DB)

	// Embedding stack is optional: when the provider is not configured the
	// service degrades to recent-session and text search.
	var embedClient *embedding.Client
	var embedWorker *worker.EmbeddingWorker
	if embedder := embedding.NewProviderEmbedder(context.Background(), cfg); embedder != nil {
		cache := embedding.NewRedisCache(redisClient)
		ttl := time.Duration(cfg.Embedding.CacheTTL) * time.Second
		embedClient = embedding.NewClient(embedder, cfg.Embedding.Model, cache, ttl)

		embedWorker = worker.NewEmbeddingWorker(embedClient, repos.Embedding, 128)
		embedWorker.Start()
		defer embedWorker.Stop()
	} else {
		log.Printf("Warning: embedding provider unavailable, semantic search disabled")
	}

	var vectors history.VectorSearcher
	var embedderIface history.Embedder
	var scheduler history.EnrichmentScheduler
	if embedClient != nil {
		vectors = repos.Embedding
		embedderIface = embedClient
		scheduler = embedWorker
	}

	svc := history.NewService(repos.Chat, vectors, embedderIface, scheduler, history.Options{
		Enabled:             cfg.History.Enabled,
		MaxMessages:         cfg.History.MaxMessages,
		SimilarityThreshold: cfg.History.SimilarityThreshold,
	})

	handlers := handler.NewHandlers(svc, repos)
	r := router.SetupRouter(handlers)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
