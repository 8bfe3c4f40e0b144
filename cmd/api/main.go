package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/kbengine/internal/api"
	"github.com/nikhilbhutani/kbengine/internal/config"
	"github.com/nikhilbhutani/kbengine/internal/database"
	"github.com/nikhilbhutani/kbengine/internal/embedding"
	"github.com/nikhilbhutani/kbengine/internal/engine"
	"github.com/nikhilbhutani/kbengine/internal/index"
	"github.com/nikhilbhutani/kbengine/internal/llm"
	"github.com/nikhilbhutani/kbengine/internal/respcache"
	"github.com/nikhilbhutani/kbengine/internal/search"
	"github.com/nikhilbhutani/kbengine/pkg/chunker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, response cache degraded to misses", "error", err)
	}
	defer rdb.Close()

	eng := buildEngine(db, rdb, cfg)

	router := api.NewRouter(db, rdb, cfg, eng)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func buildEngine(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *engine.Engine {
	gw := llm.NewGateway(cfg.LLM)

	embedSvc := embedding.NewService(gw, cfg.LLM.EmbeddingModel, embedding.Options{
		BatchSize:  cfg.Retrieval.EmbedBatchSize,
		Workers:    cfg.Retrieval.EmbedWorkers,
		MaxRetries: cfg.LLM.MaxRetries,
	})

	store := index.NewPgStore(db)

	searcher := search.NewEngine(store, embedSvc, search.Options{
		VectorWeight:    cfg.Retrieval.VectorWeight,
		LexicalWeight:   cfg.Retrieval.LexicalWeight,
		OverfetchFactor: cfg.Retrieval.OverfetchFactor,
		Timeout:         cfg.Retrieval.QueryTimeout,
	})

	cache := respcache.NewRedisCache(rdb, cfg.Cache.SimilarityThreshold, cfg.Cache.TTL)

	return engine.New(store, embedSvc, searcher, cache, gw, chunker.Options{
		MaxTokens:     cfg.Retrieval.MaxChunkTokens,
		OverlapTokens: cfg.Retrieval.ChunkOverlapTokens,
	}, cfg.LLM.DefaultModel)
}
