package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/kbengine/internal/config"
	"github.com/nikhilbhutani/kbengine/internal/database"
	"github.com/nikhilbhutani/kbengine/internal/document"
	"github.com/nikhilbhutani/kbengine/internal/embedding"
	"github.com/nikhilbhutani/kbengine/internal/engine"
	"github.com/nikhilbhutani/kbengine/internal/index"
	"github.com/nikhilbhutani/kbengine/internal/llm"
	"github.com/nikhilbhutani/kbengine/internal/queue/workers"
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

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
	eng := engine.New(store, embedSvc, searcher, cache, gw, chunker.Options{
		MaxTokens:     cfg.Retrieval.MaxChunkTokens,
		OverlapTokens: cfg.Retrieval.ChunkOverlapTokens,
	}, cfg.LLM.DefaultModel)

	docSvc := document.NewService(db)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	mux := workers.NewMux(workers.NewIngestWorker(docSvc, eng))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
