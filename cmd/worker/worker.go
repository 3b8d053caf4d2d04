package main

import (
	"context"
	"log"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/hibiken/asynq"
	"google.golang.org/api/option"

	"knowledge-ingest-platform/internal/acquire"
	"knowledge-ingest-platform/internal/chunker"
	"knowledge-ingest-platform/internal/config"
	"knowledge-ingest-platform/internal/enrich"
	"knowledge-ingest-platform/internal/fingerprint"
	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/internal/pipeline"
	"knowledge-ingest-platform/internal/queue"
	"knowledge-ingest-platform/internal/store"
)

// The worker consumes manual re-ingest tasks. It shares the watcher
// process's pipeline wiring but has no filesystem watchers of its own.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	ctx := context.Background()

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	var st store.Store = store.NewMongoStore(mongoClient, cfg.DBName)
	if cfg.ArchiveDBName != "" {
		st = store.NewFanout(st, store.NewMongoStore(mongoClient, cfg.ArchiveDBName))
	}

	var genaiClient *genai.Client
	if cfg.GeminiAPIKey != "" {
		genaiClient, err = genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			log.Fatal("Failed to initialize Gemini client:", err)
		}
		defer genaiClient.Close()
	}

	local := []acquire.Strategy{acquire.NewLocalStrategy(cfg.LocalTimeout)}
	var remote []acquire.Strategy
	for _, name := range cfg.RemoteStrategies {
		switch name {
		case "grounded":
			if genaiClient != nil {
				remote = append(remote, acquire.NewGroundedFetchStrategy(genaiClient, cfg.GeminiModel, cfg.GroundedTimeout))
			}
		case "scrape":
			remote = append(remote, acquire.NewScrapeStrategy(cfg.ScrapeTimeout))
		case "crawl":
			remote = append(remote, acquire.NewCrawlStrategy(cfg.CrawlMaxPages, cfg.CrawlTimeout))
		}
	}

	enrichQueue := enrich.NewQueue(
		enrich.NewGeminiEnricher(genaiClient, cfg.GeminiModel),
		cfg.ProviderRPM,
		cfg.ProviderConcurrency,
		cfg.MaxEnrichBytes,
		cfg.EnrichTimeout,
	)
	enrichQueue.Start(ctx)
	defer enrichQueue.Close()

	pipe := pipeline.New(
		fingerprint.New(),
		acquire.NewOrchestrator(local, remote, cfg.MinContentLength),
		enrichQueue,
		chunker.New(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize),
		st,
	)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.AsynqConcurrent,
			Queues: map[string]int{
				cfg.AsynqQueueName: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(pipe)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskReingestItem, processor.HandleReingest)

	logger.Info("Starting re-ingest worker", "concurrency", cfg.AsynqConcurrent, "redis", redisOpt.Addr)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
