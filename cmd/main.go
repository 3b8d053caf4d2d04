package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"knowledge-ingest-platform/internal/acquire"
	"knowledge-ingest-platform/internal/chunker"
	"knowledge-ingest-platform/internal/config"
	"knowledge-ingest-platform/internal/enrich"
	"knowledge-ingest-platform/internal/fingerprint"
	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/internal/pipeline"
	"knowledge-ingest-platform/internal/store"
	"knowledge-ingest-platform/internal/sweeper"
	"knowledge-ingest-platform/internal/telemetry"
	"knowledge-ingest-platform/internal/watcher"
	"knowledge-ingest-platform/models"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Distributed tracing (optional)
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("knowledge-ingest", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Failed to initialize tracing", "error", err)
		} else {
			defer shutdown()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer disconnectCancel()
		mongoClient.Disconnect(disconnectCtx)
	}()

	// Store stack: Mongo, optionally mirrored to an archive database and
	// fronted by a Redis chunk cache
	var st store.Store = store.NewMongoStore(mongoClient, cfg.DBName)
	if cfg.ArchiveDBName != "" {
		st = store.NewFanout(st, store.NewMongoStore(mongoClient, cfg.ArchiveDBName))
	}
	if cfg.CacheEnabled {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, chunk cache disabled", "error", err)
		} else {
			st = store.NewChunkCache(st, rdb, cfg.CacheChunkTTL)
			defer rdb.Close()
		}
	}

	// Register configured projects
	projects := make(map[string]string, len(cfg.ProjectRoots))
	for _, entry := range cfg.ProjectRoots {
		alias, root := config.ParseProjectRoot(entry)
		projects[alias] = root
		if err := st.UpsertProject(ctx, &models.Project{
			Alias:     alias,
			Root:      root,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			log.Fatal("Failed to register project:", err)
		}
	}
	if len(projects) == 0 {
		log.Fatal("No projects configured, set PROJECT_ROOTS")
	}

	// Gemini client is shared by the grounded-fetch strategy and enrichment
	var genaiClient *genai.Client
	if cfg.GeminiAPIKey != "" {
		genaiClient, err = genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			log.Fatal("Failed to initialize Gemini client:", err)
		}
		defer genaiClient.Close()
	} else {
		logger.Warn("GEMINI_API_KEY not set, grounded fetch and enrichment disabled")
	}

	// Acquisition strategy chains
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
		default:
			logger.Warn("Unknown remote strategy, skipping", "strategy", name)
		}
	}
	orchestrator := acquire.NewOrchestrator(local, remote, cfg.MinContentLength)

	// Enrichment behind provider rate limits
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
		orchestrator,
		enrichQueue,
		chunker.New(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize),
		st,
	)
	if metrics, err := telemetry.InitMetrics(); err != nil {
		logger.Warn("Failed to initialize metrics", "error", err)
	} else {
		pipe.SetMetrics(metrics)
	}
	coordinator := pipeline.NewCoordinator(pipe, cfg.WorkerCount)

	// One watcher per project so events carry their project context
	var watchers []*watcher.Watcher
	for alias, root := range projects {
		w, err := watcher.New([]string{root}, cfg.IgnoreGlobs, cfg.DebounceWindow)
		if err != nil {
			log.Fatal("Failed to watch project root:", err)
		}
		watchers = append(watchers, w)

		go w.Run(ctx)
		go coordinator.Run(ctx, alias, w.Events())

		logger.Info("Watching project", "project", alias, "root", root)
	}

	// Initial scan plus periodic remote re-checks
	sw, err := sweeper.New(coordinator, st, cfg.SweepInterval, cfg.IgnoreGlobs)
	if err != nil {
		log.Fatal("Failed to create sweeper:", err)
	}
	for alias, root := range projects {
		go func(alias, root string) {
			if err := sw.ScanProject(ctx, alias, root); err != nil && ctx.Err() == nil {
				logger.Error("Initial scan failed", "project", alias, "error", err)
			}
		}(alias, root)
	}
	if err := sw.Start(ctx); err != nil {
		log.Fatal("Failed to start sweeper:", err)
	}

	logger.Info("Ingestion pipeline running", "projects", len(projects), "workers", cfg.WorkerCount)

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	cancel()
	sw.Stop()
	for _, w := range watchers {
		w.Close()
	}
	coordinator.Wait()

	logger.Info("Pipeline exited")
}
