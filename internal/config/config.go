package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string

	// Optional mirror database receiving a copy of every write
	ArchiveDBName string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Gemini provider
	GeminiAPIKey string
	GeminiModel  string
	GeminiTier   string

	// Watched projects, "alias=path" pairs
	ProjectRoots []string

	// ChangeWatcher
	IgnoreGlobs    []string
	DebounceWindow time.Duration

	// AcquisitionOrchestrator
	RemoteStrategies []string
	LocalTimeout     time.Duration
	GroundedTimeout  time.Duration
	ScrapeTimeout    time.Duration
	CrawlTimeout     time.Duration
	CrawlMaxPages    int
	MinContentLength int

	// EnrichmentQueue
	ProviderRPM         int
	ProviderConcurrency int
	EnrichTimeout       time.Duration
	MaxEnrichBytes      int64

	// ChunkingEngine
	MaxChunkSize int
	ChunkOverlap int
	MinChunkSize int

	// Pipeline scheduling
	WorkerCount   int
	SweepInterval time.Duration

	// Observability
	LogLevel        string
	TracingEnabled  bool
	OTLPEndpoint    string
	CacheChunkTTL   time.Duration
	CacheEnabled    bool
	AsynqQueueName  string
	AsynqConcurrent int
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		err := godotenv.Load()
		if err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	tier := getEnv("GEMINI_TIER", "free")

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/knowledge_ingest"),
		DBName:   getEnv("DB_NAME", "knowledge_ingest"),

		ArchiveDBName: getEnv("ARCHIVE_DB_NAME", ""),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:   tier,

		ProjectRoots: splitNonEmpty(getEnv("PROJECT_ROOTS", "")),

		IgnoreGlobs: splitNonEmpty(getEnv("IGNORE_GLOBS",
			"**/.*,**/.git/**,**/node_modules/**,**/vendor/**,**/__pycache__/**,**/dist/**,**/build/**,**/target/**")),
		DebounceWindow: getEnvDuration("DEBOUNCE_WINDOW", 2*time.Second),

		RemoteStrategies: splitNonEmpty(getEnv("REMOTE_STRATEGIES", "grounded,scrape,crawl")),
		LocalTimeout:     getEnvDuration("LOCAL_TIMEOUT", 15*time.Second),
		GroundedTimeout:  getEnvDuration("GROUNDED_TIMEOUT", 45*time.Second),
		ScrapeTimeout:    getEnvDuration("SCRAPE_TIMEOUT", 60*time.Second),
		CrawlTimeout:     getEnvDuration("CRAWL_TIMEOUT", 90*time.Second),
		CrawlMaxPages:    getEnvInt("CRAWL_MAX_PAGES", 10),
		MinContentLength: getEnvInt("MIN_CONTENT_LENGTH", 8),

		ProviderRPM:         getEnvInt("PROVIDER_RPM", tierRPM(tier)),
		ProviderConcurrency: getEnvInt("PROVIDER_CONCURRENCY", 2),
		EnrichTimeout:       getEnvDuration("ENRICH_TIMEOUT", 60*time.Second),
		MaxEnrichBytes:      getEnvInt64("MAX_ENRICH_BYTES", 1048576), // 1MB

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		MinChunkSize: getEnvInt("MIN_CHUNK_SIZE", 100),

		WorkerCount:   getEnvInt("WORKER_COUNT", 4),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 30*time.Minute),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		TracingEnabled:  getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:    getEnv("OTLP_ENDPOINT", "localhost:4317"),
		CacheChunkTTL:   getEnvDuration("CACHE_CHUNK_TTL", 1*time.Hour),
		CacheEnabled:    getEnvBool("CACHE_ENABLED", false),
		AsynqQueueName:  getEnv("ASYNQ_QUEUE", "ingest"),
		AsynqConcurrent: getEnvInt("ASYNQ_CONCURRENCY", 10),
	}

	if cfg.ProviderRPM <= 0 {
		return nil, fmt.Errorf("PROVIDER_RPM must be positive")
	}
	if cfg.ProviderConcurrency <= 0 {
		return nil, fmt.Errorf("PROVIDER_CONCURRENCY must be positive")
	}
	if cfg.DebounceWindow <= 0 {
		return nil, fmt.Errorf("DEBOUNCE_WINDOW must be positive")
	}
	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("WORKER_COUNT must be positive")
	}

	return cfg, nil
}

// ParseProjectRoot splits an "alias=path" pair. A bare path gets its base
// name as alias.
// tierRPM maps a Gemini billing tier to its documented requests-per-minute
// ceiling. PROVIDER_RPM overrides it when set.
func tierRPM(tier string) int {
	switch tier {
	case "tier1":
		return 1000
	case "tier2":
		return 2000
	default: // free
		return 10
	}
}

func ParseProjectRoot(entry string) (alias, root string) {
	if i := strings.IndexByte(entry, '='); i > 0 {
		return entry[:i], entry[i+1:]
	}
	parts := strings.Split(strings.TrimRight(entry, "/"), "/")
	return parts[len(parts)-1], entry
}

func splitNonEmpty(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
