package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"docqa"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docqa"`

	GeminiAPIKey string  `envconfig:"GEMINI_API_KEY"`
	EmbedModel   string  `envconfig:"EMBED_MODEL" default:"gemini-embedding-001"`
	GenModel     string  `envconfig:"GEN_MODEL" default:"gemini-1.5-flash"`
	Temperature  float32 `envconfig:"GEN_TEMPERATURE" default:"0.2"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"600"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"100"`
	SearchTopK   int `envconfig:"SEARCH_TOP_K" default:"8"`

	// HistoryWindow bounds the turns injected into the generation prompt.
	// MemoryWindow bounds generic reads (session history endpoint). They are
	// independent knobs.
	HistoryWindow int `envconfig:"HISTORY_WINDOW" default:"6"`
	MemoryWindow  int `envconfig:"MEMORY_WINDOW" default:"5"`

	IndexDir  string `envconfig:"INDEX_DIR" default:"data/vector_db"`
	UploadDir string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	NSQLookupd        string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost          string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP          string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	EnableAsyncIngest bool   `envconfig:"ENABLE_ASYNC_INGEST" default:"false"`

	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	MigrationPath   string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may come from the shell instead, so a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return errors.New("CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return errors.New("CHUNK_OVERLAP must be smaller than CHUNK_SIZE and not negative")
	}
	if c.SearchTopK <= 0 {
		return errors.New("SEARCH_TOP_K must be positive")
	}
	return nil
}
