package config

import (
	"fmt"
	"log"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Provider names
const (
	ProviderGemini     = "gemini"
	ProviderGroq       = "groq"
	ProviderAssemblyAI = "assemblyai"
)

// Storage backends
const (
	StorageMinIO = "minio"
	StorageS3    = "s3"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	JWT      JWTConfig
	AI       AIConfig
	Pipeline PipelineConfig
	Worker   WorkerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Environment     string        `envconfig:"ENVIRONMENT" default:"development"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	MaxUploadBytes  int64         `envconfig:"MAX_UPLOAD_BYTES" default:"209715200"`
}

// IsProduction reports whether the server runs in production mode
func (c ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"meeting_minutes"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type            string `envconfig:"STORAGE_TYPE" default:"minio"` // "minio" or "s3"
	Endpoint        string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"STORAGE_BUCKET" default:"meeting-minutes"`
	UseSSL          bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
	Region          string `envconfig:"STORAGE_REGION"`
	Prefix          string `envconfig:"STORAGE_PREFIX" default:"recordings"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	AccessSecret string        `envconfig:"JWT_ACCESS_SECRET" default:"your-access-secret-change-in-production"`
	AccessExpiry time.Duration `envconfig:"JWT_ACCESS_EXPIRY" default:"15m"`
	Issuer       string        `envconfig:"JWT_ISSUER" default:"meeting-minutes"`
}

// AIConfig selects and configures the remote model
type AIConfig struct {
	Provider    string        `envconfig:"AI_PROVIDER" default:"gemini"`
	Transcriber string        `envconfig:"AI_TRANSCRIBER" default:"gemini"`
	BaseURL     string        `envconfig:"AI_BASE_URL"`
	Model       string        `envconfig:"AI_MODEL"`
	APIKey      string        `envconfig:"AI_API_KEY"`
	Timeout     time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	// AssemblyAIAPIKey is the service key for chunk transcription. It is
	// separate from the per-user model key.
	AssemblyAIAPIKey string `envconfig:"ASSEMBLYAI_API_KEY"`
	// AssemblyAIBaseURL overrides the SDK endpoint
	AssemblyAIBaseURL string `envconfig:"ASSEMBLYAI_BASE_URL"`
}

// PipelineConfig tunes chunking and retries
type PipelineConfig struct {
	ChunkSize   int64         `envconfig:"PIPELINE_CHUNK_SIZE" default:"18874368"`
	ChunkDelay  time.Duration `envconfig:"PIPELINE_CHUNK_DELAY" default:"2s"`
	MaxAttempts int           `envconfig:"PIPELINE_MAX_ATTEMPTS" default:"6"`
	BaseDelay   time.Duration `envconfig:"PIPELINE_BASE_DELAY" default:"2s"`
	MaxDelay    time.Duration `envconfig:"PIPELINE_MAX_DELAY" default:"60s"`
	PromptsFile string        `envconfig:"PIPELINE_PROMPTS_FILE"`
}

// WorkerConfig sizes the background processing pool
type WorkerConfig struct {
	Count              int           `envconfig:"WORKER_COUNT" default:"2"`
	QueueSize          int           `envconfig:"WORKER_QUEUE_SIZE" default:"32"`
	StaleAfter         time.Duration `envconfig:"WORKER_STALE_AFTER" default:"2h"`
	SweepInterval      time.Duration `envconfig:"WORKER_SWEEP_INTERVAL" default:"10m"`
	AudioRetentionDays int           `envconfig:"AUDIO_RETENTION_DAYS" default:"0"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Worker.Validate(); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return validation.ValidateStruct(&c.JWT,
		validation.Field(&c.JWT.AccessSecret, validation.Required, validation.Length(16, 0)),
	)
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.Environment, validation.In("development", "staging", "production")),
		validation.Field(&c.MaxUploadBytes, validation.Min(int64(1))),
	)
}

// Validate validates the storage configuration
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Type, validation.Required, validation.In(StorageMinIO, StorageS3)),
		validation.Field(&c.BucketName, validation.Required),
		validation.Field(&c.Endpoint, validation.When(c.Type == StorageMinIO, validation.Required)),
	)
}

// Validate validates the AI configuration
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(ProviderGemini, ProviderGroq)),
		validation.Field(&c.Transcriber,
			validation.In(ProviderGemini, ProviderAssemblyAI),
			// groq cannot take audio, so chunks need a dedicated transcriber
			validation.When(c.Provider == ProviderGroq,
				validation.Required.Error("must be assemblyai when AI_PROVIDER=groq"),
				validation.In(ProviderAssemblyAI).Error("must be assemblyai when AI_PROVIDER=groq"),
			),
		),
		validation.Field(&c.AssemblyAIAPIKey,
			validation.When(c.Transcriber == ProviderAssemblyAI, validation.Required.Error("ASSEMBLYAI_API_KEY is required for the assemblyai transcriber")),
		),
		validation.Field(&c.Timeout, validation.Min(time.Second)),
	)
}

// Validate validates the pipeline configuration
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1), validation.Max(20)),
		validation.Field(&c.BaseDelay, validation.Required),
	)
}

// Validate validates the worker configuration
func (c *WorkerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Count, validation.Required, validation.Min(1)),
		validation.Field(&c.QueueSize, validation.Required, validation.Min(1)),
		validation.Field(&c.AudioRetentionDays, validation.Min(0)),
	)
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
