package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/cloo-solutions/kitguide/migrations"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// DatabaseURL takes precedence over the individual DB_* settings.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBHost      string `envconfig:"DB_HOST"`
	DBPort      int    `envconfig:"DB_PORT" default:"5432"`
	DBName      string `envconfig:"DB_NAME"`
	DBUser      string `envconfig:"DB_USER"`
	DBPassword  string `envconfig:"DB_PASSWORD"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"all-MiniLM-L6-v2"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	EmbeddingBaseURL    string `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingAPIKey     string `envconfig:"EMBEDDING_API_KEY"`

	VisionModel     string `envconfig:"VISION_MODEL" default:"gemini-2.5-flash"`
	GenerationModel string `envconfig:"GENERATION_MODEL" default:"gemini-2.5-flash"`

	CorpusDir            string `envconfig:"CORPUS_DIR" default:"manuals"`
	DetectionWeightsPath string `envconfig:"DETECTION_WEIGHTS_PATH"`
	DetectorURL          string `envconfig:"DETECTOR_URL"`
	OutputDir            string `envconfig:"OUTPUT_DIR" default:"runs_output"`
	// ImageDir bounds the server-side image paths accepted by POST /guide.
	// Empty means only files under OUTPUT_DIR/uploads.
	ImageDir             string `envconfig:"IMAGE_DIR"`

	KNearest int `envconfig:"K_NEAREST" default:"5"`

	IngestWorkers      int           `envconfig:"INGEST_WORKERS" default:"1"`
	IngestInterval     time.Duration `envconfig:"INGEST_INTERVAL" default:"1s"`
	IngestBatchSize    int           `envconfig:"INGEST_BATCH_SIZE" default:"50"`
	ReplacePages       bool          `envconfig:"REPLACE_PAGES" default:"false"`
	CorpusSyncInterval time.Duration `envconfig:"CORPUS_SYNC_INTERVAL" default:"0s"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`

	PromptsFile string `envconfig:"PROMPTS_FILE"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// Requirement selects which credentials a command needs.
type Requirement int

const (
	// RequireStore needs only the database.
	RequireStore Requirement = 1 << iota
	// RequireModels needs the generation/vision credential.
	RequireModels
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KITGUIDE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every missing setting for the given requirement as a
// single CONFIG_ERROR.
func (c *Config) Validate(req Requirement) error {
	var missing []string

	if req&RequireStore != 0 && c.DatabaseURL == "" {
		for _, f := range []struct{ name, value string }{
			{"KITGUIDE_DB_HOST", c.DBHost},
			{"KITGUIDE_DB_NAME", c.DBName},
			{"KITGUIDE_DB_USER", c.DBUser},
			{"KITGUIDE_DB_PASSWORD", c.DBPassword},
		} {
			if f.value == "" {
				missing = append(missing, f.name)
			}
		}
	}

	if req&RequireModels != 0 && !c.HasOpenAI() {
		missing = append(missing, "KITGUIDE_OPENAI_API_KEY")
	}

	if len(missing) > 0 {
		return domain.Wrap(domain.ErrMissingConfig, fmt.Errorf("%s", strings.Join(missing, ", ")))
	}

	if c.EmbeddingDimensions <= 0 {
		return domain.Wrap(domain.ErrMissingConfig, fmt.Errorf("KITGUIDE_EMBEDDING_DIMENSIONS must be positive"))
	}
	if c.EmbeddingDimensions != migrations.EmbeddingDimensions {
		return domain.Wrap(domain.ErrDimensionMismatch,
			fmt.Errorf("KITGUIDE_EMBEDDING_DIMENSIONS is %d, the assembly_steps schema stores %d", c.EmbeddingDimensions, migrations.EmbeddingDimensions))
	}
	if c.KNearest <= 0 {
		return domain.Wrap(domain.ErrMissingConfig, fmt.Errorf("KITGUIDE_K_NEAREST must be positive"))
	}

	return nil
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   c.DBHost + ":" + strconv.Itoa(c.DBPort),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// EmbeddingCredentials returns the key and base URL for the embedding server,
// falling back to the generation API settings.
func (c *Config) EmbeddingCredentials() (apiKey, baseURL string) {
	apiKey, baseURL = c.EmbeddingAPIKey, c.EmbeddingBaseURL
	if apiKey == "" {
		apiKey = c.OpenAIAPIKey
	}
	if baseURL == "" {
		baseURL = c.OpenAIBaseURL
	}
	return apiKey, baseURL
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasDetector() bool {
	return c.DetectorURL != ""
}
