// Package config loads product-service and import-worker settings from the
// environment, an optional .env file and, when enabled, AWS Secrets Manager.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	awspkg "github.com/samirvithlani/mayaa-backend/pkg/aws"
	"github.com/samirvithlani/mayaa-backend/services/product-service/database"
	"github.com/samirvithlani/mayaa-backend/services/product-service/queue"
)

// Secret names read when AWS_USE_SECRETS=true.
const (
	SecretMongoURI  = "product/MONGO_URI"
	SecretJWTSecret = "product/JWT_SECRET"
)

// Config holds all environment variables for the product-service and the
// import worker.
type Config struct {
	Env        string `validate:"required"`
	Port       string `validate:"required,numeric"`
	WorkerPort string `validate:"required,numeric"`

	RedisURL string `validate:"required"`

	ProductStore     string `validate:"oneof=mongo dynamodb"`
	MongoURI         string `validate:"required_if=ProductStore mongo"`
	MongoDB          string `validate:"required_if=ProductStore mongo"`
	DDBTableProducts string `validate:"required_if=ProductStore dynamodb"`

	QueueName         string        `validate:"required"`
	QueueDriver       string        `validate:"oneof=redis memory"`
	BatchSize         int           `validate:"min=1,max=1000"`
	WorkerConcurrency int           `validate:"min=1,max=32"`
	JobRetention      time.Duration `validate:"min=1m"`
	LockTTL           time.Duration `validate:"min=1s"`
	StagingDir        string
	ArchiveBucket     string
	ArchivePrefix     string
	UploadsPerMinute  int `validate:"min=1"`

	EventsSink     string   `validate:"oneof=none sns sqs kafka"`
	EventsTopicArn string   `validate:"required_if=EventsSink sns"`
	EventsQueueURL string   `validate:"required_if=EventsSink sqs"`
	KafkaBrokers   []string `validate:"required_if=EventsSink kafka"`
	KafkaTopic     string   `validate:"required_if=EventsSink kafka"`

	HistoryEnabled bool
	Postgres       database.PostgresConfig

	RequireAuth bool
	JWTSecret   string `validate:"required_if=RequireAuth true"`

	AllowedOrigins []string

	UseSecrets        bool
	AWS               awspkg.Settings
	CloudWatchEnabled bool
	LogGroup          string
	MetricsNamespace  string
}

// LoadConfig reads .env (if present) and the process environment, applies
// Secrets Manager overrides when AWS_USE_SECRETS=true and validates the
// result.
func LoadConfig(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.UseSecrets {
		awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWS)
		if err == nil {
			cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the environment without validating.
func FromEnv() (*Config, error) {
	e := &envReader{}

	cfg := &Config{
		Env:        e.str("APP_ENV", "development"),
		Port:       e.str("PORT", "8082"),
		WorkerPort: e.str("WORKER_PORT", "3000"),
		RedisURL:   e.str("REDIS_URL", "redis://redis:6379"),

		ProductStore:     strings.ToLower(e.str("PRODUCT_STORE", "mongo")),
		MongoURI:         e.str("MONGO_URI", "mongodb://mongo:27017"),
		MongoDB:          e.str("MONGO_DB", "mayaa"),
		DDBTableProducts: e.str("DDB_TABLE_PRODUCTS", "Products"),

		QueueName:         e.str("IMPORT_QUEUE_NAME", queue.DefaultName),
		QueueDriver:       strings.ToLower(e.str("IMPORT_QUEUE_DRIVER", "redis")),
		BatchSize:         e.integer("IMPORT_BATCH_SIZE", 100),
		WorkerConcurrency: e.integer("IMPORT_WORKER_CONCURRENCY", 1),
		JobRetention:      e.duration("IMPORT_JOB_RETENTION", queue.DefaultRetention),
		LockTTL:           e.duration("IMPORT_LOCK_TTL", queue.DefaultLockTTL),
		StagingDir:        e.str("IMPORT_STAGING_DIR", ""),
		ArchiveBucket:     e.str("IMPORT_ARCHIVE_BUCKET", ""),
		ArchivePrefix:     e.str("IMPORT_ARCHIVE_PREFIX", "imports/"),
		UploadsPerMinute:  e.integer("IMPORT_UPLOADS_PER_MINUTE", 10),

		EventsSink:     strings.ToLower(e.str("IMPORT_EVENTS_SINK", "none")),
		EventsTopicArn: e.str("IMPORT_EVENTS_TOPIC_ARN", ""),
		EventsQueueURL: e.str("IMPORT_EVENTS_QUEUE_URL", ""),
		KafkaBrokers:   e.list("KAFKA_BROKERS"),
		KafkaTopic:     e.str("KAFKA_IMPORT_TOPIC", "product-imports"),

		HistoryEnabled: e.boolean("IMPORT_HISTORY_ENABLED", false),
		Postgres: database.PostgresConfig{
			Host:     e.str("POSTGRES_HOST", "localhost"),
			Port:     e.str("POSTGRES_PORT", "5432"),
			User:     e.str("POSTGRES_USER", "postgres"),
			Password: e.str("POSTGRES_PASSWORD", ""),
			DBName:   e.str("POSTGRES_DB", "product_imports"),
			SSLMode:  e.str("POSTGRES_SSLMODE", "disable"),
			TimeZone: e.str("POSTGRES_TIMEZONE", "UTC"),
		},

		RequireAuth: e.boolean("IMPORT_REQUIRE_AUTH", false),
		JWTSecret:   e.str("JWT_SECRET", ""),

		AllowedOrigins: e.list("ALLOWED_ORIGINS"),

		UseSecrets: e.boolean("AWS_USE_SECRETS", false),
		AWS: awspkg.Settings{
			Region:          e.str("AWS_REGION", "us-east-1"),
			Endpoint:        e.str("AWS_ENDPOINT", ""),
			AccessKeyID:     e.str("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: e.str("AWS_SECRET_ACCESS_KEY", ""),
		},
		CloudWatchEnabled: e.boolean("CLOUDWATCH_ENABLED", false),
		LogGroup:          e.str("CLOUDWATCH_LOG_GROUP", "/mayaa/services"),
		MetricsNamespace:  e.str("CLOUDWATCH_NAMESPACE", "Mayaa/ProductImport"),
	}

	if e.err != nil {
		return nil, e.err
	}
	return cfg, nil
}

// ApplySecrets overrides MONGO_URI and JWT_SECRET with Secrets Manager
// values. Missing or failing secrets keep the environment values.
func (c *Config) ApplySecrets(ctx context.Context, sm awspkg.SecretGetter) {
	if v, err := sm.GetSecret(ctx, SecretMongoURI); err == nil && v != "" {
		c.MongoURI = v
	}
	if v, err := sm.GetSecret(ctx, SecretJWTSecret); err == nil && v != "" {
		c.JWTSecret = v
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// QueueOptions returns the settings shared by producer and worker.
func (c *Config) QueueOptions() queue.Options {
	return queue.Options{
		Name:      c.QueueName,
		Retention: c.JobRetention,
		LockTTL:   c.LockTTL,
	}
}

// envReader collects the first parse error so FromEnv can report it once.
type envReader struct {
	err error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

// list splits a comma separated value, dropping blanks. Unset yields nil.
func (e *envReader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}
