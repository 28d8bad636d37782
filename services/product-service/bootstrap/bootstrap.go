// Package bootstrap builds the infrastructure shared by the product-service
// API and the import worker from a loaded config.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	awspkg "github.com/samirvithlani/mayaa-backend/pkg/aws"
	ddbpkg "github.com/samirvithlani/mayaa-backend/pkg/dynamodb"
	"github.com/samirvithlani/mayaa-backend/services/common/logger"
	"github.com/samirvithlani/mayaa-backend/services/product-service/config"
	"github.com/samirvithlani/mayaa-backend/services/product-service/database"
	"github.com/samirvithlani/mayaa-backend/services/product-service/events"
	"github.com/samirvithlani/mayaa-backend/services/product-service/queue"
	"github.com/samirvithlani/mayaa-backend/services/product-service/repository"
	"github.com/samirvithlani/mayaa-backend/services/product-service/services"
)

// Closers releases resources in reverse order of acquisition.
type Closers []func() error

func (c *Closers) Add(fn func() error) { *c = append(*c, fn) }

func (c *Closers) Close() {
	for i := len(*c) - 1; i >= 0; i-- {
		if err := (*c)[i](); err != nil {
			zap.L().Warn("Failed to release resource", zap.Error(err))
		}
	}
}

// StartupLogger installs a plain production logger as zap's global so that
// config and AWS failures are reported before Logger can run.
func StartupLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	zap.ReplaceGlobals(l)
	return l
}

// Logger initializes the process logger, tee'd to CloudWatch Logs when enabled.
// A CloudWatch failure falls back to console logging.
func Logger(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, service string) (*zap.Logger, error) {
	var (
		sink  io.Writer
		cwErr error
	)
	if cfg.CloudWatchEnabled {
		var cw *awspkg.CloudWatchLogsClient
		if cw, cwErr = awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.LogGroup, service); cwErr == nil {
			sink = cw
		}
	}

	l, err := logger.InitializeWithWriter(cfg.Env, sink)
	if err != nil {
		return nil, err
	}
	if cwErr != nil {
		l.Warn("CloudWatch logging disabled", zap.Error(cwErr))
	}
	return l, nil
}

func Metrics(cfg *config.Config, awsCfg sdkaws.Config) *awspkg.MetricsClient {
	return awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.CloudWatchEnabled)
}

// Redis parses REDIS_URL, falling back to redis:6379 when it is malformed.
func Redis(cfg *config.Config) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zap.L().Warn("Failed to parse REDIS_URL, falling back to default", zap.Error(err))
		opts = &redis.Options{Addr: "redis:6379", DB: 0}
	}
	return redis.NewClient(opts)
}

// Queue returns the job queue selected by IMPORT_QUEUE_DRIVER. The memory
// driver only works when producer and worker share a process.
func Queue(cfg *config.Config, rdb *redis.Client) queue.Queue {
	if cfg.QueueDriver == "memory" {
		return queue.NewMemoryQueue(cfg.QueueOptions())
	}
	return queue.NewRedisQueue(rdb, cfg.QueueOptions())
}

// ProductStore connects the product repository selected by PRODUCT_STORE and
// ensures its indexes.
func ProductStore(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, closers *Closers) (repository.ProductRepo, error) {
	var repo repository.ProductRepo
	switch cfg.ProductStore {
	case "dynamodb":
		client := ddbpkg.NewClientFromConfig(awsCfg, cfg.AWS.Endpoint)
		repo = repository.NewDynamoAdapter(client, cfg.DDBTableProducts)
	default:
		client, db, err := database.ConnectMongo(ctx, zap.L(), cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		closers.Add(func() error { return database.CloseMongo(client) })
		repo = repository.NewProductRepository(db)
	}

	if err := repo.EnsureIndexes(ctx); err != nil {
		zap.L().Warn("Failed to ensure product indexes", zap.Error(err))
	}
	return repo, nil
}

// History returns the Postgres import history, or nil when disabled.
func History(cfg *config.Config, closers *Closers) (repository.ImportHistoryRepo, error) {
	if !cfg.HistoryEnabled {
		return nil, nil
	}
	db, err := database.ConnectPostgres(zap.L(), cfg.Postgres)
	if err != nil {
		return nil, err
	}
	closers.Add(func() error { return database.ClosePostgres(db) })
	return repository.NewGormImportHistoryRepository(db), nil
}

// Events returns the completion event sink selected by IMPORT_EVENTS_SINK.
// IMPORT_EVENTS_QUEUE_URL may also hold a bare queue name.
func Events(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config) (events.Publisher, error) {
	switch cfg.EventsSink {
	case "sns":
		return events.NewSNSPublisher(awspkg.NewSNSClient(awsCfg), cfg.EventsTopicArn), nil
	case "sqs":
		queueURL := cfg.EventsQueueURL
		if !strings.HasPrefix(queueURL, "http") {
			resolved, err := awspkg.GetQueueURL(ctx, awsCfg, queueURL)
			if err != nil {
				return nil, fmt.Errorf("resolve events queue %q: %w", queueURL, err)
			}
			queueURL = resolved
		}
		return events.NewSQSPublisher(awspkg.NewSQSSender(awsCfg, queueURL)), nil
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "none", "":
		return events.NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events sink %q", cfg.EventsSink)
	}
}

// Archiver returns the S3 upload archiver, or nil without a bucket.
func Archiver(cfg *config.Config, awsCfg sdkaws.Config) services.UploadArchiver {
	if cfg.ArchiveBucket == "" {
		return nil
	}
	return awspkg.NewArchiver(awspkg.NewS3Client(awsCfg), cfg.ArchiveBucket, cfg.ArchivePrefix)
}

// Worker wires an ImportWorker with every optional collaborator.
func Worker(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, q queue.Consumer, rdb *redis.Client, metrics services.Metrics, closers *Closers) (*services.ImportWorker, error) {
	repo, err := ProductStore(ctx, cfg, awsCfg, closers)
	if err != nil {
		return nil, err
	}
	history, err := History(cfg, closers)
	if err != nil {
		return nil, err
	}
	publisher, err := Events(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	closers.Add(publisher.Close)

	return services.NewImportWorker(q, repo, services.WorkerConfig{
		BatchSize:         cfg.BatchSize,
		Concurrency:       cfg.WorkerConcurrency,
		HeartbeatInterval: cfg.LockTTL / 3,
		StalledInterval:   cfg.LockTTL,
	},
		services.WithMetrics(metrics),
		services.WithEvents(publisher),
		services.WithCache(services.NewCacheManager(rdb)),
		services.WithHistory(history),
	), nil
}
