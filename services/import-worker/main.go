// Command import-worker consumes product import jobs from the shared queue
// and writes the grouped products to the product store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	awspkg "github.com/samirvithlani/mayaa-backend/pkg/aws"
	"github.com/samirvithlani/mayaa-backend/services/common/middleware"
	"github.com/samirvithlani/mayaa-backend/services/product-service/bootstrap"
	"github.com/samirvithlani/mayaa-backend/services/product-service/config"
)

const serviceName = "product-import-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startup := bootstrap.StartupLogger()
	defer startup.Sync()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.QueueDriver == "memory" {
		zap.L().Fatal("IMPORT_QUEUE_DRIVER=memory runs the worker inside product-service; use redis for a standalone worker")
	}

	awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		zap.L().Fatal("Failed to load AWS config", zap.Error(err))
	}

	logger, err := bootstrap.Logger(ctx, cfg, awsCfg, serviceName)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	var closers bootstrap.Closers
	defer closers.Close()

	rdb := bootstrap.Redis(cfg)
	closers.Add(rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	jobs := bootstrap.Queue(cfg, rdb)
	closers.Add(jobs.Close)

	metrics := bootstrap.Metrics(cfg, awsCfg)
	worker, err := bootstrap.Worker(ctx, cfg, awsCfg, jobs, rdb, metrics, &closers)
	if err != nil {
		logger.Fatal("Failed to build import worker", zap.Error(err))
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"worker":  "running",
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.WorkerPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Import worker started",
			zap.String("queue", cfg.QueueName),
			zap.Int("concurrency", cfg.WorkerConcurrency),
			zap.Int("batch_size", cfg.BatchSize),
		)
		return worker.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Worker health server listening", zap.String("port", cfg.WorkerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Import worker exited with error", zap.Error(err))
	}
	logger.Info("Import worker stopped")
}
