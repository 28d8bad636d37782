package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awspkg "github.com/samirvithlani/mayaa-backend/pkg/aws"
	"github.com/samirvithlani/mayaa-backend/services/common/auth"
	"github.com/samirvithlani/mayaa-backend/services/common/middleware"
	"github.com/samirvithlani/mayaa-backend/services/product-service/bootstrap"
	"github.com/samirvithlani/mayaa-backend/services/product-service/config"
	"github.com/samirvithlani/mayaa-backend/services/product-service/controllers"
	"github.com/samirvithlani/mayaa-backend/services/product-service/routes"
	"github.com/samirvithlani/mayaa-backend/services/product-service/services"
)

const serviceName = "product-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 1. Configuration & logging ---
	startup := bootstrap.StartupLogger()
	defer startup.Sync()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
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

	// --- 2. Dependency Injection ---
	metrics := bootstrap.Metrics(cfg, awsCfg)
	rdb := bootstrap.Redis(cfg)
	closers.Add(rdb.Close)

	jobs := bootstrap.Queue(cfg, rdb)
	closers.Add(jobs.Close)

	history, err := bootstrap.History(cfg, &closers)
	if err != nil {
		logger.Fatal("Failed to connect import history database", zap.Error(err))
	}

	producer := services.NewImportProducer(jobs, cfg.StagingDir,
		services.WithArchiver(bootstrap.Archiver(cfg, awsCfg)),
		services.WithProducerMetrics(metrics),
	)
	status := services.NewJobStatusReporter(jobs, history)
	importHandler := controllers.NewImportHandler(producer, status, controllers.NewRequestValidator())

	// The memory queue cannot be shared across processes, so the worker runs here.
	workerDone := make(chan struct{})
	if cfg.QueueDriver == "memory" {
		worker, err := bootstrap.Worker(ctx, cfg, awsCfg, jobs, rdb, metrics, &closers)
		if err != nil {
			logger.Fatal("Failed to build in-process import worker", zap.Error(err))
		}
		go func() {
			defer close(workerDone)
			if err := worker.Run(ctx); err != nil {
				logger.Error("In-process import worker stopped", zap.Error(err))
			}
		}()
		logger.Info("Import worker running in-process", zap.String("queue", cfg.QueueName))
	} else {
		close(workerDone)
	}

	// --- 3. HTTP Server & Middleware ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), controllers.DefaultContextTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(reqCtx)
		c.Next()
	})
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.SecurityHeaders())

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// --- 4. Route Registration ---
	routeOpts := routes.RouteOptions{UploadLimit: middleware.UploadRateLimit(cfg.UploadsPerMinute)}
	if cfg.RequireAuth {
		routeOpts.Auth = middleware.RequireRole(auth.NewTokenVerifier(cfg.JWTSecret), "admin")
	}
	routes.RegisterImportRoutes(r, importHandler, routeOpts)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	// --- 5. Graceful Shutdown ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Product Service starting", zap.String("port", cfg.Port), zap.String("queue_driver", cfg.QueueDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down Product Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("In-process import worker did not stop in time")
	}

	logger.Info("Product Service stopped gracefully")
}
