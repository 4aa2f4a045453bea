package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"portfoliocv/internal/auth"
	"portfoliocv/internal/config"
	"portfoliocv/internal/handler"
	"portfoliocv/internal/health"
	"portfoliocv/internal/metrics"
	"portfoliocv/internal/repository"
	"portfoliocv/internal/service"
	"portfoliocv/internal/service/minio"
	"portfoliocv/internal/service/s3"
)

const (
	shutdownTimeout = 10 * time.Second
	healthInterval  = 15 * time.Second
)

// bucket - объектное хранилище с проверкой доступности
type bucket interface {
	service.ObjectStore
	Ping(ctx context.Context) error
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newBucket(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (bucket, error) {
	if cfg.Driver == config.StorageDriverMinio {
		return minio.NewClient(ctx, minio.Config{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.UseSSL,
			BucketName:      cfg.Bucket,
			Region:          cfg.Region,
			PublicBaseURL:   cfg.PublicBaseURL,
			PresignTTL:      cfg.PresignTTL,
			Timeout:         cfg.Timeout,
		}, logger)
	}
	return s3.NewClient(s3.Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Bucket:          cfg.Bucket,
		PublicBaseURL:   cfg.PublicBaseURL,
		PresignTTL:      cfg.PresignTTL,
		Timeout:         cfg.Timeout,
		UsePathStyle:    cfg.UsePathStyle,
	})
}

func main() {
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	logger, err := newLogger(appConfig.Server.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.ConnectWithRetry(appConfig.Database.GetDSN(), 5, 5*time.Second, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.RunMigrations(appConfig.Database.GetURL(), logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	objects, err := newBucket(ctx, appConfig.Storage, logger)
	if err != nil {
		logger.Fatal("failed to create object storage client", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(reg)

	cvRepo := repository.NewCVRepository(db, appConfig.Database.Timeout, appConfig.Database.TxTimeout)
	downloadRepo := repository.NewDownloadRepository(db, appConfig.Database.Timeout)

	versionService := service.NewVersionService(cvRepo, objects, appConfig.CV.MaxUploadBytes, collector, logger)
	downloadService := service.NewDownloadService(cvRepo, downloadRepo, objects)
	analyticsService := service.NewAnalyticsService(cvRepo, downloadRepo)
	recorder := service.NewAsyncRecorder(
		downloadService,
		appConfig.CV.RecorderQueueSize,
		appConfig.CV.RecorderWorkers,
		appConfig.CV.RecordTimeout,
		collector,
		logger,
	)

	verifier := auth.NewVerifier(appConfig.Auth.JWTSecret, logger)
	cvHandler := handler.NewCVHandler(versionService, analyticsService, downloadService, appConfig.CV.MaxUploadBytes, logger)
	downloadHandler := handler.NewDownloadHandler(downloadService, recorder, appConfig.Server.PublicDownloadMode, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(collector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appConfig.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		downloadHandler.Routes(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(verifier.RequireAdmin)
			r.Use(middleware.Timeout(2 * time.Minute))
			cvHandler.Routes(r)
		})
	})

	httpServer := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	if appConfig.Server.Debug {
		reflection.Register(grpcServer)
	}

	monitor := health.NewMonitor(healthServer, healthInterval, appConfig.Database.Timeout, logger)
	monitor.Add("database", health.PingFunc(db.PingContext))
	monitor.Add("storage", objects)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+appConfig.Server.GRPCPort)
		if err != nil {
			return err
		}
		logger.Info("gRPC health server listening", zap.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		return monitor.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		recorder.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
