package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "mediastream/internal/api/http"
	"mediastream/internal/app"
	"mediastream/internal/metrics"
	mongorepo "mediastream/internal/repository/mongo"
	"mediastream/internal/resolver"
	"mediastream/internal/services/host"
	"mediastream/internal/services/media/fetch"
	"mediastream/internal/services/media/ffmpeg"
	"mediastream/internal/services/media/ffprobe"
	"mediastream/internal/telemetry"
	"mediastream/internal/usecase"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "mediastream")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "mediastream"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("hostAPI", cfg.HostAPIURL),
		slog.String("manifestDir", cfg.ManifestDir),
		slog.Int64("partBudgetBytes", cfg.PartBudgetBytes),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	mongoMonitor := otelmongo.NewMonitor()
	mongoClient, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(mongoMonitor))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repo := mongorepo.NewRepository(mongoClient, cfg.MongoDatabase, cfg.MongoCollection)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}

	hostClient := host.NewClient(cfg.HostAPIURL)
	resolveCache := resolver.NewCache(
		hostClient,
		time.Duration(cfg.ResolveTTLSeconds)*time.Second,
		cfg.ResolveCacheSize,
	)

	prober := ffprobe.New(cfg.FFProbePath)
	runner := ffmpeg.New(cfg.FFMPEGPath)
	fetcher := fetch.New(logger)

	splitUC := usecase.SplitVideo{Prober: prober, Slicer: runner, Logger: logger}
	ingestUC := usecase.IngestVideo{
		Split:       splitUC,
		Prober:      prober,
		Host:        hostClient,
		Repo:        repo,
		BudgetBytes: cfg.PartBudgetBytes,
		Now:         time.Now,
		Logger:      logger,
	}
	concatUC := usecase.ConcatAsset{
		Resolver: resolveCache,
		Fetcher:  fetcher,
		Concat:   runner,
		TmpDir:   cfg.TmpDir,
		Logger:   logger,
	}
	getUC := usecase.GetAsset{Repo: repo}
	listUC := usecase.ListAssets{Repo: repo}
	deleteUC := usecase.DeleteAsset{Repo: repo}

	manifestCfg := apihttp.ManifestConfig{
		BaseDir:         cfg.ManifestDir,
		TmpDir:          cfg.TmpDir,
		SegmentSeconds:  cfg.SegmentSeconds,
		QuickStartParts: cfg.QuickStartParts,
	}

	handler := apihttp.NewServer(getUC,
		apihttp.WithLogger(logger),
		apihttp.WithListAssets(listUC),
		apihttp.WithDeleteAsset(deleteUC),
		apihttp.WithIngestVideo(ingestUC),
		apihttp.WithConcatAsset(concatUC),
		apihttp.WithResolveCache(resolveCache),
		apihttp.WithManifest(manifestCfg, fetcher, runner),
		apihttp.WithManifestMaxAge(time.Duration(cfg.ManifestMaxAgeHours)*time.Hour),
		apihttp.WithAllowedOrigins(cfg.AllowedOrigins),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
