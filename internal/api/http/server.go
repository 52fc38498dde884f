package apihttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediastream/internal/domain"
	"mediastream/internal/domain/ports"
	"mediastream/internal/resolver"
	"mediastream/internal/usecase"
)

type GetAssetUseCase interface {
	Execute(ctx context.Context, id domain.AssetID) (domain.Asset, error)
}

type ListAssetsUseCase interface {
	Execute(ctx context.Context) ([]domain.Asset, error)
}

type DeleteAssetUseCase interface {
	Execute(ctx context.Context, id domain.AssetID) error
}

type IngestVideoUseCase interface {
	Execute(ctx context.Context, input usecase.IngestVideoInput) (domain.Asset, error)
}

type ConcatAssetUseCase interface {
	Execute(ctx context.Context, asset domain.Asset, w io.Writer) error
}

type Server struct {
	getAsset    GetAssetUseCase
	listAssets  ListAssetsUseCase
	deleteAsset DeleteAssetUseCase
	ingestVideo IngestVideoUseCase
	concatAsset ConcatAssetUseCase

	resolver     ports.HandleResolver
	resolveCache *resolver.Cache
	upstream     *http.Client

	manifests      *ManifestManager
	manifestCfg    *ManifestConfig
	manifestFetch  ports.PartFetcher
	manifestEnc    ports.SegmentEncoder
	manifestMaxAge time.Duration

	allowedOrigins []string
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
	sweepCancel    context.CancelFunc
}

type ServerOption func(*Server)

func WithListAssets(uc ListAssetsUseCase) ServerOption {
	return func(s *Server) { s.listAssets = uc }
}

func WithDeleteAsset(uc DeleteAssetUseCase) ServerOption {
	return func(s *Server) { s.deleteAsset = uc }
}

func WithIngestVideo(uc IngestVideoUseCase) ServerOption {
	return func(s *Server) { s.ingestVideo = uc }
}

func WithConcatAsset(uc ConcatAssetUseCase) ServerOption {
	return func(s *Server) { s.concatAsset = uc }
}

// WithResolver sets the handle resolver used by the streaming endpoints.
// Pass the cache-wrapped resolver here; the raw host client would hit the
// host on every segment request.
func WithResolver(r ports.HandleResolver) ServerOption {
	return func(s *Server) { s.resolver = r }
}

// WithResolveCache exposes the cache itself for the health snapshot.
func WithResolveCache(c *resolver.Cache) ServerOption {
	return func(s *Server) {
		s.resolveCache = c
		if s.resolver == nil {
			s.resolver = c
		}
	}
}

func WithManifest(cfg ManifestConfig, fetcher ports.PartFetcher, encoder ports.SegmentEncoder) ServerOption {
	return func(s *Server) {
		s.manifestCfg = &cfg
		s.manifestFetch = fetcher
		s.manifestEnc = encoder
	}
}

// WithManifestMaxAge enables age-based eviction of manifest directories.
func WithManifestMaxAge(maxAge time.Duration) ServerOption {
	return func(s *Server) { s.manifestMaxAge = maxAge }
}

func WithUpstreamClient(client *http.Client) ServerOption {
	return func(s *Server) { s.upstream = client }
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = normalizeOrigins(origins) }
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(getAsset GetAssetUseCase, opts ...ServerOption) *Server {
	s := &Server{getAsset: getAsset}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.upstream == nil {
		// No client timeout: range responses for large files legitimately
		// stay open far longer than any sane request deadline.
		s.upstream = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	if s.manifests == nil && s.manifestCfg != nil && s.resolver != nil && s.manifestFetch != nil && s.manifestEnc != nil {
		s.manifests = newManifestManager(s.resolver, s.manifestFetch, s.manifestEnc, *s.manifestCfg, s.logger)
		s.manifests.setEventSink(s.wsHub.Broadcast)
		if s.manifestMaxAge > 0 {
			ctx, cancel := context.WithCancel(context.Background())
			s.sweepCancel = cancel
			s.manifests.startSweeper(ctx, s.manifestMaxAge, s.logger)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stream/concat/", s.handleConcat)
	mux.HandleFunc("/stream/", s.handleStream)
	mux.HandleFunc("/manifest/", s.handleManifest)
	mux.HandleFunc("/videos", s.handleVideos)
	mux.HandleFunc("/videos/", s.handleVideoByID)
	mux.HandleFunc("/internal/health/delivery", s.handleDeliveryHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "mediastream",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/internal/health/delivery"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.wsHub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// Close cancels running manifest jobs, the sweeper and the WebSocket hub.
func (s *Server) Close() {
	if s.manifests != nil {
		s.manifests.shutdown()
	}
	if s.sweepCancel != nil {
		s.sweepCancel()
	}
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

// normalizeOrigins trims whitespace and drops empties from a configured
// origin list.
func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
