package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/trackbridge/internal/adapter"
	apihttp "github.com/GriffinCanCode/trackbridge/internal/api/http"
	"github.com/GriffinCanCode/trackbridge/internal/api/middleware"
	"github.com/GriffinCanCode/trackbridge/internal/bus"
	"github.com/GriffinCanCode/trackbridge/internal/domain/group"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/trackbridge/internal/providers/http/client"
	"github.com/GriffinCanCode/trackbridge/internal/sandbox"
	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
	"github.com/GriffinCanCode/trackbridge/internal/ws"
)

// Version is reported by the root endpoint.
var Version = "dev"

// ChannelPath is the route hosts attach to.
const ChannelPath = "/ws"

// DefaultViewerElement is used when the viewer configuration names none.
const DefaultViewerElement = "#glympser"

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	handler  http.Handler
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	fetch    *client.Client
	registry *group.Registry
	channel  *ws.Channel
	bus      *bus.Bus
	adapter  *adapter.Adapter
	tracker  *adapter.Tracker
	element  string
}

// NewServer wires every component from cfg and the adapter file.
func NewServer(cfg *config.Config, file *config.AdapterFile) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return newServer(cfg, file, logger), nil
}

func newServer(cfg *config.Config, file *config.AdapterFile, logger *logging.Logger) *Server {
	if file == nil {
		file = &config.AdapterFile{Viewer: map[string]interface{}{}}
	}

	logger.Info("Initializing trackbridge",
		zap.String("port", cfg.Server.Port),
		zap.String("svc_glympse", cfg.Services.Glympse),
		zap.Duration("poll_interval", cfg.Groups.PollInterval),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("trackbridge", logger.Logger)

	fetchCfg := client.DefaultConfig()
	fetchCfg.Timeout = cfg.Fetch.Timeout
	fetchCfg.RetryMax = cfg.Fetch.RetryMax
	fetchCfg.RateLimit = cfg.Fetch.RateLimit
	fetch := client.NewClient(fetchCfg, logger.Logger).WithTracer(tracer)

	var account *types.Account
	if cfg.Groups.AccountToken != "" {
		account = &types.Account{Token: cfg.Groups.AccountToken}
	}
	registry := group.NewRegistry(fetch, nil, group.Config{
		SvcGlympse:       cfg.Services.Glympse,
		SvcEnRoute:       cfg.Services.EnRoute,
		PollInterval:     cfg.Groups.PollInterval,
		DemoDriversCount: file.Adapter.DemoDriversCount,
		Account:          account,
	}).WithLogger(logger.Logger).WithMetrics(metrics)

	channel := ws.NewChannel(logger.Logger, ws.Options{
		HandshakeTimeout: cfg.Channel.HandshakeTimeout,
		CheckOrigin:      originChecker(cfg.Server.AllowedOrigins),
	}).WithMetrics(metrics)
	b := bus.New(channel, logger.Logger).WithMetrics(metrics)

	tracker := adapter.NewTracker()
	a := adapter.New(tracker, b, adapter.Options{
		Config:   file.Adapter,
		Viewer:   file.Viewer,
		Registry: registry,
		Sandbox: sandbox.Config{
			Timeout:       cfg.Sandbox.Timeout,
			EnableConsole: cfg.Logging.Development,
		},
		Logger: logger.Logger,
	})
	registry.SetNotifier(a)
	channel.SetGreeting(func() (string, interface{}) {
		return types.MsgConnected, a.Manifest()
	})

	element, _ := file.Viewer["element"].(string)
	if element == "" {
		element = DefaultViewerElement
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowedOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(apihttp.Deps{
		Groups:  registry,
		Adapter: a,
		Tracker: tracker,
		Channel: channel,
		Bus:     b,
		Breaker: fetch,
		Metrics: metrics,
		Version: Version,
	})

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/api/groups", handlers.ListGroups)
	router.GET("/api/manifest", handlers.GetManifest)
	router.GET("/api/state", handlers.GetState)
	router.GET("/metrics", handlers.Metrics)
	router.GET("/metrics/json", handlers.MetricsJSON)
	router.GET(ChannelPath, channel.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		handler:  compress(router),
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		tracer:   tracer,
		fetch:    fetch,
		registry: registry,
		channel:  channel,
		bus:      b,
		adapter:  a,
		tracker:  tracker,
		element:  element,
	}
}

// compress gzips API responses. The channel upgrade bypasses the wrapper
// so the connection can be hijacked.
func compress(router http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == ChannelPath {
			router.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start launches the group registry and the adapter. The adapter waits for
// a host to attach in the background.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.registry.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Group registry stopped", zap.Error(err))
		}
	}()

	connectCtx := ctx
	if s.config.Channel.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, s.config.Channel.ConnectTimeout)
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	s.adapter.Run(connectCtx, s.element)
}

// Run starts the components and serves HTTP until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.config.Server.Host, s.config.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Start(ctx)

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases resources held by the components
func (s *Server) Close() error {
	if err := s.adapter.Close(); err != nil {
		s.logger.Error("Failed to close adapter", zap.Error(err))
	}
	s.tracer.Close()
	_ = s.logger.Sync()
	return nil
}
