package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/BaSui01/agentstudio/api/handlers"
	"github.com/BaSui01/agentstudio/config"
	"github.com/BaSui01/agentstudio/internal/cache"
	"github.com/BaSui01/agentstudio/internal/metrics"
	"github.com/BaSui01/agentstudio/internal/server"
	"github.com/BaSui01/agentstudio/workflow"
	"github.com/BaSui01/agentstudio/workflow/execution"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 组合 API 与 metrics 两个监听
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector

	engine *execution.Client
	cache  *cache.Manager

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer 构建路由、中间件与依赖；cacheManager 可为 nil
func NewServer(cfg *config.Config, collector *metrics.Collector, cacheManager *cache.Manager, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		cache:   cacheManager,
	}

	engine, err := execution.NewClient(cfg.Engine.ClientConfig(),
		execution.WithClientLogger(logger),
		execution.WithClientMetrics(collector))
	if err != nil {
		return nil, fmt.Errorf("engine client: %w", err)
	}
	s.engine = engine

	s.httpManager = server.NewManager(s.apiHandler(context.Background()), server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	s.metricsManager = server.NewManager(metricsMux, server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	return s, nil
}

// apiHandler 组装 API 路由与中间件链
func (s *Server) apiHandler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(handlers.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}, s.logger)
	health.RegisterCheck(handlers.NewCheck("engine", func(context.Context) error {
		if state := s.engine.BreakerState(); state == execution.BreakerOpen {
			return fmt.Errorf("engine circuit breaker is %s", state)
		}
		return nil
	}))
	if s.cache != nil {
		health.RegisterCheck(handlers.NewCheck("redis", s.cache.Ping))
	}

	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion)

	compiler := workflow.NewCompiler(append(s.cfg.Compiler.CompilerOptions(),
		workflow.WithCompilerLogger(s.logger))...)
	handlers.NewWorkflowHandler(compiler, s.logger,
		handlers.WithHandlerMetrics(s.metrics),
		handlers.WithMaxBodyBytes(s.cfg.Server.MaxBodyBytes),
	).Register(mux)

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metrics),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)
}

// Run 运行两个监听直到 ctx 结束或其中之一失败
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Run(gctx) })
	g.Go(func() error { return s.metricsManager.Run(gctx) })

	s.logger.Info("servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("engine", s.cfg.Engine.BaseURL))

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.logger.Info("graceful shutdown completed")
	return err
}
