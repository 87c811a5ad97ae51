package main

import (
	"context"
	"crypto/rand"
	"errors"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/apiclient"
	"github.com/ekaya-inc/ekaya-admin/pkg/audit"
	"github.com/ekaya-inc/ekaya-admin/pkg/auth"
	"github.com/ekaya-inc/ekaya-admin/pkg/authflow"
	"github.com/ekaya-inc/ekaya-admin/pkg/config"
	"github.com/ekaya-inc/ekaya-admin/pkg/database"
	"github.com/ekaya-inc/ekaya-admin/pkg/handlers"
	"github.com/ekaya-inc/ekaya-admin/pkg/metrics"
	"github.com/ekaya-inc/ekaya-admin/pkg/middleware"
	"github.com/ekaya-inc/ekaya-admin/pkg/products"
	"github.com/ekaya-inc/ekaya-admin/pkg/retry"
	"github.com/ekaya-inc/ekaya-admin/pkg/services"
	"github.com/ekaya-inc/ekaya-admin/pkg/session"
	"github.com/ekaya-inc/ekaya-admin/ui"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg.API.BaseURL = config.ResolveURLForDocker(cfg.API.BaseURL)
	cfg.Redis.Host = config.ResolveHostForDocker(cfg.Redis.Host)

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("api_base_url", cfg.API.BaseURL),
		zap.Duration("login_timeout", cfg.Auth.LoginTimeout),
		zap.String("redis", cfg.Redis.Host),
		zap.Bool("metrics", cfg.MetricsEnabled),
	)

	ctx := context.Background()

	// Token store: Redis when configured, otherwise process memory.
	var (
		store     session.Store
		storeName = "memory"
		pinger    handlers.Pinger
	)
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis, retry.DefaultConfig(), logger.Named("redis"))
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		redisStore := session.NewRedisStore(redisClient, cfg.Redis.TTL, logger)
		store, storeName, pinger = redisStore, "redis", redisStore
	} else {
		store = session.NewMemoryStore()
		logger.Warn("REDIS_HOST not set; sessions are kept in memory and lost on restart")
	}

	secret := cfg.SessionSecret
	if secret == "" {
		// Only reachable in local env; config validation rejects this elsewhere.
		secret = rand.Text()
		logger.Warn("SESSION_SECRET not set; using a random secret, browsers are signed out on restart")
	}
	browsers := auth.NewBrowserSessions(secret, auth.DeriveCookieSettings(cfg.BaseURL, cfg.CookieDomain), cfg.Redis.TTL)
	authMiddleware := auth.NewMiddleware(browsers, store, logger)

	api := apiclient.NewClient(cfg.API.BaseURL, cfg.API.Timeout, logger)
	auditor := audit.NewSecurityAuditor(logger)

	flow := authflow.New(api, store, auditor, authflow.Config{
		LoginTimeout:  cfg.Auth.LoginTimeout,
		RedirectDelay: cfg.Auth.RedirectDelay,
	}, logger)
	board := products.NewBoard(cfg.Redis.TTL)
	productService := products.NewService(api, board, auditor, logger)
	nonces := services.NewNonceStore(services.DefaultNonceTTL)

	assets := ui.FS()
	render, err := handlers.NewRenderer(assets, logger)
	if err != nil {
		logger.Fatal("Failed to parse templates", zap.Error(err))
	}
	staticFS, err := fs.Sub(assets, "static")
	if err != nil {
		logger.Fatal("Failed to open static assets", zap.Error(err))
	}

	loginLimit, err := middleware.NewIPRateLimiter(cfg.Auth.LoginRateLimit, logger.Named("ratelimit"))
	if err != nil {
		logger.Fatal("Invalid login rate limit", zap.String("rate", cfg.Auth.LoginRateLimit), zap.Error(err))
	}

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, storeName, pinger, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(flow, productService, browsers, store, render, logger).RegisterRoutes(mux, authMiddleware, loginLimit)
	handlers.NewProductsHandler(productService, browsers, store, nonces, render, logger).RegisterRoutes(mux, authMiddleware)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))
	if cfg.MetricsEnabled {
		var sessionCount func() int
		if mem, ok := store.(*session.MemoryStore); ok {
			sessionCount = mem.Len
		}
		metrics.RegisterSizeGauges(prometheus.DefaultRegisterer, board.Len, sessionCount)
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// The logger and metrics wrap the mux directly so they can read the matched pattern.
	var handler http.Handler = middleware.Metrics(mux)
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.NewSecure(middleware.SecureOptions(cfg.IsLocal()))(handler)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// A login may legitimately take LoginTimeout before the page renders.
		WriteTimeout: cfg.Auth.LoginTimeout + cfg.API.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-admin",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		if cfg.TLSCertPath != "" {
			serverErr <- srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		serverErr <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsLocal() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
