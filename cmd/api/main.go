package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"creator-insights/internal/cache"
	"creator-insights/internal/config"
	"creator-insights/internal/infra/db"
	"creator-insights/internal/infra/kvstore"
	"creator-insights/internal/infra/llm"
	"creator-insights/internal/infra/youtube"
	"creator-insights/internal/session"
	"creator-insights/internal/taskqueue"
	pkgconfig "creator-insights/pkg/config"
	"creator-insights/pkg/ratelimit"

	"creator-insights/internal/usecase/handlers"
	"creator-insights/internal/usecase/orchestrate"
	"creator-insights/internal/usecase/router"
	"creator-insights/internal/usecase/synthesis"

	hhttp "creator-insights/internal/handler/http"
	hanalyze "creator-insights/internal/handler/http/analyze"
	hauth "creator-insights/internal/handler/http/auth"
	"creator-insights/internal/handler/http/middleware"
	hops "creator-insights/internal/handler/http/ops"
	"creator-insights/internal/handler/http/requestid"
	"creator-insights/internal/observability/logging"
	"creator-insights/internal/observability/tracing"

	_ "creator-insights/docs" // swagger docs
)

// @title           Creator Insights API
// @version         1.0
// @description     Orchestration layer for YouTube creator analytics. Routes natural-language questions to capability analyzers and synthesizes the answers.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT authentication. Supply the header as "Bearer {token}".

func main() {
	logger := initLogger()
	validateStartupEnvironment(logger)

	version := getVersion()
	components := setupServer(logger, version)
	defer components.Close(logger)

	runServer(logger, components, version)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// validateStartupEnvironment refuses to start with missing or weak auth
// configuration. Failing here beats serving tokens signed with "secret123".
func validateStartupEnvironment(logger *slog.Logger) {
	if err := hauth.ValidateAuthEnvironment(); err != nil {
		logger.Error("auth environment validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	secret := os.Getenv("JWT_SECRET")
	for _, guessable := range []string{"secret", "password", "test", "admin", "default"} {
		if secret == guessable || secret == guessable+"123" {
			logger.Error("JWT_SECRET matches a well-known guessable value",
				slog.String("matched", guessable))
			os.Exit(1)
		}
	}
}

// newAuthProvider builds the credential validator from the security config
// file, falling back to built-in defaults when the file is absent.
func newAuthProvider(logger *slog.Logger) *hauth.BasicAuthProvider {
	path := pkgconfig.GetEnvString("SECURITY_CONFIG_PATH", "configs/security.yaml")

	secCfg, err := config.LoadSecurityConfig(path)
	if err != nil {
		logger.Warn("security config not loaded, using built-in auth defaults",
			slog.String("path", path),
			slog.Any("error", err))
		weakPasswords := []string{"password", "123456", "admin", "test", "secret"}
		return hauth.NewBasicAuthProvider(12, weakPasswords)
	}

	logger.Info("security config loaded",
		slog.String("path", path),
		slog.String("provider", secCfg.GetAuthProvider()),
		slog.Int("min_password_length", secCfg.GetMinPasswordLength()))
	return hauth.NewBasicAuthProvider(secCfg.GetMinPasswordLength(), secCfg.GetWeakPasswords())
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler     http.Handler
	Queue       *taskqueue.Queue
	IPStore     *ratelimit.InMemoryRateLimitStore
	UserStore   *ratelimit.InMemoryRateLimitStore
	IPWindow    time.Duration
	UserWindow  time.Duration
	AuthLimiter *middleware.RateLimiter

	closeDB func() error
}

// Close releases held resources, currently the database connection when the
// Postgres KV backend is in use.
func (c *ServerComponents) Close(logger *slog.Logger) {
	if c.closeDB != nil {
		if err := c.closeDB(); err != nil {
			logger.Error("database close failed", slog.Any("error", err))
		}
	}
}

// initKVStore selects the shared KV backend. Postgres is used when
// KV_BACKEND=postgres; anything else gets the in-process store.
func initKVStore(logger *slog.Logger, components *ServerComponents) kvstore.Store {
	backend := pkgconfig.GetEnvString("KV_BACKEND", "memory")
	if backend != "postgres" {
		logger.Info("kv store: in-memory backend (single node)")
		return kvstore.NewMemoryStore()
	}

	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("database migration failed", slog.Any("error", err))
		os.Exit(1)
	}
	components.closeDB = database.Close
	logger.Info("kv store: postgres backend")
	return kvstore.NewPostgresStore(database)
}

// newClientIPExtractor picks how client addresses are resolved. With trusted
// proxies configured the X-Forwarded-For chain is walked; otherwise only the
// TCP peer address counts and proxy headers are ignored.
func newClientIPExtractor(logger *slog.Logger) middleware.IPExtractor {
	proxyCfg, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("trusted proxy configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}

	if !proxyCfg.Enabled {
		logger.Info("client addresses resolved from the TCP peer, proxy headers ignored")
		return &middleware.RemoteAddrExtractor{}
	}

	logger.Info("client addresses resolved through trusted proxies",
		slog.Int("trusted_proxies_count", len(proxyCfg.AllowedCIDRs)))
	return middleware.NewTrustedProxyExtractor(*proxyCfg)
}

// limiterSet bundles the request throttling pieces built by setupRateLimiting.
// All fields are nil when rate limiting is disabled.
type limiterSet struct {
	ip          *middleware.IPRateLimiter
	user        *middleware.UserRateLimiter
	ipStore     *ratelimit.InMemoryRateLimitStore
	userStore   *ratelimit.InMemoryRateLimitStore
	ipBreaker   *ratelimit.CircuitBreaker
	userBreaker *ratelimit.CircuitBreaker
}

// setupRateLimiting wires the per-IP and per-user limiters: one sliding-window
// algorithm and metrics registry shared by both, separate stores and circuit
// breakers per limiter.
func setupRateLimiting(logger *slog.Logger, cfg *ratelimit.RateLimitConfig, clientIPs middleware.IPExtractor) *limiterSet {
	if !cfg.Enabled {
		logger.Warn("rate limiting disabled, every client shares the full capacity")
		return &limiterSet{}
	}

	clock := &ratelimit.SystemClock{}
	window := ratelimit.NewSlidingWindowAlgorithm(clock)
	limiterMetrics := ratelimit.NewPrometheusMetrics()

	set := &limiterSet{
		ipStore:   ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{MaxKeys: cfg.MaxActiveKeys}),
		userStore: ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{MaxKeys: cfg.MaxActiveKeys}),
	}
	set.ipBreaker = ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		RecoveryTimeout:  cfg.CircuitBreakerResetTimeout,
		LimiterType:      "ip",
	})
	set.userBreaker = ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		RecoveryTimeout:  cfg.CircuitBreakerResetTimeout,
		LimiterType:      "user",
	})

	set.ip = middleware.NewIPRateLimiter(
		middleware.IPRateLimiterConfig{
			Limit:   cfg.DefaultIPLimit,
			Window:  cfg.DefaultIPWindow,
			Enabled: true,
		},
		clientIPs, set.ipStore, window, limiterMetrics, set.ipBreaker,
	)

	tierQuotas := make(map[ratelimit.UserTier]middleware.TierLimit, len(cfg.TierLimits))
	for _, quota := range cfg.TierLimits {
		tierQuotas[quota.Tier] = middleware.TierLimit{Limit: quota.Limit, Window: quota.Window}
	}

	// The extractor reads the identity that the auth middleware stored on
	// the request context after session validation.
	identity := middleware.NewJWTUserExtractor(hauth.UserContextKey(), nil)

	set.user = middleware.NewUserRateLimiter(middleware.UserRateLimiterConfig{
		Store:               set.userStore,
		Algorithm:           window,
		Metrics:             limiterMetrics,
		CircuitBreaker:      set.userBreaker,
		UserExtractor:       identity,
		TierLimits:          tierQuotas,
		DefaultLimit:        cfg.DefaultUserLimit,
		DefaultWindow:       cfg.DefaultUserWindow,
		SkipUnauthenticated: true,
		Clock:               clock,
	})

	logger.Info("rate limiters ready",
		slog.Int("ip_limit", cfg.DefaultIPLimit),
		slog.Duration("ip_window", cfg.DefaultIPWindow),
		slog.Int("user_limit", cfg.DefaultUserLimit),
		slog.Duration("user_window", cfg.DefaultUserWindow),
		slog.Int("max_keys", cfg.MaxActiveKeys))
	return set
}

// setupServer configures and returns the HTTP handler with all routes and middleware.
func setupServer(logger *slog.Logger, version string) *ServerComponents {
	components := &ServerComponents{}

	orchCfg := config.LoadOrchestrationConfig()

	analysisCfg, err := config.LoadAnalysisConfig(orchCfg.AnalysisConfigPath)
	if err != nil {
		logger.Warn("analysis config unavailable, using defaults",
			slog.String("path", orchCfg.AnalysisConfigPath),
			slog.Any("error", err))
		analysisCfg = config.DefaultAnalysisConfig()
	}

	kv := initKVStore(logger, components)

	resultCache := cache.New(kv, cache.Config{Capacity: orchCfg.CacheCapacity})
	sessions := session.New(kv, session.Config{
		Timeout:            orchCfg.SessionTimeout,
		RememberMeTimeout:  orchCfg.SessionRememberMeTimeout,
		RefreshThreshold:   orchCfg.SessionRefreshThreshold,
		MaxSessionsPerUser: orchCfg.MaxSessionsPerUser,
		IPBinding:          session.ParseIPBindingMode(orchCfg.SessionIPBindingMode),
	})
	queue := taskqueue.New(taskqueue.Config{
		Workers:        orchCfg.QueueWorkers,
		DefaultTimeout: orchCfg.DeepTaskTimeout,
	})
	components.Queue = queue

	completer, err := llm.NewFromEnv()
	if err != nil {
		logger.Error("llm provider initialization failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("llm provider initialized", slog.String("provider", completer.Name()))

	videoData := youtube.New(youtube.LoadConfig())

	orchestrator := orchestrate.NewService(
		sessions,
		resultCache,
		router.NewService(completer, analysisCfg),
		handlers.NewRegistry(completer, resultCache, videoData, analysisCfg),
		synthesis.New(analysisCfg),
		queue,
		orchCfg,
		analysisCfg,
	)

	rateLimitCfg, err := pkgconfig.LoadRateLimitConfig()
	if err != nil {
		logger.Error("rate limit configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}

	clientIPs := newClientIPExtractor(logger)
	limiters := setupRateLimiting(logger, rateLimitCfg, clientIPs)

	deps := &routeDeps{
		version:      version,
		kv:           kv,
		cache:        resultCache,
		sessions:     sessions,
		queue:        queue,
		orchestrator: orchestrator,
		ipExtractor:  clientIPs,
		authProvider: newAuthProvider(logger),

		ipStore:            limiters.ipStore,
		userStore:          limiters.userStore,
		ipCircuitBreaker:   limiters.ipBreaker,
		userCircuitBreaker: limiters.userBreaker,
		rateLimitEnabled:   rateLimitCfg.Enabled,
	}

	rootMux, authLimiter := setupRoutes(deps, limiters.user)
	handler := applyMiddleware(logger, rootMux, limiters.ip)

	components.Handler = handler
	components.IPStore = limiters.ipStore
	components.UserStore = limiters.userStore
	components.IPWindow = rateLimitCfg.DefaultIPWindow
	components.UserWindow = rateLimitCfg.DefaultUserWindow
	components.AuthLimiter = authLimiter
	return components
}

// routeDeps bundles what route registration needs.
type routeDeps struct {
	version      string
	kv           kvstore.Store
	cache        *cache.Cache
	sessions     *session.Store
	queue        *taskqueue.Queue
	orchestrator *orchestrate.Service
	ipExtractor  middleware.IPExtractor
	authProvider *hauth.BasicAuthProvider

	ipStore            *ratelimit.InMemoryRateLimitStore
	userStore          *ratelimit.InMemoryRateLimitStore
	ipCircuitBreaker   *ratelimit.CircuitBreaker
	userCircuitBreaker *ratelimit.CircuitBreaker
	rateLimitEnabled   bool
}

// setupRoutes registers all HTTP routes (public and protected).
func setupRoutes(deps *routeDeps, userRateLimiter *middleware.UserRateLimiter) (*http.ServeMux, *middleware.RateLimiter) {
	// The login endpoint gets its own tight limit: 5 requests per minute per IP.
	authRateLimiter := middleware.NewRateLimiter(5, 1*time.Minute, deps.ipExtractor)

	publicMux := http.NewServeMux()
	publicMux.Handle("/auth/token", authRateLimiter.Middleware(hauth.TokenHandler(deps.authProvider, deps.sessions, deps.ipExtractor)))

	publicMux.Handle("/health", &hhttp.HealthHandler{
		KV:                   deps.kv,
		Cache:                deps.cache,
		Queue:                deps.queue,
		Version:              deps.version,
		IPRateLimiterStore:   deps.ipStore,
		UserRateLimiterStore: deps.userStore,
		IPCircuitBreaker:     deps.ipCircuitBreaker,
		UserCircuitBreaker:   deps.userCircuitBreaker,
		RateLimiterEnabled:   deps.rateLimitEnabled,
	})
	publicMux.Handle("/ready", &hhttp.ReadyHandler{KV: deps.kv})
	publicMux.Handle("/live", &hhttp.LiveHandler{})
	publicMux.Handle("/metrics", hhttp.MetricsHandler())
	publicMux.Handle("/swagger/", httpSwagger.WrapHandler)

	analyzeHandler := hanalyze.NewHandler(deps.orchestrator, deps.ipExtractor)
	opsHandler := &hops.Handler{Cache: deps.cache, Sessions: deps.sessions, Queue: deps.queue}

	privateMux := http.NewServeMux()
	privateMux.HandleFunc("POST /api/v1/analyze", analyzeHandler.Analyze)
	privateMux.HandleFunc("/api/v1/tasks/", analyzeHandler.TasksRouter)

	privateMux.Handle("POST /auth/logout", hauth.LogoutHandler(deps.sessions))
	privateMux.Handle("GET /auth/sessions", hauth.SessionListHandler(deps.sessions))
	privateMux.Handle("POST /auth/sessions/revoke", hauth.RevokeAllHandler(deps.sessions))

	privateMux.HandleFunc("GET /ops/cache/stats", opsHandler.CacheStats)
	privateMux.HandleFunc("POST /ops/cache/sweep", opsHandler.CacheSweep)
	privateMux.HandleFunc("GET /ops/sessions/stats", opsHandler.SessionStats)
	privateMux.HandleFunc("GET /ops/queue", opsHandler.QueueStats)

	// Session validation first; the user limiter then reads the identity it
	// left on the context.
	protected := hauth.Middleware(deps.sessions, deps.ipExtractor)(privateMux)
	if userRateLimiter != nil {
		protected = userRateLimiter.Middleware()(protected)
	}

	rootMux := http.NewServeMux()
	rootMux.Handle("/auth/token", publicMux)
	rootMux.Handle("/health", publicMux)
	rootMux.Handle("/ready", publicMux)
	rootMux.Handle("/live", publicMux)
	rootMux.Handle("/metrics", publicMux)
	rootMux.Handle("/swagger/", publicMux)
	rootMux.Handle("/", protected)

	return rootMux, authRateLimiter
}

// applyMiddleware wraps the handler with the middleware chain, innermost
// first. Request order ends up: Request ID → Tracing → IP Rate Limit →
// Recovery → Logging → Body Limit → Metrics.
func applyMiddleware(logger *slog.Logger, handler http.Handler, ipRateLimiter *middleware.IPRateLimiter) http.Handler {
	chain := handler

	chain = hhttp.MetricsMiddleware(chain)
	chain = hhttp.LimitRequestBody(1 << 20)(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)

	if ipRateLimiter != nil {
		chain = ipRateLimiter.Middleware()(chain)
	}

	// Tracing wraps everything below it so the request log carries a trace ID.
	chain = tracing.Middleware(chain)
	chain = requestid.Middleware(chain)

	return chain
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, components *ServerComponents, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Task queue workers run for the lifetime of the process.
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		if err := components.Queue.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("task queue stopped", slog.Any("error", err))
		}
	}()

	cleanupCfg := hhttp.LoadCleanupConfigFromEnv()
	if components.IPStore != nil {
		go hhttp.StartRateLimitCleanup(ctx, components.IPStore, cleanupCfg.Interval, components.IPWindow, "ip")
	}
	if components.UserStore != nil {
		go hhttp.StartRateLimitCleanup(ctx, components.UserStore, cleanupCfg.Interval, components.UserWindow, "user")
	}
	if components.AuthLimiter != nil {
		go hhttp.StartRateLimitCleanupLegacy(ctx, components.AuthLimiter, cleanupCfg.Interval, "auth")
	}

	addr := pkgconfig.GetEnvString("API_ADDR", ":8080")
	srv := &http.Server{
		Addr:    addr,
		Handler: components.Handler,
		// Bounded header read defeats Slowloris-style slow clients.
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("api server listening",
			slog.String("addr", addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server exited", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	// Stop background goroutines and queue workers. In-flight tasks get their
	// contexts cancelled and finish cooperatively.
	cancel()
	<-queueDone
	logger.Debug("task queue drained")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
