// Package server wires the resale policy engine into an HTTP service.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/smithciaran833/tickettoken-resale/internal/accounts"
	"github.com/smithciaran833/tickettoken-resale/internal/blocks"
	"github.com/smithciaran833/tickettoken-resale/internal/config"
	"github.com/smithciaran833/tickettoken-resale/internal/health"
	"github.com/smithciaran833/tickettoken-resale/internal/idgen"
	"github.com/smithciaran833/tickettoken-resale/internal/logging"
	"github.com/smithciaran833/tickettoken-resale/internal/metrics"
	"github.com/smithciaran833/tickettoken-resale/internal/policy"
	"github.com/smithciaran833/tickettoken-resale/internal/ratelimit"
	"github.com/smithciaran833/tickettoken-resale/internal/resale"
	"github.com/smithciaran833/tickettoken-resale/internal/risk"
	"github.com/smithciaran833/tickettoken-resale/internal/security"
	"github.com/smithciaran833/tickettoken-resale/internal/traces"
	"github.com/smithciaran833/tickettoken-resale/internal/transfer"
	"github.com/smithciaran833/tickettoken-resale/internal/validation"
)

// Server is the HTTP front of the resale policy engine.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *sql.DB // nil if using in-memory
	policyStore policy.Store
	resolver    *policy.Resolver
	transfers   transfer.Store
	accounts    accounts.Store
	blockSvc    *blocks.Service
	resaleSvc   *resale.Service

	healthReg   *health.Registry
	rateLimiter *ratelimit.Limiter
	router      *gin.Engine
	httpSrv     *http.Server

	shutdownTraces func(context.Context) error
	cancelRunCtx   context.CancelFunc

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		healthReg: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		s.logger.Info("using postgres storage")

		policyStore := policy.NewPostgresStore(db)
		if err := policyStore.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("policy migrations: %w", err)
		}
		transferStore := transfer.NewPostgresStore(db)
		if err := transferStore.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("transfer migrations: %w", err)
		}
		accountStore := accounts.NewPostgresStore(db)
		if err := accountStore.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("accounts migrations: %w", err)
		}
		blockStore := blocks.NewPostgresStore(db)
		if err := blockStore.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("blocks migrations: %w", err)
		}

		s.policyStore = policyStore
		s.transfers = transferStore
		s.accounts = accountStore
		s.blockSvc = blocks.NewService(blockStore)
	} else {
		s.logger.Info("using in-memory storage (set DATABASE_URL for persistence)")
		s.policyStore = policy.NewMemoryStore()
		s.transfers = transfer.NewMemoryStore()
		s.accounts = accounts.NewMemoryStore()
		s.blockSvc = blocks.NewService(blocks.NewMemoryStore())
	}

	s.resolver = policy.NewResolver(s.policyStore).
		WithCacheTTL(time.Duration(cfg.PolicyCacheTTLSeconds) * time.Second)

	var riskStore risk.Store
	if s.db != nil {
		pgRisk := risk.NewPostgresStore(s.db)
		if err := pgRisk.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("risk migrations: %w", err)
		}
		riskStore = pgRisk
	} else {
		riskStore = risk.NewMemoryStore()
	}
	fraud := risk.NewFraudDetector(s.transfers, s.accounts, riskStore)
	if cfg.FraudBlockThreshold > 0 {
		fraud = fraud.WithBlockThreshold(cfg.FraudBlockThreshold)
	}
	scalping := risk.NewScalpingDetector(s.transfers, riskStore)

	validator := transfer.NewValidator(s.resolver, s.transfers, s.accounts)
	s.resaleSvc = resale.NewService(validator, s.transfers, s.blockSvc, fraud, scalping)

	// Tracing
	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	s.shutdownTraces = shutdown

	// Health checks
	s.healthReg.Register("storage", s.storageCheck)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.Hex(8)
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")
	v1.Use(validation.IDParamMiddleware())

	resaleHandler := resale.NewHandler(s.resaleSvc)
	resaleHandler.RegisterRoutes(v1)

	blocksHandler := blocks.NewHandler(s.blockSvc)
	blocksHandler.RegisterRoutes(v1)

	policyHandler := policy.NewHandler(s.policyStore, s.resolver)
	policyHandler.RegisterRoutes(v1)

	admin := v1.Group("/admin")
	admin.Use(s.adminAuthMiddleware())
	blocksHandler.RegisterAdminRoutes(admin)
	policyHandler.RegisterAdminRoutes(admin)
}

// adminAuthMiddleware guards admin routes with the shared secret. In
// development with no secret configured, admin routes stay open for
// local testing.
func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" && s.cfg.IsDevelopment() {
			c.Next()
			return
		}
		if c.GetHeader("X-Admin-Secret") != s.cfg.AdminSecret || s.cfg.AdminSecret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid admin secret",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) storageCheck(ctx context.Context) health.Status {
	if s.db == nil {
		return health.Status{Name: "storage", Healthy: true, Detail: "in-memory"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return health.Status{Name: "storage", Healthy: false, Detail: err.Error()}
	}
	return health.Status{Name: "storage", Healthy: true}
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.healthReg.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Sample DB pool stats into Prometheus gauges
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
