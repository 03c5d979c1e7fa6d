package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmerrifield20/lostfound/internal/health"
	"github.com/jmerrifield20/lostfound/internal/identity"
	"github.com/jmerrifield20/lostfound/internal/itemledger"
	"github.com/jmerrifield20/lostfound/internal/kvstore"
	"github.com/jmerrifield20/lostfound/internal/lostfound/handler"
	"github.com/jmerrifield20/lostfound/internal/lostfound/service"
	"github.com/jmerrifield20/lostfound/internal/media"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("ledgerd exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("ledgerd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("server.admin_secret", "")
	viper.SetDefault("storage.driver", kvstore.DriverBolt)
	viper.SetDefault("storage.path", "data/ledger.db")
	viper.SetDefault("storage.dsn", "")
	viper.SetDefault("ledger.key", itemledger.DefaultKey)
	viper.SetDefault("ledger.unique_ids", false)
	viper.SetDefault("ledger.audit_interval", "5m")
	viper.SetDefault("items.enforce_ownership", true)
	viper.SetDefault("session.secret", "")
	viper.SetDefault("session.ttl", "24h")
	viper.SetDefault("media.max_image_bytes", media.DefaultMaxImageBytes)

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Storage ──────────────────────────────────────────────────────────────
	backend, err := kvstore.Open(ctx, kvstore.Config{
		Driver: viper.GetString("storage.driver"),
		Path:   viper.GetString("storage.path"),
		DSN:    viper.GetString("storage.dsn"),
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()
	logger.Info("storage ready", zap.String("driver", viper.GetString("storage.driver")))

	// ── Ledger ───────────────────────────────────────────────────────────────
	store, err := itemledger.Open(ctx, backend,
		itemledger.WithKey(viper.GetString("ledger.key")),
		itemledger.WithUniqueIDs(viper.GetBool("ledger.unique_ids")),
		itemledger.WithLogger(logger),
		itemledger.WithMutationHook(handler.RecordLedgerMutation),
	)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	// A broken chain is reported, never fatal.
	n, _ := store.Len(ctx)
	if err := store.Verify(ctx); err != nil {
		logger.Warn("ledger integrity check FAILED", zap.Int("entries", n), zap.Error(err))
	} else {
		latest, _ := store.Latest(ctx)
		logger.Info("ledger verified",
			zap.Int("entries", n),
			zap.String("latest", latest.Fingerprint),
		)
	}

	auditEvery, err := time.ParseDuration(viper.GetString("ledger.audit_interval"))
	if err != nil {
		return fmt.Errorf("parse ledger.audit_interval: %w", err)
	}
	auditor := health.New(store, health.Config{CheckInterval: auditEvery}, logger)
	auditor.SetMetricsRecord(handler.RecordChainVerification)
	if auditEvery > 0 {
		go auditor.Start(ctx)
	} else {
		auditor.Check(ctx)
	}

	// ── Sessions ─────────────────────────────────────────────────────────────
	secret := viper.GetString("session.secret")
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		logger.Warn("session.secret not set; using an ephemeral secret, sessions will not survive a restart")
	}
	ttl, err := time.ParseDuration(viper.GetString("session.ttl"))
	if err != nil {
		return fmt.Errorf("parse session.ttl: %w", err)
	}
	port := viper.GetInt("server.port")
	sessions, err := identity.NewSessionIssuer(secret, fmt.Sprintf("http://localhost:%d", port), ttl)
	if err != nil {
		return fmt.Errorf("session issuer: %w", err)
	}

	// ── Wire up layers ───────────────────────────────────────────────────────
	svc := service.NewItemService(store, logger)
	svc.SetEnforceOwnership(viper.GetBool("items.enforce_ownership"))

	maxImage := viper.GetInt64("media.max_image_bytes")
	itemsHandler := handler.NewItemsHandler(svc, sessions, logger)
	itemsHandler.SetMaxImageBytes(maxImage)
	sessionHandler := handler.NewSessionHandler(sessions, logger)
	ledgerHandler := handler.NewLedgerHandler(store, logger)
	adminSecret := viper.GetString("server.admin_secret")
	ledgerHandler.SetRechainer(svc, adminSecret)
	if adminSecret == "" {
		logger.Info("server.admin_secret not set; POST /ledger/rechain is disabled")
	}

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("server.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", identity.AdminSecretHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.Use(securityHeaders())

	// Item photos arrive inline, so the body limit follows the image cap.
	router.Use(handler.BodyLimit(maxImage + 1<<20))

	rps := viper.GetFloat64("server.rate_limit_rps")
	router.Use(handler.RateLimiter(ctx, rps, int(rps*2)))
	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		report := auditor.Last()
		status := "ok"
		if report.Status == health.StatusBroken {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "ledger": report})
	})
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	sessionHandler.Register(v1)
	itemsHandler.Register(v1)
	ledgerHandler.Register(v1)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledgerd HTTP listening", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP listen: %w", err)
	}
	logger.Info("shutting down ledgerd...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	logger.Info("ledgerd stopped")
	return nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
