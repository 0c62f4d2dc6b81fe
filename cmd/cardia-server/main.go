package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cardia/cardia/internal/config"
	"github.com/cardia/cardia/internal/domain/assessment"
	"github.com/cardia/cardia/internal/platform/auth"
	"github.com/cardia/cardia/internal/platform/db"
	"github.com/cardia/cardia/internal/platform/middleware"
	"github.com/cardia/cardia/internal/platform/phi"
	"github.com/cardia/cardia/internal/platform/telemetry"
	"github.com/cardia/cardia/internal/platform/webhook"
)

const serverVersion = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cardia-server",
		Short: "Cardiovascular Risk Assessment API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assessment API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	// migrate down - keep as warning
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Use Atlas CLI for migration rollback: atlas schema apply --dir migrations/")
			return nil
		},
	})

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema and run migrations against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Tenant created and migrated successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List existing tenant schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			tenants, err := db.ListTenantSchemas(ctx, pool)
			if err != nil {
				return err
			}
			if len(tenants) == 0 {
				fmt.Println("No tenant schemas found.")
				return nil
			}
			for _, t := range tenants {
				fmt.Println(t)
			}
			return nil
		},
	}
	cmd.AddCommand(listCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Telemetry
	tp := telemetry.New(telemetry.Config{
		ServiceName:    "cardia-server",
		ServiceVersion: serverVersion,
		Environment:    cfg.Env,
	})

	// Token revocation store, consulted by the JWT middleware and managed
	// through the admin endpoints.
	revocationStore := auth.NewTokenRevocationStore()
	defer revocationStore.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID", "X-Break-Glass"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Sanitize())
	e.Use(tp.TracingMiddleware())
	e.Use(tp.MetricsMiddleware())

	// API key auth for service clients. Requests without a key fall
	// through to the JWT middleware below.
	apiKeyMgr := auth.NewAPIKeyManager(auth.NewInMemoryAPIKeyStore())
	e.Use(auth.APIKeyMiddleware(apiKeyMgr, auth.WithScopeEnforcement(true)))

	// Auth middleware
	switch cfg.ResolvedAuthMode() {
	case "dev":
		logger.Warn().Msg("dev auth mode enabled; requests without a token run as dev-user")
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	case "hmac":
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthHMACSecret),
			Skipper:    auth.AuthSkipper,
			Revocation: revocationStore,
		}))
	default: // jwks
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			Skipper:    auth.AuthSkipper,
			Revocation: revocationStore,
		}))
	}

	// Emergency access override. Must run after auth and before RBAC checks.
	e.Use(middleware.BreakGlass(logger))

	// Tenant middleware
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	apiV1 := e.Group("/api/v1")

	// Role policy enforcement per resource collection.
	abacEngine := auth.NewABACEngine(auth.DefaultPolicies())
	apiV1.Use(auth.ABACMiddleware(abacEngine))

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Per-client quota plans on top of the IP token bucket.
	quotaLimiter := middleware.NewQuotaLimiter()
	apiV1.Use(middleware.QuotaMiddleware(quotaLimiter))

	apiV1.Use(middleware.BodyLimit("1M", "5M"))
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))
	apiV1.Use(middleware.ETagMiddleware(middleware.DefaultCacheConfig()))
	apiV1.Use(middleware.ConditionalRequestMiddleware())

	// Health checks and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": serverVersion,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", tp.PrometheusHandler())

	// PHI field-level encryption
	phiSvc, err := phi.NewService(cfg.PHIEncryptionKey, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PHI encryption")
	}

	// Webhook delivery for assessment lifecycle events
	webhookMgr := webhook.NewManager(webhook.NewMemoryStore(), webhook.WithLogger(logger))
	eventSink := webhook.NewSink(webhookMgr, cfg.DefaultTenant)

	// Assessment domain
	assessRepo := assessment.NewRepoPGWithEncryption(pool, phiSvc.Encryptor())
	assessSvc := assessment.NewService(assessRepo, eventSink)
	assessHandler := assessment.NewHandler(assessSvc)
	assessHandler.RegisterRoutes(apiV1)

	// Admin surface
	adminGroup := apiV1.Group("/admin", auth.RequireRole("admin"))
	auth.RegisterRevocationRoutes(adminGroup, revocationStore)

	auth.NewAPIKeyHandler(apiKeyMgr).RegisterRoutes(adminGroup.Group("/api-keys"))
	webhook.NewHandler(webhookMgr).RegisterRoutes(adminGroup.Group("/webhooks"))
	middleware.NewQuotaHandler(quotaLimiter).RegisterRoutes(adminGroup)

	// Background maintenance: quota window cleanup and health gauges.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	quotaLimiter.StartCleanup(bgCtx, 10*time.Minute)
	go refreshHealthGauges(bgCtx, pool, tp.Health(), cfg.DefaultTenant)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		var err error
		if cfg.TLSEnabled {
			logger.Info().Str("port", cfg.Port).Msg("starting server with TLS")
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logger.Info().Str("port", cfg.Port).Msg("starting server")
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("telemetry shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

// refreshHealthGauges publishes connection pool utilization and the stored
// assessment count for the default tenant until ctx is cancelled.
func refreshHealthGauges(ctx context.Context, pool *pgxpool.Pool, rec *telemetry.HealthRecorder, tenant string) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.GetPoolStats(pool)
			rec.SetDBPoolActive(int64(stats.AcquiredConns))
			rec.SetDBPoolIdle(int64(stats.IdleConns))
			if n, err := assessmentCount(ctx, pool, tenant); err == nil {
				rec.SetAssessmentsTotal(n)
			}
		}
	}
}

// assessmentCount counts assessment rows in the tenant's schema. The tenant
// name is validated by config.Validate before it reaches this query.
func assessmentCount(ctx context.Context, pool *pgxpool.Pool, tenant string) (int64, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO tenant_%s, shared, public", tenant)); err != nil {
		return 0, err
	}
	var n int64
	err = conn.QueryRow(ctx, "SELECT COUNT(*) FROM assessment").Scan(&n)
	return n, err
}
