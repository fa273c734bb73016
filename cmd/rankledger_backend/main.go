package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/easebot/rankledger/internal/adapters/discord"
	"github.com/easebot/rankledger/internal/core/ports"
	"github.com/easebot/rankledger/internal/core/services"
	"github.com/easebot/rankledger/internal/handlers"
	"github.com/easebot/rankledger/internal/middleware"
	"github.com/easebot/rankledger/internal/platform/config"
	"github.com/easebot/rankledger/internal/repositories/database/jsonfile"
	"github.com/easebot/rankledger/internal/repositories/database/pgsql"
	"github.com/easebot/rankledger/internal/signature"
	"github.com/easebot/rankledger/internal/utils"
	"github.com/easebot/rankledger/pkg/database"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Ledger files store amounts as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ledgerRepo, auditRepo, cleanup, err := setupRepositories(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	auditService := services.NewAuditService(auditRepo, 1024, logger)
	auditService.Start()
	defer auditService.Shutdown()

	var roles ports.RoleManager
	var announcer ports.Announcer
	if cfg.DiscordToken != "" && cfg.GuildID != "" {
		client := discord.NewClient(cfg.DiscordToken, cfg.GuildID, cfg.PromoChannelID)
		roles = client
		announcer = client
	}

	ledgerService := services.NewLedgerService(ledgerRepo)
	rankService := services.NewRankService(cfg.Ranks)
	verifier := signature.NewVerifier(cfg.WebhookSecret)
	purchaseService := services.NewPurchaseService(verifier, ledgerService, rankService, roles, announcer, auditService, logger)
	authService := services.NewAuthService(cfg)

	reconciler := services.NewReconcileService(ledgerService, rankService, roles, auditService, logger, cfg.ReconcileInterval)
	reconcileCtx, stopReconciler := context.WithCancel(context.Background())
	defer stopReconciler()
	go reconciler.Run(reconcileCtx)

	posthogClient := utils.InitializePosthogClient(cfg.PosthogAPIKey, cfg.PosthogEndpoint, logger)
	defer posthogClient.Close()

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	r.GET("/", handlers.GetHome)

	setupWebhookRoute(r, cfg, purchaseService, logger)

	authHandler := handlers.NewAuthHandler(authService)
	r.Group("/auth").POST("/login", authHandler.Login)

	setupAPIV1Routes(r, cfg, purchaseService, ledgerService, rankService, auditService, posthogClient)

	logger.Info("Server starting", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupRepositories selects the ledger backend: Postgres when PGSQL_URL is
// configured, the JSON snapshot files otherwise. The audit log always lives
// in the data directory; it is a separate store either way.
func setupRepositories(cfg *config.Config, logger *slog.Logger) (ports.LedgerRepository, ports.AuditRepository, func(), error) {
	auditRepo, err := jsonfile.NewAuditRepository(cfg.DataDir, 0)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.DatabaseURL == "" {
		ledgerRepo, err := jsonfile.NewLedgerRepository(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Using JSON snapshot ledger store", slog.String("data_dir", cfg.DataDir))
		return ledgerRepo, auditRepo, func() {}, nil
	}

	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
		dbPool.Close()
		return nil, nil, nil, err
	}
	logger.Info("Using Postgres ledger store")
	ledgerRepo := pgsql.NewLedgerRepository(dbPool, filepath.Join(cfg.DataDir, "backups"))
	return ledgerRepo, auditRepo, dbPool.Close, nil
}

func runMigrations(databaseURL string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")
	// Open a standard sql.DB connection for migrate, using the pgx stdlib
	// driver to stay compatible with the main pool.
	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer migrationDB.Close()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	if sourceErr, dbErr := m.Close(); sourceErr != nil {
		return sourceErr
	} else if dbErr != nil {
		return dbErr
	}
	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

func setupWebhookRoute(r *gin.Engine, cfg *config.Config, purchaseService *services.PurchaseService, logger *slog.Logger) {
	rate, err := limiter.NewRateFromFormatted(cfg.WebhookRateLimit)
	if err != nil {
		logger.Warn("Invalid WEBHOOK_RATE_LIMIT, falling back to 30-M", slog.String("error", err.Error()))
		rate, _ = limiter.NewRateFromFormatted("30-M")
	}
	webhookLimiter := limiter.New(memory.NewStore(), rate)

	webhookHandler := handlers.NewWebhookHandler(purchaseService)
	r.POST("/easebot", middleware.RateLimit(webhookLimiter), webhookHandler.Receive)
}

func setupAPIV1Routes(r *gin.Engine, cfg *config.Config, purchaseService *services.PurchaseService, ledgerService *services.LedgerService, rankService *services.RankService, auditService *services.AuditService, posthogClient *utils.PosthogClientWrapper) {
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret), middleware.PosthogMiddleware(posthogClient))

	if cfg.AllowTestCommands {
		purchaseHandler := handlers.NewPurchaseHandler(purchaseService)
		v1.POST("/purchases", purchaseHandler.Create)
	}

	ledgerHandler := handlers.NewLedgerHandler(ledgerService, rankService, auditService)
	v1.GET("/users/:userID", ledgerHandler.GetUser)
	v1.GET("/audit", ledgerHandler.GetAuditLog)
	v1.POST("/backups", ledgerHandler.CreateBackup)
}
