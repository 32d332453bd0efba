package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yuchialin/cvspay/internal"
	"github.com/yuchialin/cvspay/internal/barcode"
	"github.com/yuchialin/cvspay/internal/clientauth"
	clientauthPostgres "github.com/yuchialin/cvspay/internal/clientauth/postgres"
	"github.com/yuchialin/cvspay/internal/core/events"
	"github.com/yuchialin/cvspay/internal/gateway"
	"github.com/yuchialin/cvspay/internal/notify"
	"github.com/yuchialin/cvspay/internal/order"
	orderPostgres "github.com/yuchialin/cvspay/internal/order/postgres"
	"github.com/yuchialin/cvspay/internal/ratelimit"
	"github.com/yuchialin/cvspay/internal/signature"
	"github.com/yuchialin/cvspay/internal/transport/rest"
	"github.com/yuchialin/cvspay/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config         *internal.Config
	DB             *sqlx.DB
	Router         *chi.Mux
	Logger         *slog.Logger
	AuthHandler    *clientauth.Handler
	OrderHandler   *order.Handler
	WebhookHandler *order.WebhookHandler
	BarcodeHandler *barcode.Handler
	RenderLimiter  ratelimit.Limiter
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB.DB,
		deps.AuthHandler,
		deps.OrderHandler,
		deps.WebhookHandler,
		deps.BarcodeHandler,
		deps.RenderLimiter,
		deps.Logger,
	)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	appLogger := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	codec, err := signature.NewCodec(config.Gateway.HashKey, config.Gateway.HashIV)
	if err != nil {
		return nil, fmt.Errorf("failed to build signature codec: %w", err)
	}

	gatewayClient := gateway.NewClient(config.Gateway, codec, appLogger)
	eventBus := events.NewEventBus(appLogger)

	orderRepo := orderPostgres.NewOrderRepository(gormDB)
	orderService := order.NewService(orderRepo, gatewayClient, eventBus, appLogger)
	orderHandler := order.NewHandler(orderService)
	webhookHandler := order.NewWebhookHandler(orderService, codec)

	clientRepo := clientauthPostgres.NewClientRepository(gormDB)
	tokenGen := clientauth.NewJWTTokenGenerator(config.Security.TokenSecret, config.Security.AccessTokenDuration)
	authService := clientauth.NewService(clientRepo, tokenGen, config.Security.BCryptCost)
	authHandler := clientauth.NewHandler(authService)

	notifier := notify.NewNotifier(codec, appLogger)
	notifier.RegisterEventHandlers(eventBus)

	var renderLimiter ratelimit.Limiter = ratelimit.Unlimited{}
	if config.RateLimit.Enabled {
		renderLimiter = ratelimit.NewMemoryLimiter(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
	}

	return &Dependencies{
		Config:         config,
		Logger:         appLogger,
		DB:             db,
		Router:         chi.NewRouter(),
		AuthHandler:    authHandler,
		OrderHandler:   orderHandler,
		WebhookHandler: webhookHandler,
		BarcodeHandler: barcode.NewHandler(),
		RenderLimiter:  renderLimiter,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm wraps the already open pgx connection so gorm and sqlx share a pool.
// TranslateError lets repositories match gorm.ErrDuplicatedKey on unique
// constraint violations.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
}
