// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "finflow-commitments/internal/api"
	"finflow-commitments/internal/api/handler"
	"finflow-commitments/internal/config"
	"finflow-commitments/internal/gateway"
	"finflow-commitments/internal/repository"
	"finflow-commitments/internal/repository/postgres"
	"finflow-commitments/internal/service"
	"finflow-commitments/internal/util"
	"finflow-commitments/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB

	// Repositories
	CommitmentRepository repository.CommitmentRepository
	SettlementRepository repository.SettlementRepository
	ProductRepository    repository.ProductRepository

	// External systems
	WalletGateway gateway.WalletGateway

	// Services
	CommitmentService service.CommitmentService
	SettlementService service.SettlementService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(util.LogOptions{Level: cfg.LogLevel, Format: cfg.LogFormat})
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database and apply the schema
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	if err := db.EnsureSchema(ctx, app.DB); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	app.Logger.Info("Database connection established.")

	// 4. Initialize Repositories
	app.CommitmentRepository = postgres.NewCommitmentRepository(app.DB)
	app.SettlementRepository = postgres.NewSettlementRepository(app.DB)
	app.ProductRepository = postgres.NewProductRepository(app.DB)
	app.Logger.Info("Repositories initialized.")

	// 5. Initialize the wallet gateway
	wallet, err := gateway.NewHTTPWalletGateway(cfg.WalletGatewayURL, cfg.WalletGatewayTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize wallet gateway: %w", err)
	}
	app.WalletGateway = wallet

	// 6. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.CommitmentService = service.NewCommitmentService(
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.CommitmentRepository,
		app.SettlementRepository,
		app.ProductRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.SettlementService = service.NewSettlementService(
		app.DB,
		app.CommitmentRepository,
		app.SettlementRepository,
		app.WalletGateway,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	commitmentHandler := handler.NewCommitmentHandler(app.CommitmentService, app.Logger)
	settlementHandler := handler.NewSettlementHandler(app.SettlementService, app.Logger)
	app.HTTPHandler = router.NewRouter(commitmentHandler, settlementHandler, router.RouterOptions{
		JWTSecret:      []byte(cfg.JWTSecret),
		MetricsEnabled: cfg.MetricsEnabled,
	}, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
