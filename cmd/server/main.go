/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the retail ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, then flags)
  2. Build the zap logger
  3. Open the store (SQLite or PostgreSQL)
  4. Assemble the ledger core and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port           HTTP server port (default: 8080, env SERVER_PORT)
  -driver         sqlite | postgres (env DB_DRIVER)
  -db             SQLite database path (default: ledger.db, env DB_PATH)
                  Use ":memory:" for in-memory database
  -dsn            PostgreSQL connection string (env DB_SOURCE)
  -log-level      debug | info | warn | error (env LOG_LEVEL)
  -store-timeout  Timeout per store call (env STORE_TIMEOUT)

AUDIT:
  SQLite keeps the audit trail in its own table and also logs it.
  PostgreSQL deployments log it only; /audit answers 501.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/ledger.db"
  ./server -db=":memory:" -port=3000
  DB_DRIVER=postgres DB_SOURCE=postgres://ledger@localhost/ledger ./server

SEE ALSO:
  - config/config.go: Settings
  - api/server.go: Router configuration
  - bank/bank.go: Ledger core
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/retail-ledger/api"
	"github.com/warp/retail-ledger/audit"
	"github.com/warp/retail-ledger/bank"
	"github.com/warp/retail-ledger/config"
	"github.com/warp/retail-ledger/store/postgres"
	"github.com/warp/retail-ledger/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	// Initialize store
	var (
		store   bank.Store
		sink    bank.AuditLog = audit.NewZapLog(logger)
		querier bank.AuditQuerier
		closeFn func()
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := postgres.New(ctx, cfg.DBSource)
		cancel()
		if err != nil {
			logger.Fatal("failed to initialize database", zap.Error(err))
		}
		store, closeFn = pg, pg.Close
	default:
		lite, err := sqlite.New(cfg.DBPath)
		if err != nil {
			logger.Fatal("failed to initialize database", zap.Error(err))
		}
		store, querier = lite, lite
		sink = audit.Multi{lite, sink}
		closeFn = func() { lite.Close() }
	}
	defer closeFn()

	ledger := bank.New(store, sink, bank.Options{
		Logger:        logger,
		StoreTimeout:  cfg.StoreTimeout,
		AllocAttempts: cfg.AllocAttempts,
		CASAttempts:   cfg.CASAttempts,
	})

	handler := api.NewHandler(ledger, querier, logger.Named("api"))
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("driver", cfg.Driver),
			zap.String("environment", cfg.Env))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}
