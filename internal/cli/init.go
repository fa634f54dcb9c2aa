// Package cli provides the initialization shared by cmd/ledgerctl and
// cmd/ledger-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance/internal/admission"
	"finance/internal/amqp"
	"finance/internal/cache"
	"finance/internal/config"
	"finance/internal/export"
	"finance/internal/log"
	"finance/internal/notify"
	"finance/internal/receipt"
	"finance/internal/services"
	"finance/internal/storage"

	"github.com/joho/godotenv"
)

const cacheCleanupInterval = time.Minute

// SetupLogger initializes structured logging at the given LOG_LEVEL and
// sets it as the default logger.
func SetupLogger(level, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Component = component
	cfg.Output = os.Stderr
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// App holds every wired collaborator of the ledger. Optional integrations
// (AMQP, Sheets export, receipt extraction) are nil when not configured.
type App struct {
	Config *config.Config

	DB           *storage.DB
	Ledger       *storage.Ledger
	Accounts     *storage.Accounts
	Transactions *storage.Transactions
	Budgets      *storage.Budgets

	Views      *cache.Views
	Dispatcher *notify.Dispatcher
	Guard      *admission.Guard
	AMQP       *amqp.Client
	Exporter   *export.SheetsExporter

	Service *services.LedgerService
	Auditor *services.Auditor

	cacheManager *cache.Manager
}

// Build opens storage and wires the ledger service with its admission
// guard, view cache and notification sinks. An unreachable broker is
// logged and skipped; notifications then stay local.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	db, err := storage.Open(ctx, cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", cfg.SQLiteDBPath, err)
	}

	rules, err := loadRules(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	app := &App{Config: cfg, DB: db}
	app.Ledger = storage.NewLedger(db)
	app.Accounts = storage.NewAccounts(db)
	app.Transactions = storage.NewTransactions(db, app.Ledger)
	app.Budgets = storage.NewBudgets(db, app.Transactions)

	app.Views = cache.NewViews(cfg.CacheSize, cfg.CacheTTL)
	app.cacheManager = cache.NewManager()
	app.cacheManager.Register(app.Views)
	app.cacheManager.StartCleanup(cacheCleanupInterval)

	// The service drops this process's cached views itself before it
	// returns; the dispatcher only carries notifications to other processes.
	var sinks []notify.Sink
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, notifications stay local", log.FieldError, err)
		} else {
			app.AMQP = client
			sinks = append(sinks, notify.NewAMQPSink(client))
		}
	}
	app.Dispatcher = notify.NewDispatcher(cfg.NotifyQueueSize, sinks...)
	app.Guard = admission.NewGuard(rules)

	opts := services.Options{
		Admission: app.Guard,
		Notifier:  app.Dispatcher,
		Views:     app.Views,
	}
	if cfg.ReceiptsEnabled() {
		extractor, err := receipt.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			app.Close()
			return nil, err
		}
		opts.Receipts = extractor
	}
	if cfg.ExportEnabled() {
		exporter, err := export.NewSheetsExporter(ctx, export.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Exporter = exporter
	}

	app.Service = services.NewLedgerService(app.Accounts, app.Transactions, app.Budgets, opts)
	app.Auditor = services.NewAuditor(app.Accounts, app.Ledger, app.Views, app.Dispatcher)

	logger.Debug("Ledger wired",
		"db", db.Path(),
		"amqp", app.AMQP != nil,
		"receipts", opts.Receipts != nil,
		"export", app.Exporter != nil)
	return app, nil
}

func loadRules(cfg *config.Config) (admission.Rules, error) {
	if cfg.AdmissionRulesFile != "" {
		rules, err := admission.LoadRules(cfg.AdmissionRulesFile)
		if err != nil {
			return admission.Rules{}, fmt.Errorf("load admission rules: %w", err)
		}
		return rules, nil
	}
	rules := admission.DefaultRules()
	rules.Limit = cfg.AdmissionLimit
	rules.Window = cfg.AdmissionWindow
	return rules, rules.Validate()
}

// Close drains pending notifications before closing the broker and the
// database.
func (a *App) Close() error {
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	if a.Guard != nil {
		a.Guard.Stop()
	}
	if a.cacheManager != nil {
		a.cacheManager.Stop()
		a.cacheManager = nil
	}
	var errs []error
	if a.AMQP != nil {
		errs = append(errs, a.AMQP.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The
// cleanup function runs once after the signal, bounded by timeout.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ended.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
