// Package app initializes and runs the main application service.
// It configures logging, storage, mail delivery, authentication, and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/linkshort/internal/accounts"
	"github.com/patric-chuzhbe/linkshort/internal/auth"
	"github.com/patric-chuzhbe/linkshort/internal/config"
	"github.com/patric-chuzhbe/linkshort/internal/db/memorystorage"
	"github.com/patric-chuzhbe/linkshort/internal/db/mongodb"
	"github.com/patric-chuzhbe/linkshort/internal/db/postgresdb"
	"github.com/patric-chuzhbe/linkshort/internal/db/storage"
	"github.com/patric-chuzhbe/linkshort/internal/logger"
	"github.com/patric-chuzhbe/linkshort/internal/mailer"
	"github.com/patric-chuzhbe/linkshort/internal/mailqueue"
	"github.com/patric-chuzhbe/linkshort/internal/models"
	"github.com/patric-chuzhbe/linkshort/internal/router"
	"github.com/patric-chuzhbe/linkshort/internal/shortener"
	"github.com/patric-chuzhbe/linkshort/internal/tokens"
)

// App encapsulates the configuration, HTTP handler, storage backend,
// and background mail workers needed to run the service.
type App struct {
	cfg           *config.Config
	db            storage.Storage
	mailQueue     *mailqueue.MailQueue
	stopMailQueue context.CancelFunc
	httpHandler   http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - starting the background mail workers
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	app.mailQueue = mailqueue.New(
		mailer.NewClient(mailer.Config{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
			From:     app.cfg.MailFrom,
		}),
		app.cfg.MailQueueCapacity,
		app.cfg.MailWorkers,
	)
	mailQueueRunCtx, stopMailQueue := context.WithCancel(context.Background())
	app.stopMailQueue = stopMailQueue

	app.mailQueue.Run(mailQueueRunCtx)
	app.mailQueue.ListenErrors(func(err error) {
		logger.Log.Errorln("Error passed from the `app.mailQueue.ListenErrors()`:", zap.Error(err))
	})

	secretKey := []byte(app.cfg.SecretKey)
	authenticator := auth.New(app.db, secretKey, app.cfg.SessionTokenTTL)

	app.httpHandler = router.New(
		accounts.New(
			app.db,
			tokens.New(app.db, secretKey, app.cfg.ResetTokenTTL),
			authenticator,
			app.mailQueue,
			app.cfg.BaseURL,
		),
		shortener.New(app.db, app.cfg.BaseURL),
		authenticator,
		app.db,
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing storage and exiting...")
		a.stopMailQueue()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.MongoURL != "" {
		return models.StorageTypeMongo
	}

	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypeMongo:
		return mongodb.New(
			context.Background(),
			cfg.MongoURL,
			cfg.MongoDBName,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)
	}

	return memorystorage.New()
}
