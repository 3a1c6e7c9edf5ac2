// Package server wires the sealbox components together and runs the gRPC
// endpoint until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/logging"
	"github.com/dmitrijs2005/sealbox/internal/server/cache"
	"github.com/dmitrijs2005/sealbox/internal/server/config"
	"github.com/dmitrijs2005/sealbox/internal/server/lifecycle"
	"github.com/dmitrijs2005/sealbox/internal/server/policy"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sealbox/internal/server/services"
	"github.com/dmitrijs2005/sealbox/internal/server/storage"
	"github.com/dmitrijs2005/sealbox/internal/server/vault"

	gs "github.com/dmitrijs2005/sealbox/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	cache       cache.Cache
	fileService *services.FileService
}

// openDB is a test seam.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	masterKey, err := c.MasterKeyBytes()
	if err != nil {
		return nil, err
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store, err := newBlobStore(ctx, c)
	if err != nil {
		db.Close()
		return nil, err
	}

	v, err := vault.New(store, masterKey, c.ScratchDir, c.MaxUploadSize, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	ch := newCache(ctx, c, logger)

	tx := dbx.NewSQLTransactor(db, nil)
	ledger := lifecycle.NewLedger(tx, rm, c.DefaultExpiry, logger)
	engine := policy.NewEngine(policy.Options{OwnerMetadataAfterExpiry: c.OwnerMetadataAfterExpiry})

	fs, err := services.NewFileService(tx, rm, v, ledger, engine, ch, services.Options{
		DefaultExpiry: c.DefaultExpiry,
		DownloadDir:   filepath.Join(c.ScratchDir, "downloads"),
		PublicBaseURL: c.PublicBaseURL,
		CacheTTL:      c.CacheTTL,
	}, logger)
	if err != nil {
		ch.Close()
		db.Close()
		return nil, err
	}

	return &App{config: c, logger: logger, db: db, cache: ch, fileService: fs}, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (storage.BlobStore, error) {
	switch c.StorageBackend {
	case config.StorageS3:
		return storage.NewS3Store(ctx, storage.S3Options{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	default:
		return storage.NewLocalStore(c.StorageDir)
	}
}

// newCache falls back to no caching when Redis is not configured. An
// unreachable Redis is kept: every failed call counts as a miss.
func newCache(ctx context.Context, c *config.Config, logger logging.Logger) cache.Cache {
	if c.RedisAddr == "" {
		return cache.NopCache{}
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{Addr: c.RedisAddr, Password: c.RedisPassword})
	if err != nil {
		logger.Warn(ctx, "redis is not reachable, serving without cache until it is", "error", err)
	}
	return rc
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.fileService, app.config.SecretKey)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
}

func (app *App) close(ctx context.Context) {
	if err := app.cache.Close(); err != nil {
		app.logger.Warn(ctx, "failed to close cache", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "failed to close database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
