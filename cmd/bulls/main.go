package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"gofalre.io/bulls"
	"gofalre.io/bulls/access"
	"gofalre.io/bulls/api"
	"gofalre.io/bulls/audit"
	"gofalre.io/bulls/cart"
	"gofalre.io/bulls/config"
	"gofalre.io/bulls/docstore"
	"gofalre.io/bulls/driver"
	"gofalre.io/bulls/metrics"
	"gofalre.io/bulls/order"
	"gofalre.io/bulls/product"
)

const (
	cacheTTL          = 30 * time.Minute
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	cmd := &cli.Command{
		Name:  "bulls",
		Usage: "e-bike storefront and back-office console",
		Flags: config.Flags(),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create the document store schema in Postgres",
				Action: migrate,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.FromCommand(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Dev)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", zap.Error(err))
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewHandler(a.svc, a.metrics, logger),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err = <-errCh:
		logger.Error("Failed to serve HTTP", zap.Error(err))
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.FromCommand(cmd)
	if err != nil {
		return err
	}
	if cfg.PostgresDSN == "" {
		return errors.New("migrate needs --postgres-dsn")
	}
	logger, err := newLogger(cfg.Dev)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := driver.ConnectSQL(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := docstore.NewPostgres(pool, driver.NewTransactionManager(pool, logger), logger)
	if err = store.EnsureSchema(ctx); err != nil {
		return err
	}
	logger.Info("Document store schema is up to date")
	return nil
}

// app holds the wired service and whatever has to be released on exit.
type app struct {
	svc     bulls.Service
	metrics *metrics.Registry
	closers []func()
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{metrics: metrics.NewRegistry()}
	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	store, err := openDocstore(ctx, a, cfg, logger)
	if err != nil {
		return nil, err
	}

	var cache driver.Cache = driver.NopCache{}
	var redisCarts cart.Backend
	if cfg.RedisAddr != "" {
		client, err := driver.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = client.Close() })
		cache = driver.NewRedisCache(client, cacheTTL)
		redisCarts = cart.NewRedisBackend(client, 0)
	}

	var backend cart.Backend
	switch cfg.CartBackend {
	case config.CartBackendRedis:
		backend = redisCarts
	case config.CartBackendPebble:
		db, err := driver.OpenPebble(cfg.PebbleDir)
		if err != nil {
			return nil, err
		}
		a.onClose(func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close cart store", zap.Error(err))
			}
		})
		backend = cart.NewPebbleBackend(db)
	default:
		backend = cart.NewMemoryBackend()
	}

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = driver.ConnectNATS(cfg.NATSURL, "bulls", logger)
		if err != nil {
			return nil, err
		}
		a.onClose(nc.Close)
	}

	auditors := []audit.Writer{audit.NewLogWriter(logger)}
	if cfg.KafkaBrokers != "" {
		kw := audit.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.onClose(func() {
			if err := kw.Close(); err != nil {
				logger.Error("Failed to close change log writer", zap.Error(err))
			}
		})
		auditors = append(auditors, kw)
	}

	a.svc = bulls.NewService(
		product.NewRepository(store, cache, logger),
		order.NewRepository(store, cache, logger),
		access.NewRepository(store, logger),
		backend,
		audit.NewMultiWriter(auditors...),
		nc, cfg.AdminEmail, a.metrics, logger)
	a.onClose(a.svc.Close)

	// 預先載入商品表，失敗時由後台手動重新載入
	if err := a.svc.ProductsTable().Load(ctx); err != nil {
		logger.Warn("Failed to preload products table", zap.Error(err))
	}

	logger.Info("Storefront ready",
		zap.String("cart_backend", cfg.CartBackend),
		zap.Bool("postgres", cfg.PostgresDSN != ""),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.Bool("nats", nc != nil),
		zap.Bool("kafka", cfg.KafkaBrokers != ""))
	ready = true
	return a, nil
}

func openDocstore(ctx context.Context, a *app, cfg *config.Config, logger *zap.Logger) (docstore.Store, error) {
	if cfg.PostgresDSN == "" {
		logger.Warn("No Postgres DSN configured, documents are kept in memory")
		return docstore.NewMemory(), nil
	}
	pool, err := driver.ConnectSQL(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	a.onClose(pool.Close)

	store := docstore.NewPostgres(pool, driver.NewTransactionManager(pool, logger), logger)
	if err = store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
