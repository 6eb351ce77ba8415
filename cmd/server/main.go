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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hongminglow/console-bank/internal/config"
	"github.com/hongminglow/console-bank/internal/ledger"
	"github.com/hongminglow/console-bank/internal/logger"
	"github.com/hongminglow/console-bank/internal/server"
	"github.com/hongminglow/console-bank/internal/storage"
	filestore "github.com/hongminglow/console-bank/internal/storage/file"
	gcsstore "github.com/hongminglow/console-bank/internal/storage/gcs"
	postgres "github.com/hongminglow/console-bank/internal/storage/postgres"
	redisstore "github.com/hongminglow/console-bank/internal/storage/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "console bank: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.Info().Msg("no .env file found; relying on existing environment")
	}

	ctx := context.Background()
	dir, closeGateway, err := openLedger(ctx, cfg, log, openGateway)
	if err != nil {
		return err
	}
	defer closeGateway()

	srv := server.New(cfg, dir, log)
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddress()).Str("driver", cfg.StorageDriver).Msg("console bank listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-sigCh:
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

type gatewayOpener func(ctx context.Context, cfg config.Config) (storage.Gateway, func(), error)

// openLedger opens the configured gateway and hydrates a directory from it. On failure the
// gateway is already closed; on success the caller owns the returned close func.
func openLedger(ctx context.Context, cfg config.Config, log zerolog.Logger, open gatewayOpener) (*ledger.Directory, func(), error) {
	gateway, closeGateway, err := open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init %s storage: %w", cfg.StorageDriver, err)
	}
	dir := ledger.NewDirectory(gateway, directoryOptions(cfg, log)...)
	if err := dir.Hydrate(ctx); err != nil {
		closeGateway()
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	return dir, closeGateway, nil
}

func openGateway(ctx context.Context, cfg config.Config) (storage.Gateway, func(), error) {
	noop := func() {}
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return storage.NewMemoryGateway(), noop, nil
	case config.DriverPostgres:
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.DriverRedis:
		store, err := redisstore.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "console-bank:")
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.DriverGCS:
		store, err := gcsstore.NewStore(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCSEndpoint)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := filestore.NewStore(cfg.SnapshotDir)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	}
}

func directoryOptions(cfg config.Config, log zerolog.Logger) []ledger.Option {
	var verifier ledger.CredentialVerifier = ledger.PlainVerifier{}
	if cfg.CredentialScheme == config.SchemeBcrypt {
		verifier = ledger.BcryptVerifier{}
	}
	staff := make([]ledger.StaffCredential, 0, len(cfg.Staff))
	for _, s := range cfg.Staff {
		staff = append(staff, ledger.StaffCredential{Username: s.Username, Password: s.Password})
	}
	return []ledger.Option{
		ledger.WithVerifier(verifier),
		ledger.WithStaff(staff...),
		ledger.WithSnapshotKey(cfg.SnapshotKey),
		ledger.WithLogger(log.With().Str("component", "ledger").Logger()),
	}
}
