package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/filechain/internal/config"
	"github.com/jmerrifield20/filechain/internal/contentstore"
	"github.com/jmerrifield20/filechain/internal/ledger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	// Register the s3:// and gs:// afs schemes for the object store.
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"
)

// newLogger builds a production logger at level; "debug" switches to the
// development encoder.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// ledgerBackend is an opened ledger plus whatever must be closed on shutdown.
type ledgerBackend struct {
	ledger *ledger.MemoryLedger
	close  func()
}

// openLedger builds the MemoryLedger with the configured persister and loads
// the persisted chain. A rejected chain has already been archived by Load and
// is only logged; a persister that cannot be read is a startup failure.
func openLedger(ctx context.Context, cfg config.Config, logger *zap.Logger) (*ledgerBackend, error) {
	digester, err := ledger.NewDigester(cfg.Ledger.Scheme, cfg.Ledger.Hash)
	if err != nil {
		return nil, err
	}

	opts := []ledger.Option{ledger.WithDigester(digester), ledger.WithLogger(logger)}
	closeFn := func() {}

	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		logger.Warn("ledger backend: memory (entries are lost on restart)")

	case config.BackendFile:
		p, err := ledger.NewJSONFileStore(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ledger.WithPersister(p))
		logger.Info("ledger backend: json file", zap.String("path", p.Path()))

	case config.BackendBolt:
		p, err := ledger.OpenBoltStore(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ledger.WithPersister(p))
		closeFn = func() { _ = p.Close() }
		logger.Info("ledger backend: bolt", zap.String("path", cfg.Ledger.Path))

	case config.BackendPostgres:
		db, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
		opts = append(opts, ledger.WithPersister(ledger.NewPostgresStore(db, logger)))
		closeFn = db.Close

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidLedgerBackend, cfg.Ledger.Backend)
	}

	l := ledger.New(opts...)
	if err := l.Load(ctx); err != nil {
		if errors.Is(err, ledger.ErrPersistence) {
			closeFn()
			return nil, fmt.Errorf("load ledger: %w", err)
		}
		logger.Error("persisted ledger rejected and archived", zap.Error(err))
	}
	return &ledgerBackend{ledger: l, close: closeFn}, nil
}

// storeBackend is an opened content store plus its optional public gateway.
type storeBackend struct {
	store   contentstore.Store
	gateway func(cid string) string
}

// openStore builds the configured content store, wrapped in a read cache
// when a TTL is set.
func openStore(cfg config.Config, logger *zap.Logger) (*storeBackend, error) {
	var b storeBackend

	switch cfg.Store.Backend {
	case config.StoreObject:
		s, err := contentstore.NewObjectStore(cfg.Store.BaseURL, logger)
		if err != nil {
			return nil, err
		}
		b.store = s
		logger.Info("content store: object", zap.String("base_url", cfg.Store.BaseURL))

	case config.StoreIPFS:
		ipfsCfg := cfg.Store.IPFS
		ipfsCfg.MaxBytes = cfg.Upload.MaxBytes
		s := contentstore.NewIPFSStore(ipfsCfg, logger)
		if ipfsCfg.APIKey == "" {
			logger.Warn("content store: ipfs without api key; uploads will be rejected")
		}
		b.store = s
		b.gateway = s.GatewayURL
		logger.Info("content store: ipfs", zap.String("api_url", ipfsCfg.APIURL))

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStoreBackend, cfg.Store.Backend)
	}

	if cfg.Store.CacheTTL > 0 {
		b.store = contentstore.NewCachedStore(b.store, cfg.Store.CacheTTL, 4*cfg.Upload.MaxBytes)
	}
	return &b, nil
}
