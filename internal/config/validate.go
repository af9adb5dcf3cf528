package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/jmerrifield20/filechain/internal/ledger"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func Validate(cfg Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Server.Port)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return ErrInvalidUploadLimit
	}

	switch cfg.Ledger.Backend {
	case BackendMemory:
	case BackendFile, BackendBolt:
		if cfg.Ledger.Path == "" {
			return fmt.Errorf("%w: ledger.path", ErrMissingValue)
		}
	case BackendPostgres:
		if cfg.Database.URL == "" {
			return fmt.Errorf("%w: database.url", ErrMissingValue)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLedgerBackend, cfg.Ledger.Backend)
	}

	if _, err := ledger.NewDigester(cfg.Ledger.Scheme, cfg.Ledger.Hash); err != nil {
		return err
	}

	switch cfg.Store.Backend {
	case StoreObject:
		if cfg.Store.BaseURL == "" {
			return fmt.Errorf("%w: store.base_url", ErrMissingValue)
		}
	case StoreIPFS:
		if cfg.Store.IPFS.APIURL == "" {
			return fmt.Errorf("%w: store.ipfs.api_url", ErrMissingValue)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStoreBackend, cfg.Store.Backend)
	}

	if cfg.Store.CacheTTL < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCacheTTL, cfg.Store.CacheTTL)
	}

	if cfg.Health.CheckInterval < time.Second {
		return fmt.Errorf("%w: %s", ErrInvalidCheckInterval, cfg.Health.CheckInterval)
	}

	for i, sub := range cfg.Webhooks {
		u, err := url.Parse(sub.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: webhooks[%d].url %q", ErrInvalidWebhook, i, sub.URL)
		}
	}

	if !validLogLevels[cfg.LogLevel] {
		return ErrInvalidLogLevel
	}
	return nil
}
