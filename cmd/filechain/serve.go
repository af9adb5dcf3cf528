package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/filechain/internal/api/handler"
	"github.com/jmerrifield20/filechain/internal/config"
	"github.com/jmerrifield20/filechain/internal/contentstore"
	"github.com/jmerrifield20/filechain/internal/health"
	"github.com/jmerrifield20/filechain/internal/upload"
	"github.com/jmerrifield20/filechain/internal/webhooks"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the filechain HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		for key, flag := range map[string]string{
			"server.port":           "port",
			"ledger.backend":        "ledger-backend",
			"store.backend":         "store-backend",
			"health.check_interval": "check-interval",
		} {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return err
			}
		}

		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if err := serve(cfg, logger); err != nil {
			logger.Error("server exited with error", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 5000, "HTTP port")
	serveCmd.Flags().String("ledger-backend", config.BackendMemory, "ledger backend: memory, file, bolt or postgres")
	serveCmd.Flags().String("store-backend", config.StoreObject, "content store backend: object or ipfs")
	serveCmd.Flags().Duration("check-interval", 5*time.Minute, "background integrity check interval")
}

func serve(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Ledger ───────────────────────────────────────────────────────────────
	lb, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer lb.close()

	if ok, err := lb.ledger.Verify(ctx); err != nil || !ok {
		logger.Warn("ledger integrity check FAILED", zap.Error(err))
	} else {
		n, _ := lb.ledger.Len(ctx)
		root, _ := lb.ledger.Root(ctx)
		handler.SetLedgerLength(n)
		logger.Info("ledger verified",
			zap.Int("entries", n),
			zap.String("root", root),
		)
	}

	// ── Content store ────────────────────────────────────────────────────────
	sb, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open content store: %w", err)
	}
	store := contentstore.Instrument(sb.store, handler.RecordStoreOp)

	// ── Webhooks ─────────────────────────────────────────────────────────────
	hooks := webhooks.NewService(cfg.Webhooks, logger)
	hooks.SetMetricsRecorder(handler.RecordWebhookDelivery)
	if len(cfg.Webhooks) > 0 {
		logger.Info("webhooks configured", zap.Int("subscriptions", len(cfg.Webhooks)))
	}

	// ── Wire up layers ───────────────────────────────────────────────────────
	svc := upload.NewService(store, lb.ledger, cfg.Upload, logger)
	svc.SetEventDispatch(hooks.Dispatch)
	svc.SetMetricsRecord(func(result string) {
		handler.RecordUpload(result)
		if result == "success" {
			n, _ := lb.ledger.Len(ctx)
			handler.SetLedgerLength(n)
		}
	})

	checker := health.New(lb.ledger, store, cfg.Health, logger)
	checker.SetMetricsRecord(handler.RecordHealthCheck)
	checker.SetDegradedCallback(func(ctx context.Context, check string, r health.Report) {
		hooks.Dispatch(ctx, webhooks.EventHealthDegraded, map[string]string{
			"check":   check,
			"ledger":  r.Ledger,
			"store":   r.Store,
			"entries": strconv.Itoa(r.Entries),
			"root":    r.Root,
		})
	})
	checkerDone := make(chan struct{})
	go func() {
		defer close(checkerDone)
		checker.Start(ctx)
	}()
	// The checker must return before webhooks drain.
	defer func() {
		stop()
		<-checkerDone
		hooks.Close()
	}()

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(ctx, handler.RouterConfig{
		Service:     svc,
		Gateway:     sb.gateway,
		Health:      checker,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimitRPS,
		Logger:      logger,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("filechain HTTP listening", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP listen: %w", err)
	}
	logger.Info("shutting down filechain...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("filechain stopped")
	return nil
}
