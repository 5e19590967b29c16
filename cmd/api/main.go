package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"triageflow/config"
	"triageflow/connections"
	"triageflow/db"
	"triageflow/intake"
	"triageflow/lifecycle"
	"triageflow/queue"
	"triageflow/runtime"
	"triageflow/worklog"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	worklogRepo := worklog.NewRepository(pool)

	queueRepo := queue.NewRepository(pool)
	queueSvc := queue.NewService(pool, queueRepo, worklogRepo, worklogRepo)
	lifecycleSvc := lifecycle.NewService(pool, lifecycle.NewRepository(pool), worklogRepo, worklogRepo)

	if cfg.TokenEncryptionKey != "" {
		keychain, err := connections.NewKeychain(cfg.TokenEncryptionKey, cfg.TokenEncryptionKeysPrevious...)
		if err != nil {
			return err
		}
		connSvc := connections.NewService(pool, connections.NewPGRepository(pool), worklogRepo, keychain)
		status, err := connSvc.Status(ctx)
		if err != nil {
			return err
		}
		logger.Info("google connection", "connected", status.Connected)
	} else {
		logger.Info("token encryption key not set, provider connections disabled")
	}

	sources := []intake.Source{intake.NewMockSource()}
	ingestor := intake.NewIngestor(sources, queueSvc, logger)

	handler := runtime.NewHandler(lifecycleSvc, ingestor)
	server := runtime.NewServer(handler, cfg.RuntimeToken, []byte(cfg.RuntimeSecret), logger).
		WithQueueReader(queueRepo)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Routes(),
	}

	retention, err := worklog.NewRetentionPolicy(cfg.RetentionDays)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		ticker := time.NewTicker(cfg.RetentionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				pruned, err := worklogRepo.PruneBefore(groupCtx, retention.Cutoff(time.Now().UTC()))
				if err != nil {
					logger.Error("retention prune failed", "error", err)
					continue
				}
				logger.Info("retention prune completed", "runsPruned", pruned, "retentionDays", cfg.RetentionDays)
			}
		}
	})

	return group.Wait()
}
