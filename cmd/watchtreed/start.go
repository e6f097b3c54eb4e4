package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/watchtree/watchtreed/internal/config"
	"github.com/watchtree/watchtreed/internal/handlers"
	"github.com/watchtree/watchtreed/internal/metrics"
	"github.com/watchtree/watchtreed/internal/opshttp"
	"github.com/watchtree/watchtreed/internal/treewatch"
	"github.com/watchtree/watchtreed/internal/treewatch/kqueue"
)

func newStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the watchtreed daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath)
		},
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warn("failed to set GOMAXPROCS", slog.Any("error", err))
	}

	logger.Info("configuration loaded",
		slog.String("config_path", configPath),
		slog.String("socket_path", cfg.SocketPath),
		slog.String("state_file", cfg.StateFile),
		slog.String("ops_addr", cfg.OpsAddr),
	)

	kw, err := kqueue.New()
	if err != nil {
		return fmt.Errorf("create kernel watch queue: %w", err)
	}

	collectors := metrics.New()

	manager := treewatch.New(kw,
		treewatch.WithLogger(logger),
		treewatch.WithMetrics(collectors),
		treewatch.WithDefaultMaxEvents(cfg.DefaultMaxEvents),
		treewatch.WithStatePath(cfg.StateFile),
		treewatch.WithHousekeepingCadence(cfg.MemcleanEvery, cfg.RewatchSweepEvery),
	)
	if err := manager.Start(); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}

	h := handlers.New(manager, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tickerDone := make(chan struct{})
	go runTicker(ctx, manager, collectors, cfg.TickInterval, tickerDone)

	srv, err := newControlSocket(cfg.SocketPath, h, logger)
	if err != nil {
		return fmt.Errorf("start control socket: %w", err)
	}
	go srv.serve()

	opsServer := &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      opshttp.NewRouter(h),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server listening", slog.String("addr", cfg.OpsAddr))
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server error", slog.Any("error", err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", slog.String("signal", sig.String()))

	cancel()
	<-tickerDone

	if err := srv.close(); err != nil {
		logger.Warn("control socket shutdown error", slog.Any("error", err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown error", slog.Any("error", err))
	}

	if err := manager.Stop(); err != nil {
		logger.Warn("manager stop error", slog.Any("error", err))
	}

	logger.Info("watchtreed exited cleanly")
	return nil
}

// runTicker drives periodic housekeeping at cfg.TickInterval until ctx is
// canceled, then closes done. On every tick it also refreshes the per-root
// queue-depth gauge from Manager.GetQueueSize.
func runTicker(ctx context.Context, manager *treewatch.Manager, collectors *metrics.Collectors, interval time.Duration, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			manager.Tick()
			for _, root := range manager.GetRoots() {
				if n, err := manager.GetQueueSize(root); err == nil {
					collectors.SetQueueDepth(root, n)
				}
			}
		}
	}
}

// newLogger constructs a *slog.Logger that writes JSON-structured log
// records to stderr at the requested minimum level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
