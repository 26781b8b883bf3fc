package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cmlabs-hris/attendance-tracker/internal/config"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/idle"
	"github.com/cmlabs-hris/attendance-tracker/internal/domain/offline"
	appHTTP "github.com/cmlabs-hris/attendance-tracker/internal/handler/http"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/apiclient"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/network"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-tracker/internal/repository/sqlite"
	idleService "github.com/cmlabs-hris/attendance-tracker/internal/service/idle"
	offlineService "github.com/cmlabs-hris/attendance-tracker/internal/service/offline"
	trackerService "github.com/cmlabs-hris/attendance-tracker/internal/service/tracker"
)

const version = "v1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "attendance-agent",
		Short:        "Per-employee attendance agent with offline queueing",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newQueueCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent and its local api",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func newQueueCmd() *cobra.Command {
	queue := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or flush the offline queue",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print queued actions as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSync(cmd.Context(), func(ctx context.Context, syncService offline.SyncService) error {
				items, err := syncService.Items(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, items)
			})
		},
	}

	var failedOnly bool
	retry := &cobra.Command{
		Use:   "retry",
		Short: "Deliver queued actions now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSync(cmd.Context(), func(ctx context.Context, syncService offline.SyncService) error {
				var progress offline.Progress
				var err error
				if failedOnly {
					progress, err = syncService.RetryFailedItems(ctx)
				} else {
					progress, err = syncService.ForceSyncNow(ctx)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, progress)
			})
		},
	}
	retry.Flags().BoolVar(&failedOnly, "failed", false, "only retry items that failed before")

	drop := &cobra.Command{
		Use:   "drop <id>",
		Short: "Abandon a queued action the api keeps rejecting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSync(cmd.Context(), func(ctx context.Context, syncService offline.SyncService) error {
				if err := syncService.Discard(ctx, args[0]); err != nil {
					return err
				}
				return printJSON(cmd, syncService.Progress())
			})
		},
	}

	queue.AddCommand(list, retry, drop)
	return queue
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withSync opens the queue and a sync service for one-shot commands.
func withSync(ctx context.Context, fn func(ctx context.Context, syncService offline.SyncService) error) error {
	cfg, err := config.LoadAgent()
	if err != nil {
		return err
	}

	queueRepo, err := sqlite.Open(ctx, cfg.Queue.Path)
	if err != nil {
		return err
	}
	defer queueRepo.Close()

	client := apiclient.New(apiclient.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	})
	syncService := offlineService.NewSyncService(queueRepo, client, offlineService.Options{
		BaseBackoff: cfg.Queue.BaseBackoff,
		MaxBackoff:  cfg.Queue.MaxBackoff,
	})
	return fn(ctx, syncService)
}

func run(parent context.Context) error {
	cfg, err := config.LoadAgent()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.SlogLevel()})))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	queueRepo, err := sqlite.Open(ctx, cfg.Queue.Path)
	if err != nil {
		return err
	}
	defer queueRepo.Close()

	client := apiclient.New(apiclient.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	})

	syncService := offlineService.NewSyncService(queueRepo, client, offlineService.Options{
		BaseBackoff:   cfg.Queue.BaseBackoff,
		MaxBackoff:    cfg.Queue.MaxBackoff,
		RetryInterval: cfg.Queue.RetryInterval,
	})

	monitor := network.NewMonitor(network.Config{
		HealthURL: cfg.HealthURL(),
		Interval:  cfg.Network.Interval,
		Timeout:   cfg.Network.Timeout,
	})

	idleSettings := idle.Settings{
		IdleThresholdMinutes: cfg.Idle.ThresholdMinutes,
		ShowIdleWarning:      cfg.Idle.ShowWarning,
		WarningTimeMinutes:   cfg.Idle.WarningMinutes,
		AutoResumeOnActivity: cfg.Idle.AutoResumeOnActivity,
		PauseTimerOnIdle:     cfg.Idle.PauseTimerOnIdle,
		SampleInterval:       cfg.Idle.SampleInterval,
	}
	if err := idleSettings.Validate(); err != nil {
		return fmt.Errorf("invalid idle settings: %w", err)
	}
	idleManager := idleService.NewManager(idleSettings, nil)

	trackerSvc := trackerService.NewTrackerService(client, syncService, monitor, idleManager, nil, trackerService.Options{
		EmployeeID:      cfg.EmployeeID,
		LocationTimeout: cfg.LocationTimeout,
	})

	hub := sse.NewHub(32)
	unsubscribe := appHTTP.ForwardEvents(trackerSvc, hub, cfg.EmployeeID)
	defer unsubscribe()

	trackerHandler := appHTTP.NewTrackerHandler(trackerSvc, hub, cfg.EmployeeID)
	router := appHTTP.NewAgentRouter(trackerHandler, appHTTP.RouterOptions{
		App:            "attendance-agent",
		Version:        version,
		Env:            cfg.App.Env,
		AllowedOrigins: cfg.App.AllowedOrigins,
		LogLevel:       cfg.App.SlogLevel(),
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return trackerSvc.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("Agent listening", "addr", server.Addr, "employee_id", cfg.EmployeeID)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("agent server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down agent...")

		// Streams only end once the hub closes their channels
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
