package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/config"
	appHTTP "github.com/cmlabs-hris/attendance-tracker/internal/handler/http"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-tracker/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-tracker/internal/service/attendance"
	"github.com/spf13/cobra"
)

const version = "v1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "attendance-api",
		Short:         "Attendance tracking api server",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(newTokenCmd())
	return root
}

func newTokenCmd() *cobra.Command {
	var employeeID string
	var admin bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an employee agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			expiration, err := time.ParseDuration(cfg.JWT.AccessExpiration)
			if err != nil {
				return err
			}

			role := jwt.RoleEmployee
			if admin {
				role = jwt.RoleAdmin
			}
			token, expiresAt, err := jwt.NewJWTService(cfg.JWT.Secret, expiration).GenerateAccessToken(employeeID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", time.Unix(expiresAt, 0).Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&employeeID, "employee", "", "employee id the token acts for")
	cmd.Flags().BoolVar(&admin, "admin", false, "issue an admin token")
	_ = cmd.MarkFlagRequired("employee")
	return cmd
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.SlogLevel()})))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer db.Close()

	if err := postgresql.Migrate(ctx, db); err != nil {
		return err
	}

	transactor := postgresql.NewTransactor(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	breakRepo := postgresql.NewBreakRepository(db)
	idleRepo := postgresql.NewIdleRepository(db)
	settingsRepo := postgresql.NewSettingsRepository(db)

	accessExpiration, err := time.ParseDuration(cfg.JWT.AccessExpiration)
	if err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}
	JWTService := jwt.NewJWTService(cfg.JWT.Secret, accessExpiration)

	attendanceSvc := attendanceService.NewAttendanceService(
		transactor,
		attendanceRepo,
		breakRepo,
		idleRepo,
		settingsRepo,
		attendanceService.Options{
			HalfDayFraction: cfg.Attendance.HalfDayFraction,
			MaxClockSkew:    cfg.Attendance.MaxClockSkew,
		},
	)

	if cfg.Cron.Enabled {
		scheduler := cron.NewScheduler()
		cron.NewAttendanceJobs(attendanceSvc, cfg.Cron.AutoPunchOutInterval, cfg.Cron.MarkAbsentInterval).RegisterJobs(scheduler)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	attendanceHandler := appHTTP.NewAttendanceHandler(attendanceSvc)

	router := appHTTP.NewRouter(JWTService, attendanceHandler, db.Ping, appHTTP.RouterOptions{
		App:            "attendance-api",
		Version:        version,
		Env:            cfg.App.Env,
		AllowedOrigins: cfg.App.AllowedOrigins,
		LogLevel:       cfg.App.SlogLevel(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
