package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"auth-service/internal/app"
	"auth-service/internal/db"
	"auth-service/internal/observability"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

// run executes the CLI and returns the process exit code. Cobra's own error
// printing is silenced, so failures are reported here.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "auth-service: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var skipMigrations bool

	root := &cobra.Command{
		Use:           "auth-service",
		Short:         "Signup, signin and signout API with cookie-delivered JWTs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), !skipMigrations)
		},
	}
	root.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on startup")

	root.AddCommand(newMigrateCommand())
	return root
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := app.LoadConfig()
			if err != nil {
				logger.Error("load_config_failed", map[string]any{"error": err.Error()})
				return err
			}

			database, err := app.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				logger.Error("open_database_failed", map[string]any{"error": err.Error()})
				return err
			}
			defer database.Close()

			applied, err := db.RunMigrations(cmd.Context(), database)
			if err != nil {
				logger.Error("migrations_failed", map[string]any{"error": err.Error(), "applied": applied})
				return err
			}

			logger.Info("migrations_applied", map[string]any{"versions": applied})
			return nil
		},
	}
}

func serve(ctx context.Context, runMigrations bool) error {
	rt, err := app.Build(app.Options{
		LoadDotEnv:    true,
		RunMigrations: runMigrations,
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer rt.Close()

	logger := rt.Logger
	addr := fmt.Sprintf(":%s", rt.Config.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           rt.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server_start", map[string]any{"addr": addr, "env": rt.Config.AppEnv})
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_failed", map[string]any{"error": err.Error()})
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("server_shutdown", nil)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", map[string]any{"error": err.Error()})
		return err
	}

	return nil
}
