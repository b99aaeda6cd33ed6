// Command airsearch runs the flight search API and a one-shot search CLI.
//
// The base logger is built here from flags and configuration and passed to
// every component; nothing calls slog.SetDefault.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dharmasatrya/airsearch/internal/config"
	"github.com/dharmasatrya/airsearch/internal/handler"
	"github.com/dharmasatrya/airsearch/internal/logging"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "airsearch",
		Short:         "Flight search and aggregation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (default: $AIRSEARCH_CONFIG or ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			loader, cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			return serve(ctx, loader, cfg, logger)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	rootCmd.AddCommand(serveCmd, newSearchCmd(), versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger. Flags win over
// the file.
func setup(cmd *cobra.Command) (*config.Loader, *config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	bootLogger, err := logging.New(os.Stderr, orDefault(level, "info"), orDefault(format, "text"))
	if err != nil {
		return nil, nil, nil, err
	}
	loader := config.NewLoader(path, bootLogger)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(os.Stderr, orDefault(level, cfg.Log.Level), orDefault(format, cfg.Log.Format))
	if err != nil {
		return nil, nil, nil, err
	}
	return loader, cfg, logger, nil
}

func serve(ctx context.Context, loader *config.Loader, cfg *config.Config, logger *slog.Logger) error {
	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	loader.Watch(func(next *config.Config) {
		if err := a.engine.Reload(next.SupplierList()); err != nil {
			logger.Warn("supplier reload incomplete", "error", err)
		}
	})

	e := handler.NewServer(handler.NewSearchHandler(a.engine, cfg.Server.RetryAfter, logger), a.gatherer, logger)

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting airsearch server", "addr", addr, "version", version)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
