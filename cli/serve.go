package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petalplan/eval"
	"github.com/petal-labs/petalplan/loader"
	petalotel "github.com/petal-labs/petalplan/otel"
	"github.com/petal-labs/petalplan/server"
	"github.com/petal-labs/petalplan/state"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the problem-state HTTP server",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "Listen port")
	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().String("sqlite-path", "", "Path to SQLite database (default: ~/.petalplan/petalplan.db)")
	cmd.Flags().String("problem", "", "Problem file to seed the store with at startup")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")
	cmd.Flags().Duration("watch-poll", 5*time.Second, "Goal watch poll interval")
	cmd.Flags().String("otel-endpoint", "", "OTLP/HTTP collector endpoint (empty disables export)")
	cmd.Flags().Bool("otel-insecure", false, "Disable TLS on the OTLP connection")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	problemPath, _ := cmd.Flags().GetString("problem")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	watchPoll, _ := cmd.Flags().GetDuration("watch-poll")
	otelEndpoint, _ := cmd.Flags().GetString("otel-endpoint")
	otelInsecure, _ := cmd.Flags().GetBool("otel-insecure")

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	dsn, err := resolveSQLiteDSN(cmd)
	if err != nil {
		return err
	}

	telemetry, err := petalotel.Setup(cmd.Context(), petalotel.Config{
		ServiceName: "petalplan",
		Endpoint:    otelEndpoint,
		Insecure:    otelInsecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	backend, err := state.NewSQLiteState(state.SQLiteStateConfig{DSN: dsn})
	if err != nil {
		return fmt.Errorf("opening sqlite state store: %w", err)
	}
	defer func() {
		_ = backend.Close()
	}()

	if problemPath != "" {
		p, err := loader.Load(problemPath)
		if err != nil {
			return fmt.Errorf("loading problem file: %w", err)
		}
		if err := loader.Seed(cmd.Context(), backend, p); err != nil {
			return fmt.Errorf("seeding state from %s: %w", problemPath, err)
		}
		logger.Info("seeded state", "problem", p.Name, "objects", len(p.Objects), "init", len(p.Init))
	}

	metrics, err := eval.NewMetrics(telemetry.Meter)
	if err != nil {
		return fmt.Errorf("initializing evaluation metrics: %w", err)
	}
	evaluator := eval.NewEvaluator(eval.Config{
		Store:   backend,
		Logger:  logger,
		Metrics: metrics,
	})

	srv := server.NewServer(server.ServerConfig{
		Backend:    backend,
		Evaluator:  evaluator,
		Tracer:     telemetry.Tracer,
		CORSOrigin: corsOrigin,
		MaxBody:    maxBody,
		Logger:     logger,
	})

	watcher, err := server.NewGoalWatcher(server.GoalWatcherConfig{
		Store:        srv.Watches(),
		Evaluator:    evaluator,
		PollInterval: watchPoll,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating goal watcher: %w", err)
	}
	watcher.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = watcher.Stop(stopCtx)
	}()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "sqlite", dsn)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// resolveSQLiteDSN picks the database path: the --sqlite-path flag when
// set, otherwise ~/.petalplan/petalplan.db, creating the directory.
func resolveSQLiteDSN(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("sqlite-path")
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".petalplan")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return filepath.Join(dir, "petalplan.db"), nil
}
