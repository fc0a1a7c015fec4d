package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"velora/config"
)

const (
	Version = "v0.1.0"
	License = "Apache-2.0"

	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "velora",
		Short:        "Chat with agents that read your workspace through MCP tools",
		Version:      Version,
		SilenceUsage: true,
	}
	root.AddCommand(toolsCmd(), gatewayCmd(), chatCmd())
	return root
}

// loadConfig loads settings and starts debug logging. Nothing is written
// to stdout, which the stdio tool server owns.
func loadConfig() (*config.Config, error) {
	if config.HasAnyEnvVar() && !config.HasAllEnvVars() && !config.SystemConfigExists() {
		fmt.Fprintf(os.Stderr, "Note: %s is not set; using config files for the rest\n", config.GetMissingEnvVar())
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.InitDebugLog(cfg.DataDir())
	return cfg, nil
}

// serveHTTP runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[HTTP] listening on %s", addr)
	}
	fmt.Fprintf(os.Stderr, "listening on %s\n", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return <-errCh
}
