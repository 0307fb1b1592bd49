package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"auth-core/internal/app"
	"auth-core/internal/config"
	"auth-core/internal/observability"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{LoadDotEnv: loadDotEnv})
		if err != nil {
			return err
		}
		if servePort != "" {
			cfg.Port = servePort
		}

		logger := observability.NewLoggerWithOutput(os.Stdout, cfg.LogLevel)

		runtime, err := app.Build(app.Options{Config: &cfg, Logger: logger})
		if err != nil {
			logger.Error("bootstrap_failed", map[string]any{"error": err.Error()})
			return err
		}
		defer runtime.Close()

		server := &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Port),
			Handler:           runtime.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("server_start", map[string]any{
			"addr":  server.Addr,
			"store": cfg.Store.Driver,
		})

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("server_shutdown", map[string]any{"signal": sig.String()})
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			if err != nil {
				logger.Error("server_failed", map[string]any{"error": err.Error()})
			}
			return err
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (overrides PORT)")
}
