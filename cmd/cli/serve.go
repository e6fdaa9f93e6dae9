package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/limaJavier/timetable-engine/pkg/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			engine, err := a.newGenerator()
			if err != nil {
				return err
			}
			server := api.NewServer(
				api.WithGenerator(engine),
				api.WithDefaults(cfg.Generator),
				api.WithTimeout(cfg.Server.Timeout),
				api.WithSuggestionLimit(cfg.Engine.SuggestionCap),
				api.WithLogger(a.logger),
			)
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           api.NewRouter(server, cfg.Server.Mode, cfg.Server.MaxBodyBytes),
				ReadHeaderTimeout: 15 * time.Second,
				// Generation runs up to the configured timeout before it answers
				WriteTimeout: cfg.Server.Timeout + 15*time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			failed := make(chan error, 1)
			go func() {
				a.logger.Info("http server started", zap.String("addr", srv.Addr), zap.String("mode", cfg.Server.Mode))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					failed <- err
				}
				close(failed)
			}()

			select {
			case err := <-failed:
				if err != nil {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http server shutdown: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "overrides server.port from the config")
	return cmd
}
