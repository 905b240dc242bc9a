package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leofalp/streamgate/core/gateway"
	"github.com/leofalp/streamgate/providers/observability"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			observer := newObserver(cfg, os.Stderr)
			registry, relay := newRelay(cfg, observer)

			handler := gateway.NewHandler(relay, registry,
				gateway.WithHandlerObserver(observer),
				gateway.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
				gateway.WithCompletionHook(func(ctx context.Context, requestID, text string) {
					observer.Debug(ctx, "response text assembled",
						observability.String(observability.AttrRequestID, requestID),
						observability.Int("response.text_length", len(text)),
					)
				}),
			)

			server := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serveErr := make(chan error, 1)
			go func() {
				observer.Info(ctx, "gateway listening",
					observability.String("server.addr", cfg.Server.Addr),
					observability.String("gateway.default_provider", cfg.DefaultProvider),
				)
				serveErr <- server.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serve: %w", err)
			case <-ctx.Done():
			}

			observer.Info(context.Background(), "shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
