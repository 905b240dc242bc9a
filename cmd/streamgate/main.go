// Command streamgate runs the streaming LLM gateway and offers a terminal
// client for it.
package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leofalp/streamgate/core/gateway"
	"github.com/leofalp/streamgate/core/gateway/middleware"
	"github.com/leofalp/streamgate/internal/config"
	"github.com/leofalp/streamgate/providers/observability/slogobs"
)

var rootCmd = &cobra.Command{
	Use:          "streamgate",
	Short:        "streamgate - one streaming chat API in front of several LLM providers",
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.AddCommand(newServeCmd(), newProvidersCmd(), newChatCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newObserver builds the process-wide observer from the log settings.
func newObserver(cfg *config.Config, output io.Writer) *slogobs.Observer {
	return slogobs.New(
		slogobs.WithFormat(slogobs.ParseFormat(cfg.Log.Format)),
		slogobs.WithLevel(slogobs.ParseLevel(cfg.Log.Level)),
		slogobs.WithOutput(output),
	)
}

// newRelay wires the registry and relay from cfg. The stream timeout from cfg
// is always the outermost of the given middlewares.
func newRelay(cfg *config.Config, observer *slogobs.Observer, extra ...gateway.StreamMiddleware) (*gateway.Registry, *gateway.Relay) {
	registry := gateway.NewRegistryFromConfig(cfg)

	middlewares := append([]gateway.StreamMiddleware{middleware.NewTimeoutMiddleware(cfg.Server.StreamTimeout)}, extra...)
	options := []gateway.RelayOption{gateway.WithMiddleware(middlewares...)}
	if observer != nil {
		options = append(options, gateway.WithObserver(observer))
	}
	return registry, gateway.NewRelay(registry, options...)
}
