package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leofalp/streamgate/core/gateway"
	"github.com/leofalp/streamgate/core/gateway/middleware"
	"github.com/leofalp/streamgate/providers/ai"
)

type chatFlags struct {
	model     string
	provider  string
	system    string
	thinking  bool
	maxTokens int
	verbose   bool
}

func newChatCmd() *cobra.Command {
	flags := &chatFlags{}

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Stream one prompt through the gateway to the terminal",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read prompt: %w", err)
				}
				prompt = strings.TrimSpace(string(data))
			}
			if prompt == "" {
				return errors.New("empty prompt")
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			var extra []gateway.StreamMiddleware
			if flags.verbose {
				logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
				extra = append(extra, middleware.NewLoggingMiddleware(logger, middleware.LogLevelVerbose))
			} else {
				cfg.Log.Level = "error"
			}
			_, relay := newRelay(cfg, newObserver(cfg, os.Stderr), extra...)

			request := ai.ChatRequest{
				Messages:  []ai.Message{ai.TextMessage(ai.RoleUser, prompt)},
				Model:     flags.model,
				Provider:  flags.provider,
				System:    flags.system,
				Thinking:  flags.thinking,
				MaxTokens: flags.maxTokens,
			}

			channel := newTerminalChannel(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err := relay.Stream(cmd.Context(), request, channel); err != nil {
				return err
			}
			return channel.Err()
		},
	}

	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "Model name; selects the provider by prefix")
	cmd.Flags().StringVarP(&flags.provider, "provider", "p", "", "Explicit provider id")
	cmd.Flags().StringVarP(&flags.system, "system", "s", "", "System prompt")
	cmd.Flags().BoolVar(&flags.thinking, "thinking", false, "Request reasoning output")
	cmd.Flags().IntVar(&flags.maxTokens, "max-tokens", 0, "Output token limit")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log the request and answer, and keep gateway logs at the configured level")
	return cmd
}
