package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/leofalp/streamgate/core/gateway"
	"github.com/leofalp/streamgate/internal/utils"
	"github.com/leofalp/streamgate/providers/ai"
)

// LogLevel controls how much detail the logging middleware writes.
type LogLevel int

const (
	// LogLevelMinimal logs the provider, model, duration and token counts.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds message and tool counts and the stop reason.
	LogLevelStandard

	// LogLevelVerbose adds the last user prompt and the answer text, each
	// truncated. It writes raw conversation content and is meant for local
	// debugging only.
	LogLevelVerbose
)

// truncateLen bounds the content included in verbose entries.
const truncateLen = 500

// NewLoggingMiddleware writes one entry when a stream opens and one when it
// completes, fails or is abandoned. logger must not be nil.
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) gateway.StreamMiddleware {
	return func(next gateway.StreamFunc) gateway.StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			logger.InfoContext(ctx, "stream opening", requestAttrs(request, level)...)

			start := time.Now()
			stream, err := next(ctx, request)
			if err != nil {
				logger.ErrorContext(ctx, "stream failed to open",
					slog.String("provider", request.Provider),
					slog.String("model", request.Model),
					slog.Duration("duration", time.Since(start)),
					slog.String("error", err.Error()),
				)
				return nil, err
			}
			return wrapStreamWithLogging(ctx, stream, logger, request, level, start), nil
		}
	}
}

func wrapStreamWithLogging(
	ctx context.Context,
	stream *ai.ChatStream,
	logger *slog.Logger,
	request ai.ChatRequest,
	level LogLevel,
	start time.Time,
) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		var text []byte
		events := 0

		for event, err := range stream.Iter() {
			if err != nil {
				logger.ErrorContext(ctx, "stream interrupted",
					slog.String("provider", request.Provider),
					slog.String("model", request.Model),
					slog.Int("events", events),
					slog.Duration("duration", time.Since(start)),
					slog.String("error", err.Error()),
				)
				yield(event, err)
				return
			}
			events++

			if level >= LogLevelVerbose && event.Type == ai.EventTextDelta {
				text = append(text, event.Text...)
			}

			if event.Type == ai.EventDone {
				attrs := []any{
					slog.String("provider", request.Provider),
					slog.String("model", event.Model),
					slog.Duration("duration", time.Since(start)),
					slog.Int("input_tokens", event.Usage.InputTokens),
					slog.Int("output_tokens", event.Usage.OutputTokens),
				}
				if level >= LogLevelStandard {
					attrs = append(attrs,
						slog.String("stop_reason", string(event.StopReason)),
						slog.Int("events", events),
					)
				}
				if level >= LogLevelVerbose {
					attrs = append(attrs, slog.String("response_text", utils.TruncateString(string(text), truncateLen)))
				}
				logger.InfoContext(ctx, "stream completed", attrs...)
			}

			if !yield(event, nil) {
				logger.InfoContext(ctx, "stream abandoned",
					slog.String("provider", request.Provider),
					slog.String("model", request.Model),
					slog.Int("events", events),
					slog.Duration("duration", time.Since(start)),
				)
				return
			}
		}
	})
}

// requestAttrs describes an outgoing request at the given verbosity.
func requestAttrs(request ai.ChatRequest, level LogLevel) []any {
	attrs := []any{
		slog.String("provider", request.Provider),
		slog.String("model", request.Model),
	}

	if level >= LogLevelStandard {
		attrs = append(attrs,
			slog.Int("message_count", len(request.Messages)),
			slog.Int("tool_count", len(request.Tools)),
			slog.Bool("thinking", request.Thinking),
		)
	}

	if level >= LogLevelVerbose {
		attrs = append(attrs, slog.String("prompt", utils.TruncateString(lastUserText(request.Messages), truncateLen)))
	}

	return attrs
}

// lastUserText returns the text blocks of the most recent user message.
func lastUserText(messages []ai.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != ai.RoleUser {
			continue
		}
		var text []byte
		for _, block := range messages[i].Content {
			if block.Type == ai.BlockText {
				text = append(text, block.Text...)
			}
		}
		return string(text)
	}
	return ""
}
