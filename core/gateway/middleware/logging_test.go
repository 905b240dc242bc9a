package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/leofalp/streamgate/providers/ai"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func logRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		records = append(records, record)
	}
	return records
}

func fixedStream(events ...ai.StreamEvent) func(context.Context, ai.ChatRequest) (*ai.ChatStream, error) {
	return func(context.Context, ai.ChatRequest) (*ai.ChatStream, error) {
		return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
			for _, event := range events {
				if !yield(event, nil) {
					return
				}
			}
		}), nil
	}
}

func testRequest() ai.ChatRequest {
	return ai.ChatRequest{
		Provider: "openai",
		Model:    "gpt-4o",
		Messages: []ai.Message{
			ai.TextMessage(ai.RoleUser, "first question"),
			ai.TextMessage(ai.RoleAssistant, "answer"),
			ai.TextMessage(ai.RoleUser, "second question"),
		},
	}
}

func TestLoggingMiddleware_StandardCompletion(t *testing.T) {
	logger, buf := newBufferLogger()
	next := fixedStream(
		ai.StartEvent("gpt-4o", ai.ProviderOpenAI),
		ai.TextDelta("Hi"),
		ai.DoneEvent("gpt-4o", ai.Usage{InputTokens: 5, OutputTokens: 2}, ai.StopEndTurn),
	)

	stream, err := NewLoggingMiddleware(logger, LogLevelStandard)(next)(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := stream.Collect(); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}

	records := logRecords(t, buf)
	if len(records) != 2 {
		t.Fatalf("expected 2 log entries, got %d: %s", len(records), buf.String())
	}
	if records[0]["msg"] != "stream opening" || records[0]["message_count"] != float64(3) {
		t.Errorf("unexpected opening entry: %v", records[0])
	}
	if _, ok := records[0]["prompt"]; ok {
		t.Error("standard level must not log the prompt")
	}

	done := records[1]
	if done["msg"] != "stream completed" {
		t.Errorf("unexpected completion entry: %v", done)
	}
	if done["input_tokens"] != float64(5) || done["output_tokens"] != float64(2) || done["stop_reason"] != "end_turn" {
		t.Errorf("unexpected completion attributes: %v", done)
	}
}

func TestLoggingMiddleware_VerboseContent(t *testing.T) {
	logger, buf := newBufferLogger()
	next := fixedStream(
		ai.TextDelta("Hello"),
		ai.TextDelta(" there"),
		ai.DoneEvent("gpt-4o", ai.Usage{}, ai.StopEndTurn),
	)

	stream, _ := NewLoggingMiddleware(logger, LogLevelVerbose)(next)(context.Background(), testRequest())
	for range stream.Iter() {
	}

	records := logRecords(t, buf)
	if records[0]["prompt"] != "second question" {
		t.Errorf("expected the last user prompt, got %v", records[0]["prompt"])
	}
	if records[1]["response_text"] != "Hello there" {
		t.Errorf("expected the assembled answer, got %v", records[1]["response_text"])
	}
}

func TestLoggingMiddleware_MinimalOmitsDetails(t *testing.T) {
	logger, buf := newBufferLogger()
	next := fixedStream(ai.DoneEvent("gpt-4o", ai.Usage{}, ai.StopMaxTokens))

	stream, _ := NewLoggingMiddleware(logger, LogLevelMinimal)(next)(context.Background(), testRequest())
	for range stream.Iter() {
	}

	for _, record := range logRecords(t, buf) {
		if _, ok := record["message_count"]; ok {
			t.Errorf("minimal level logged message_count: %v", record)
		}
		if _, ok := record["stop_reason"]; ok {
			t.Errorf("minimal level logged stop_reason: %v", record)
		}
	}
}

func TestLoggingMiddleware_Failures(t *testing.T) {
	logger, buf := newBufferLogger()
	openErr := errors.New("refused")
	failing := func(context.Context, ai.ChatRequest) (*ai.ChatStream, error) { return nil, openErr }

	if _, err := NewLoggingMiddleware(logger, LogLevelStandard)(failing)(context.Background(), testRequest()); !errors.Is(err, openErr) {
		t.Fatalf("expected %v, got %v", openErr, err)
	}

	midStream := &ai.MidStreamError{Err: errors.New("reset")}
	interrupted := func(context.Context, ai.ChatRequest) (*ai.ChatStream, error) {
		return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
			if yield(ai.TextDelta("partial"), nil) {
				yield(ai.StreamEvent{}, midStream)
			}
		}), nil
	}
	stream, _ := NewLoggingMiddleware(logger, LogLevelStandard)(interrupted)(context.Background(), testRequest())
	if _, err := stream.Collect(); !errors.Is(err, ai.ErrStreamInterrupted) {
		t.Fatalf("expected the mid-stream error, got %v", err)
	}

	messages := []string{}
	for _, record := range logRecords(t, buf) {
		messages = append(messages, record["msg"].(string))
	}
	want := "stream opening|stream failed to open|stream opening|stream interrupted"
	if strings.Join(messages, "|") != want {
		t.Errorf("log messages = %v, want %s", messages, want)
	}
}

func TestLoggingMiddleware_Abandoned(t *testing.T) {
	logger, buf := newBufferLogger()
	next := fixedStream(ai.TextDelta("a"), ai.TextDelta("b"))

	stream, _ := NewLoggingMiddleware(logger, LogLevelMinimal)(next)(context.Background(), testRequest())
	for range stream.Iter() {
		break
	}

	if !strings.Contains(buf.String(), "stream abandoned") {
		t.Errorf("expected an abandoned entry, got %s", buf.String())
	}
}
