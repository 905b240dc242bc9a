package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leofalp/streamgate/providers/ai"
)

// slowStream yields one text delta after sleep, or the context error when the
// deadline fires first.
func slowStream(sleep time.Duration) func(context.Context, ai.ChatRequest) (*ai.ChatStream, error) {
	return func(ctx context.Context, _ ai.ChatRequest) (*ai.ChatStream, error) {
		return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
			select {
			case <-time.After(sleep):
				if !yield(ai.TextDelta("hello"), nil) {
					return
				}
				yield(ai.DoneEvent("m", ai.Usage{}, ai.StopEndTurn), nil)
			case <-ctx.Done():
				yield(ai.StreamEvent{}, &ai.MidStreamError{Err: ctx.Err(), Model: "m"})
			}
		}), nil
	}
}

func TestTimeoutMiddleware_StreamCompletesBeforeTimeout(t *testing.T) {
	chain := NewTimeoutMiddleware(time.Second)(slowStream(0))

	stream, err := chain(context.Background(), ai.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := stream.Collect()
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if result.Text != "hello" {
		t.Errorf("expected 'hello', got %q", result.Text)
	}
}

func TestTimeoutMiddleware_StreamExceedsTimeout(t *testing.T) {
	chain := NewTimeoutMiddleware(20 * time.Millisecond)(slowStream(time.Second))

	stream, err := chain(context.Background(), ai.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = stream.Collect()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if !errors.Is(err, ai.ErrStreamInterrupted) {
		t.Errorf("expected a mid-stream error, got %v", err)
	}
}

func TestTimeoutMiddleware_CancelsAfterDone(t *testing.T) {
	var streamCtx context.Context
	next := func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
		streamCtx = ctx
		return slowStream(0)(ctx, request)
	}

	stream, err := NewTimeoutMiddleware(time.Hour)(next)(context.Background(), ai.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if streamCtx.Err() != nil {
		t.Fatal("context cancelled before the stream was consumed")
	}

	for range stream.Iter() {
	}
	if !errors.Is(streamCtx.Err(), context.Canceled) {
		t.Errorf("expected the stream context to be cancelled, got %v", streamCtx.Err())
	}
}

func TestTimeoutMiddleware_OpenErrorPassesThrough(t *testing.T) {
	openErr := errors.New("refused")
	next := func(ctx context.Context, _ ai.ChatRequest) (*ai.ChatStream, error) {
		return nil, openErr
	}

	_, err := NewTimeoutMiddleware(time.Second)(next)(context.Background(), ai.ChatRequest{})
	if !errors.Is(err, openErr) {
		t.Errorf("expected %v, got %v", openErr, err)
	}
}

func TestTimeoutMiddleware_DisabledIsPassThrough(t *testing.T) {
	var hasDeadline bool
	next := func(ctx context.Context, _ ai.ChatRequest) (*ai.ChatStream, error) {
		_, hasDeadline = ctx.Deadline()
		return slowStream(0)(ctx, ai.ChatRequest{})
	}

	if _, err := NewTimeoutMiddleware(0)(next)(context.Background(), ai.ChatRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasDeadline {
		t.Error("a zero timeout must not set a deadline")
	}
}
