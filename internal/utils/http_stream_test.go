package utils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDoPostStream_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("x-api-key = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["model"] != "m" {
			t.Errorf("body = %v, err = %v", body, err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"ok\":true}\n\n")
	}))
	defer server.Close()

	response, err := DoPostStream(context.Background(), server.Client(), server.URL,
		map[string]string{"model": "m"},
		HeaderOption{Key: "x-api-key", Value: "secret"},
	)
	if err != nil {
		t.Fatalf("DoPostStream() error = %v", err)
	}
	defer CloseWithLog(response.Body)

	payload, err := NewSSEScanner(response.Body).Next()
	if err != nil || string(payload) != `{"ok":true}` {
		t.Errorf("Next() = %q, %v", payload, err)
	}
}

func TestDoPostStream_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down"}}`)
	}))
	defer server.Close()

	_, err := DoPostStream(context.Background(), nil, server.URL, map[string]string{})

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("DoPostStream() error = %v, want *HTTPStatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
	if statusErr.ContentType != "application/json" {
		t.Errorf("ContentType = %q", statusErr.ContentType)
	}
	if !strings.Contains(string(statusErr.Body), "slow down") {
		t.Errorf("Body = %q", statusErr.Body)
	}
}

func TestDoPostStream_MarshalError(t *testing.T) {
	_, err := DoPostStream(context.Background(), nil, "http://127.0.0.1:1", map[string]any{"bad": make(chan int)})
	if err == nil || !strings.Contains(err.Error(), "error marshaling body") {
		t.Errorf("DoPostStream() error = %v, want marshal error", err)
	}
}

func TestDoPostStream_TransportError(t *testing.T) {
	_, err := DoPostStream(context.Background(), nil, "http://127.0.0.1:1", map[string]string{})
	if err == nil || !strings.Contains(err.Error(), "error sending stream request") {
		t.Errorf("DoPostStream() error = %v, want transport error", err)
	}
}

func TestWithIdleTimeout_Expires(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	body := WithIdleTimeout(reader, 50*time.Millisecond)
	defer body.Close()

	go func() {
		_, _ = writer.Write([]byte("first"))
	}()

	buf := make([]byte, 16)
	n, err := body.Read(buf)
	if err != nil || string(buf[:n]) != "first" {
		t.Fatalf("Read() = %q, %v", buf[:n], err)
	}

	start := time.Now()
	_, err = body.Read(buf)
	if !errors.Is(err, ErrIdleTimeout) {
		t.Fatalf("Read() error = %v, want ErrIdleTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("idle timeout fired after %s", elapsed)
	}
}

func TestWithIdleTimeout_IgnoresTimeBetweenReads(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	body := WithIdleTimeout(reader, 50*time.Millisecond)
	defer body.Close()

	go func() {
		_, _ = writer.Write([]byte("first"))
		_, _ = writer.Write([]byte("second"))
	}()

	buf := make([]byte, 16)
	n, err := body.Read(buf)
	if err != nil || string(buf[:n]) != "first" {
		t.Fatalf("Read() = %q, %v", buf[:n], err)
	}

	// A slow consumer must not trip the upstream idle timer.
	time.Sleep(200 * time.Millisecond)

	n, err = body.Read(buf)
	if err != nil || string(buf[:n]) != "second" {
		t.Fatalf("Read() after slow consumer = %q, %v", buf[:n], err)
	}
}

func TestWithIdleTimeout_Disabled(t *testing.T) {
	body := io.NopCloser(strings.NewReader("x"))
	if got := WithIdleTimeout(body, 0); got != body {
		t.Error("WithIdleTimeout(0) should return the body unchanged")
	}
}

func TestWithIdleTimeout_ActiveStream(t *testing.T) {
	body := WithIdleTimeout(io.NopCloser(strings.NewReader(strings.Repeat("a", 100))), time.Second)
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil || len(data) != 100 {
		t.Errorf("ReadAll() = %d bytes, %v", len(data), err)
	}
}
