package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/leofalp/streamgate/providers/observability"
)

// maxErrorBodySize caps how much of a rejected upstream response is read.
const maxErrorBodySize int64 = 1 * 1024 * 1024

// HeaderOption is a single request header applied by DoPostStream.
type HeaderOption struct {
	Key   string
	Value string
}

// HTTPStatusError is returned by DoPostStream when the upstream answers with a
// non-2xx status. The body has already been read (capped) and closed.
type HTTPStatusError struct {
	StatusCode  int
	Status      string
	ContentType string
	Body        []byte
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, TruncateStringDefault(string(e.Body)))
}

// DoPostStream performs an HTTP POST with a JSON body and returns the response
// with its body left open for SSE reading. The caller must close the body.
//
// For non-2xx responses the body is read and closed here and an
// *HTTPStatusError is returned; nothing is retried.
func DoPostStream(ctx context.Context, client *http.Client, url string, body any, headers ...HeaderOption) (*http.Response, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	if span != nil {
		span.AddEvent("http.stream_request.prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.Int(observability.AttrHTTPRequestBodySize, len(jsonBody)),
		)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "text/event-stream")
	for _, header := range headers {
		request.Header.Set(header.Key, header.Value)
	}

	requestStart := time.Now()
	response, err := httpClient.Do(request)
	requestDuration := time.Since(requestStart)
	if err != nil {
		if span != nil {
			span.AddEvent("http.stream_request.error",
				observability.Error(err),
				observability.Duration(observability.AttrDuration, requestDuration),
			)
		}
		return nil, fmt.Errorf("error sending stream request: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySize))
		if readErr != nil {
			slog.Warn("failed to read rejected response body", "error", readErr.Error(), "status", response.StatusCode)
		}
		return nil, &HTTPStatusError{
			StatusCode:  response.StatusCode,
			Status:      response.Status,
			ContentType: response.Header.Get("Content-Type"),
			Body:        errorBody,
		}
	}

	if span != nil {
		span.AddEvent("http.stream_response.started",
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Duration(observability.AttrDuration, requestDuration),
		)
	}

	return response, nil
}

// CloseWithLog closes closer and logs (rather than returns) a failure.
func CloseWithLog(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

// ErrIdleTimeout is returned by a body wrapped with WithIdleTimeout when no
// bytes arrived within the configured window.
var ErrIdleTimeout = errors.New("upstream stream idle timeout")

// idleTimeoutBody closes the wrapped body when a single Read waits longer
// than timeout. The timer only runs while a Read is pending, so time the
// consumer spends between reads is not counted. The aborted Read is reported
// as ErrIdleTimeout.
type idleTimeoutBody struct {
	body    io.ReadCloser
	timeout time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	expired bool
}

// WithIdleTimeout wraps body so that waiting longer than timeout for upstream
// bytes aborts the stream. A non-positive timeout returns body unchanged.
func WithIdleTimeout(body io.ReadCloser, timeout time.Duration) io.ReadCloser {
	if timeout <= 0 || body == nil {
		return body
	}
	return &idleTimeoutBody{body: body, timeout: timeout}
}

func (b *idleTimeoutBody) expire() {
	b.mu.Lock()
	b.expired = true
	b.mu.Unlock()
	_ = b.body.Close()
}

func (b *idleTimeoutBody) idleError() error {
	return fmt.Errorf("%w after %s", ErrIdleTimeout, b.timeout)
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	if b.expired {
		b.mu.Unlock()
		return 0, b.idleError()
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.timeout, b.expire)
	} else {
		b.timer.Reset(b.timeout)
	}
	b.mu.Unlock()

	n, err := b.body.Read(p)

	b.mu.Lock()
	b.timer.Stop()
	expired := b.expired
	b.mu.Unlock()

	if err != nil && err != io.EOF && expired {
		return n, b.idleError()
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()
	return b.body.Close()
}
