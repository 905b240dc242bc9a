package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/leofalp/streamgate/internal/config"
	"github.com/leofalp/streamgate/providers/ai"
	"github.com/leofalp/streamgate/providers/observability"
)

// CompletionHook receives the assembled answer text once a response ends.
type CompletionHook func(ctx context.Context, requestID string, text string)

// Handler serves the gateway HTTP API.
type Handler struct {
	relay        *Relay
	registry     *Registry
	observer     observability.Provider
	maxBodyBytes int64
	onComplete   CompletionHook
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerObserver logs every request through observer.
func WithHandlerObserver(observer observability.Provider) HandlerOption {
	return func(h *Handler) {
		h.observer = observer
	}
}

// WithMaxBodyBytes bounds the inbound request body.
func WithMaxBodyBytes(limit int64) HandlerOption {
	return func(h *Handler) {
		h.maxBodyBytes = limit
	}
}

// WithCompletionHook registers a hook called once per streamed response with
// the full answer text.
func WithCompletionHook(hook CompletionHook) HandlerOption {
	return func(h *Handler) {
		h.onComplete = hook
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(relay *Relay, registry *Registry, options ...HandlerOption) *Handler {
	h := &Handler{
		relay:        relay,
		registry:     registry,
		maxBodyBytes: config.DefaultMaxBodyBytes,
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// Routes returns the gateway's request multiplexer.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/stream", h.handleChatStream)
	mux.HandleFunc("GET /v1/providers", h.handleProviders)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": h.registry.Providers()})
}

func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	ctx := r.Context()
	start := time.Now()

	request, status, err := decodeChatRequest(w, r, h.maxBodyBytes)
	if err != nil {
		h.log(ctx, "rejected chat request",
			observability.String(observability.AttrRequestID, requestID),
			observability.Int(observability.AttrHTTPStatusCode, status),
			observability.Error(err),
		)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	channel, err := NewSSEChannel(ctx, w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	capture := NewTextCapture(channel, func(text string) {
		if h.onComplete != nil {
			h.onComplete(ctx, requestID, text)
		}
	})
	defer capture.Complete()

	if err := h.relay.Stream(ctx, request, capture); err != nil {
		event := ErrorEventFor(err)
		_ = capture.Send(string(event.Type), event.Payload())
		if h.observer != nil {
			h.observer.Error(ctx, "chat stream failed before any text",
				observability.String(observability.AttrRequestID, requestID),
				observability.Error(err),
			)
		}
	}

	h.log(ctx, "chat stream finished",
		observability.String(observability.AttrRequestID, requestID),
		observability.String(observability.AttrLLMModel, request.Model),
		observability.Int("response.text_length", len(capture.Text())),
		observability.Duration(observability.AttrDuration, time.Since(start)),
	)
}

// decodeChatRequest reads and validates the inbound body. The returned status
// is the HTTP status to answer with when err is not nil.
func decodeChatRequest(w http.ResponseWriter, r *http.Request, maxBodyBytes int64) (ai.ChatRequest, int, error) {
	var request ai.ChatRequest

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(&request); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return request, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", maxBytesErr.Limit)
		}
		return request, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err)
	}
	if decoder.More() {
		return request, http.StatusBadRequest, errors.New("request body must contain exactly one JSON value")
	}
	if len(request.Messages) == 0 {
		return request, http.StatusBadRequest, errors.New("messages must not be empty")
	}
	if request.Temperature != nil && (*request.Temperature < 0 || *request.Temperature > 2) {
		return request, http.StatusBadRequest, fmt.Errorf("temperature must be between 0 and 2, got %g", *request.Temperature)
	}
	if request.MaxTokens < 0 || request.ThinkingBudget < 0 {
		return request, http.StatusBadRequest, errors.New("maxTokens and thinkingBudget must not be negative")
	}
	return request, http.StatusOK, nil
}

func (h *Handler) log(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if h.observer != nil {
		h.observer.Info(ctx, msg, attrs...)
	}
}
