package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	loremgen "github.com/bozaro/golorem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/streamgate/providers/ai"
)

type sseFrame struct {
	event string
	data  string
}

func readFrames(t *testing.T, body io.Reader) []sseFrame {
	t.Helper()
	var frames []sseFrame
	var current sseFrame

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.event != "" {
				frames = append(frames, current)
			}
			current = sseFrame{}
		}
	}
	require.NoError(t, scanner.Err())
	return frames
}

func frameNames(frames []sseFrame) []string {
	names := make([]string, 0, len(frames))
	for _, frame := range frames {
		names = append(names, frame.event)
	}
	return names
}

type handlerFixture struct {
	server   *httptest.Server
	provider *fakeProvider

	mu        sync.Mutex
	completed map[string]string
}

func newHandlerFixture(t *testing.T, provider *fakeProvider, options ...HandlerOption) *handlerFixture {
	t.Helper()
	fixture := &handlerFixture{provider: provider, completed: map[string]string{}}

	registry := NewRegistry(provider.id, RegistryEntry{Provider: provider, DefaultModel: "default-model", KeyConfigured: true})
	hook := WithCompletionHook(func(_ context.Context, requestID, text string) {
		fixture.mu.Lock()
		defer fixture.mu.Unlock()
		fixture.completed[requestID] = text
	})
	handler := NewHandler(NewRelay(registry), registry, append([]HandlerOption{hook}, options...)...)

	fixture.server = httptest.NewServer(handler.Routes())
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (f *handlerFixture) post(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.server.URL+"/v1/chat/stream", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *handlerFixture) completion(requestID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.completed[requestID]
	return text, ok
}

func TestHandler_StreamsEvents(t *testing.T) {
	generator := loremgen.New()
	paragraph := generator.Paragraph(3, 5)

	events := []ai.StreamEvent{ai.StartEvent("claude-x", ai.ProviderAnthropic)}
	for _, word := range strings.SplitAfter(paragraph, " ") {
		events = append(events, ai.TextDelta(word))
	}
	events = append(events, ai.DoneEvent("claude-x", ai.Usage{InputTokens: 4, OutputTokens: 9}, ai.StopEndTurn))

	fixture := newHandlerFixture(t, &fakeProvider{id: ai.ProviderAnthropic, events: events})
	resp := fixture.post(t, `{"messages":[{"role":"user","content":"hi"}],"thinking":true}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	requestID := resp.Header.Get("X-Request-ID")
	require.NotEmpty(t, requestID)

	frames := readFrames(t, resp.Body)
	require.Len(t, frames, len(events))
	assert.Equal(t, "start", frames[0].event)
	assert.JSONEq(t, `{"model":"claude-x","provider":"anthropic"}`, frames[0].data)

	var text strings.Builder
	for _, frame := range frames[1 : len(frames)-1] {
		var payload ai.TextPayload
		require.NoError(t, json.Unmarshal([]byte(frame.data), &payload))
		text.WriteString(payload.Text)
	}
	assert.Equal(t, paragraph, text.String())
	assert.JSONEq(t, `{"inputTokens":4,"outputTokens":9,"model":"claude-x","stopReason":"end_turn"}`, frames[len(frames)-1].data)

	completed, ok := fixture.completion(requestID)
	require.True(t, ok)
	assert.Equal(t, paragraph, completed)

	request := fixture.provider.lastRequest()
	assert.True(t, request.Thinking)
	assert.Equal(t, "default-model", request.Model)
}

func TestHandler_InterruptedStream(t *testing.T) {
	fixture := newHandlerFixture(t, &fakeProvider{
		id:        ai.ProviderAnthropic,
		events:    helloStream("claude-x"),
		failAfter: midStreamFailure("claude-x", ai.Usage{InputTokens: 3, OutputTokens: 1}),
	})
	resp := fixture.post(t, `{"messages":[{"role":"user","content":"hi"}]}`)

	frames := readFrames(t, resp.Body)
	assert.Equal(t, []string{"start", "text_delta", "text_delta", "done"}, frameNames(frames))
	assert.JSONEq(t, mustJSON(ai.TextPayload{Text: InterruptionNotice}), frames[2].data)
	assert.JSONEq(t, `{"inputTokens":3,"outputTokens":1,"model":"claude-x","stopReason":"interrupted"}`, frames[3].data)

	completed, ok := fixture.completion(resp.Header.Get("X-Request-ID"))
	require.True(t, ok)
	assert.Equal(t, "Hello"+InterruptionNotice, completed)
}

func TestHandler_FailureBeforeText(t *testing.T) {
	fixture := newHandlerFixture(t, &fakeProvider{
		id:        ai.ProviderOpenAI,
		events:    []ai.StreamEvent{ai.StartEvent("gpt-4o", ai.ProviderOpenAI)},
		failAfter: midStreamFailure("gpt-4o", ai.Usage{}),
	})
	resp := fixture.post(t, `{"messages":[{"role":"user","content":"hi"}],"model":"gpt-4o"}`)

	frames := readFrames(t, resp.Body)
	require.Equal(t, []string{"start", "error"}, frameNames(frames))
	assert.Contains(t, frames[1].data, "connection reset by peer")
}

func TestHandler_ConfigurationError(t *testing.T) {
	fixture := newHandlerFixture(t, &fakeProvider{
		id:      ai.ProviderOpenAI,
		openErr: ai.NewMissingKeyError(ai.ProviderOpenAI, "OPENAI_API_KEY"),
	})
	resp := fixture.post(t, `{"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	frames := readFrames(t, resp.Body)
	require.Equal(t, []string{"error"}, frameNames(frames))
	assert.Contains(t, frames[0].data, "OPENAI_API_KEY")
}

func TestHandler_RejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		contains string
	}{
		{"malformed JSON", `{"messages":`, http.StatusBadRequest, "invalid JSON body"},
		{"empty messages", `{"messages":[]}`, http.StatusBadRequest, "messages must not be empty"},
		{"trailing value", `{"messages":[{"role":"user","content":"a"}]} {}`, http.StatusBadRequest, "exactly one JSON value"},
		{"temperature range", `{"messages":[{"role":"user","content":"a"}],"temperature":3}`, http.StatusBadRequest, "temperature"},
		{"negative tokens", `{"messages":[{"role":"user","content":"a"}],"maxTokens":-1}`, http.StatusBadRequest, "must not be negative"},
		{"too large", `{"messages":[{"role":"user","content":"` + strings.Repeat("x", 256) + `"}]}`, http.StatusRequestEntityTooLarge, "exceeds 128 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{id: ai.ProviderOpenAI, events: helloStream("m")}
			fixture := newHandlerFixture(t, provider, WithMaxBodyBytes(128))
			resp := fixture.post(t, tt.body)

			assert.Equal(t, tt.status, resp.StatusCode)
			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Contains(t, body.Error, tt.contains)
			assert.Empty(t, provider.requests)
		})
	}
}

func TestHandler_Providers(t *testing.T) {
	fixture := newHandlerFixture(t, &fakeProvider{id: ai.ProviderGemini})

	resp, err := http.Get(fixture.server.URL + "/v1/providers")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Providers []ProviderInfo `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []ProviderInfo{{
		ID:            ai.ProviderGemini,
		DefaultModel:  "default-model",
		KeyConfigured: true,
		Default:       true,
	}}, body.Providers)
}

func TestHandler_HealthAndMethods(t *testing.T) {
	fixture := newHandlerFixture(t, &fakeProvider{id: ai.ProviderOpenAI})

	resp, err := http.Get(fixture.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(fixture.server.URL + "/v1/chat/stream")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}
