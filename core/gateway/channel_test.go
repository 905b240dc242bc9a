package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/streamgate/providers/ai"
)

func TestSSEChannel_WritesEvents(t *testing.T) {
	recorder := httptest.NewRecorder()
	channel, err := NewSSEChannel(context.Background(), recorder)
	require.NoError(t, err)
	assert.Empty(t, recorder.Header().Get("Content-Type"))

	require.NoError(t, channel.Send("start", ai.StartPayload{Model: "gpt-4o", Provider: ai.ProviderOpenAI}))
	require.NoError(t, channel.Send("text_delta", ai.TextPayload{Text: "héllo"}))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", recorder.Header().Get("Cache-Control"))
	assert.True(t, recorder.Flushed)

	expected := "event: start\ndata: {\"model\":\"gpt-4o\",\"provider\":\"openai\"}\n\n" +
		"event: text_delta\ndata: {\"text\":\"héllo\"}\n\n"
	assert.Equal(t, expected, recorder.Body.String())
}

func TestSSEChannel_ClosedContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	recorder := httptest.NewRecorder()
	channel, err := NewSSEChannel(ctx, recorder)
	require.NoError(t, err)

	require.NoError(t, channel.Send("text_delta", ai.TextPayload{Text: "a"}))
	cancel()

	err = channel.Send("text_delta", ai.TextPayload{Text: "b"})
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.ErrorIs(t, err, context.Canceled)

	// Closed channels stay closed.
	assert.ErrorIs(t, channel.Send("done", ai.DonePayload{}), ErrChannelClosed)
	assert.NotContains(t, recorder.Body.String(), `"b"`)
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (w failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestSSEChannel_WriteFailure(t *testing.T) {
	channel, err := NewSSEChannel(context.Background(), failingWriter{httptest.NewRecorder()})
	require.NoError(t, err)

	err = channel.Send("text_delta", ai.TextPayload{Text: "a"})
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.ErrorIs(t, channel.Send("text_delta", ai.TextPayload{Text: "b"}), ErrChannelClosed)
}

type plainWriter struct {
	header http.Header
}

func (w *plainWriter) Header() http.Header        { return w.header }
func (w *plainWriter) Write(p []byte) (int, error) { return len(p), nil }
func (w *plainWriter) WriteHeader(int)             {}

func TestNewSSEChannel_RequiresFlusher(t *testing.T) {
	_, err := NewSSEChannel(context.Background(), &plainWriter{header: http.Header{}})
	assert.Error(t, err)
}
