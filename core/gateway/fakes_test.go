package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/leofalp/streamgate/providers/ai"
)

// fakeProvider replays a fixed event sequence, optionally followed by a
// stream failure.
type fakeProvider struct {
	id        ai.ProviderID
	events    []ai.StreamEvent
	openErr   error
	failAfter error

	mu       sync.Mutex
	requests []ai.ChatRequest
}

func (p *fakeProvider) ID() ai.ProviderID { return p.id }

func (p *fakeProvider) Translate(request ai.ChatRequest) (any, error) { return request, nil }

func (p *fakeProvider) StreamMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	p.mu.Lock()
	p.requests = append(p.requests, request)
	p.mu.Unlock()

	if p.openErr != nil {
		return nil, p.openErr
	}
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		for _, event := range p.events {
			if !yield(event, nil) {
				return
			}
		}
		if p.failAfter != nil {
			yield(ai.StreamEvent{}, p.failAfter)
		}
	}), nil
}

func (p *fakeProvider) lastRequest() ai.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return ai.ChatRequest{}
	}
	return p.requests[len(p.requests)-1]
}

type sentEvent struct {
	name    string
	payload any
}

// recordingChannel stores every event; with failAt > 0 the failAt-th Send
// and every later one fail.
type recordingChannel struct {
	events []sentEvent
	failAt int
	calls  int
}

func (c *recordingChannel) Send(event string, payload any) error {
	c.calls++
	if c.failAt > 0 && c.calls >= c.failAt {
		return ErrChannelClosed
	}
	c.events = append(c.events, sentEvent{name: event, payload: payload})
	return nil
}

func (c *recordingChannel) names() []string {
	names := make([]string, 0, len(c.events))
	for _, event := range c.events {
		names = append(names, event.name)
	}
	return names
}

func (c *recordingChannel) last() sentEvent {
	return c.events[len(c.events)-1]
}

func helloStream(model string) []ai.StreamEvent {
	return []ai.StreamEvent{
		ai.StartEvent(model, ai.ProviderAnthropic),
		ai.TextDelta("Hello"),
	}
}

var errConnectionReset = errors.New("connection reset by peer")

func midStreamFailure(model string, usage ai.Usage) error {
	return &ai.MidStreamError{Err: errConnectionReset, Model: model, Usage: usage}
}

func mustJSON(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	return string(data)
}
