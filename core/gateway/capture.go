package gateway

import (
	"strings"
	"sync"

	"github.com/leofalp/streamgate/providers/ai"
)

// TextCapture decorates a Channel and accumulates the answer text of every
// text_delta event passing through it. Complete hands the assembled text to
// onComplete exactly once, however many times it is called.
type TextCapture struct {
	next       Channel
	onComplete func(text string)
	text       strings.Builder
	once       sync.Once
}

// NewTextCapture wraps next. A nil onComplete makes Complete a no-op.
func NewTextCapture(next Channel, onComplete func(text string)) *TextCapture {
	return &TextCapture{next: next, onComplete: onComplete}
}

// Send implements [Channel]. Text is captured before forwarding, so it is
// kept even when the downstream write fails.
func (c *TextCapture) Send(event string, payload any) error {
	if event == string(ai.EventTextDelta) {
		switch p := payload.(type) {
		case ai.TextPayload:
			c.text.WriteString(p.Text)
		case *ai.TextPayload:
			c.text.WriteString(p.Text)
		}
	}
	return c.next.Send(event, payload)
}

// Text returns the text captured so far.
func (c *TextCapture) Text() string {
	return c.text.String()
}

// Complete invokes onComplete with the full captured text. Only the first
// call has an effect.
func (c *TextCapture) Complete() {
	c.once.Do(func() {
		if c.onComplete != nil {
			c.onComplete(c.text.String())
		}
	})
}
