package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/leofalp/streamgate/providers/ai"
)

// terminalChannel renders relay events for a human: answer text goes to out,
// reasoning, tool calls and the final summary go to status.
type terminalChannel struct {
	out    io.Writer
	status io.Writer
	err    error
}

func newTerminalChannel(out, status io.Writer) *terminalChannel {
	return &terminalChannel{out: out, status: status}
}

func (c *terminalChannel) Send(event string, payload any) error {
	switch p := payload.(type) {
	case ai.StartPayload:
		fmt.Fprintf(c.status, "[%s %s]\n", p.Provider, p.Model)
	case ai.TextPayload:
		if event == string(ai.EventThinkingDelta) {
			fmt.Fprint(c.status, p.Text)
		} else {
			fmt.Fprint(c.out, p.Text)
		}
	case *ai.ToolUse:
		input, _ := json.Marshal(p.Input)
		fmt.Fprintf(c.status, "\n[tool_use %s %s %s]\n", p.ID, p.Name, input)
	case ai.DonePayload:
		fmt.Fprintf(c.out, "\n")
		fmt.Fprintf(c.status, "[done %s: %d in / %d out]\n", p.StopReason, p.InputTokens, p.OutputTokens)
	case ai.ErrorPayload:
		c.err = fmt.Errorf("gateway error: %s", p.Message)
	default:
		switch ai.StreamEventType(event) {
		case ai.EventThinkingStart:
			fmt.Fprint(c.status, "[thinking] ")
		case ai.EventThinkingStop:
			fmt.Fprintln(c.status)
		}
	}
	return nil
}

// Err returns the error event received, if any.
func (c *terminalChannel) Err() error {
	return c.err
}
