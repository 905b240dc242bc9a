package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/streamgate/core/gateway"
	"github.com/leofalp/streamgate/providers/ai"
)

func sendEvents(t *testing.T, channel gateway.Channel, events ...ai.StreamEvent) {
	t.Helper()
	for _, event := range events {
		require.NoError(t, channel.Send(string(event.Type), event.Payload()))
	}
}

func TestTerminalChannel_SplitsAnswerAndStatus(t *testing.T) {
	out, status := &bytes.Buffer{}, &bytes.Buffer{}
	channel := newTerminalChannel(out, status)

	sendEvents(t, channel,
		ai.StartEvent("deepseek-reasoner", ai.ProviderDeepSeek),
		ai.ThinkingStart(),
		ai.ThinkingDelta("pondering"),
		ai.ThinkingStop(),
		ai.TextDelta("Hello"),
		ai.TextDelta(", world"),
		ai.ToolUseEvent(ai.ToolUse{ID: "c1", Name: "lookup", Input: json.RawMessage(`{"q":1}`)}),
		ai.DoneEvent("deepseek-reasoner", ai.Usage{InputTokens: 3, OutputTokens: 4}, ai.StopToolUse),
	)

	assert.Equal(t, "Hello, world\n", out.String())
	assert.Contains(t, status.String(), "[deepseek deepseek-reasoner]")
	assert.Contains(t, status.String(), "[thinking] pondering\n")
	assert.Contains(t, status.String(), `[tool_use c1 lookup {"q":1}]`)
	assert.Contains(t, status.String(), "[done tool_use: 3 in / 4 out]")
	assert.NoError(t, channel.Err())
}

func TestTerminalChannel_RecordsError(t *testing.T) {
	channel := newTerminalChannel(&bytes.Buffer{}, &bytes.Buffer{})
	sendEvents(t, channel, ai.ErrorEvent("provider 'openai': API key not configured", nil))

	require.Error(t, channel.Err())
	assert.Contains(t, channel.Err().Error(), "API key not configured")
}

func TestPrintProviders(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, printProviders(out, []gateway.ProviderInfo{
		{ID: ai.ProviderAnthropic, DefaultModel: "claude-sonnet-4-5", KeyConfigured: true, Default: true},
		{ID: ai.ProviderGemini, DefaultModel: "gemini-2.5-flash"},
	}))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "PROVIDER")
	assert.Contains(t, string(lines[1]), "anthropic")
	assert.Contains(t, string(lines[1]), "set")
	assert.Contains(t, string(lines[1]), "*")
	assert.Contains(t, string(lines[2]), "missing")
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["providers"])
	assert.True(t, names["chat"])
}
