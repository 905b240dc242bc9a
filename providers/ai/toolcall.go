package ai

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/leofalp/streamgate/internal/utils"
)

// ToolCallAccumulator reassembles tool calls whose id, name and arguments
// arrive in fragments. Entries are keyed by the provider's correlation key
// (Anthropic content-block index, OpenAI tool_calls index).
//
// An entry is absent until Open or Merge creates it and open until Finalize
// or FinalizeAll removes it, so a key reused later starts a fresh call.
// The zero value is ready to use; an accumulator belongs to one stream.
type ToolCallAccumulator struct {
	entries map[string]*toolCallEntry
}

type toolCallEntry struct {
	ordinal   int
	id        string
	name      string
	arguments strings.Builder
}

// Open starts a call under key, replacing any entry still open there.
func (a *ToolCallAccumulator) Open(key string, ordinal int, id, name string) {
	if a.entries == nil {
		a.entries = make(map[string]*toolCallEntry)
	}
	a.entries[key] = &toolCallEntry{ordinal: ordinal, id: id, name: name}
}

// Merge folds a fragment into the call under key, opening it if needed.
// Non-empty id and name overwrite; argument fragments are appended.
func (a *ToolCallAccumulator) Merge(key string, ordinal int, id, name, argumentsFragment string) {
	entry, ok := a.entries[key]
	if !ok {
		a.Open(key, ordinal, id, name)
		entry = a.entries[key]
	}
	if id != "" {
		entry.id = id
	}
	if name != "" {
		entry.name = name
	}
	entry.arguments.WriteString(argumentsFragment)
}

// Len returns the number of open calls.
func (a *ToolCallAccumulator) Len() int {
	return len(a.entries)
}

// Finalize completes and removes the call under key.
func (a *ToolCallAccumulator) Finalize(key string) (ToolUse, bool) {
	entry, ok := a.entries[key]
	if !ok {
		return ToolUse{}, false
	}
	delete(a.entries, key)
	return entry.toolUse(), true
}

// FinalizeAll completes every open call in ordinal order and empties the
// accumulator.
func (a *ToolCallAccumulator) FinalizeAll() []ToolUse {
	if len(a.entries) == 0 {
		return nil
	}

	entries := make([]*toolCallEntry, 0, len(a.entries))
	for _, entry := range a.entries {
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ordinal < entries[j].ordinal
	})

	toolUses := make([]ToolUse, 0, len(entries))
	for _, entry := range entries {
		toolUses = append(toolUses, entry.toolUse())
	}
	a.entries = nil
	return toolUses
}

// toolUse parses the buffered arguments; malformed JSON is repaired when
// possible and otherwise replaced by an empty object.
func (e *toolCallEntry) toolUse() ToolUse {
	arguments, _ := utils.ParseJSONObject(e.arguments.String())
	input, err := json.Marshal(arguments)
	if err != nil {
		input = json.RawMessage("{}")
	}
	return ToolUse{ID: e.id, Name: e.name, Input: input}
}
