package execution

import (
	"sort"
	"sync"
)

// DefaultHistoryDepth is how many executions are retained per tool.
const DefaultHistoryDepth = 16

// History keeps the most recent executions of each tool. Entries reference
// live handles, so a record read back for a running execution reflects its
// current state.
type History struct {
	mu      sync.RWMutex
	depth   int
	perTool map[string][]*Handle
}

// NewHistory creates a History retaining up to depth executions per tool.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &History{
		depth:   depth,
		perTool: make(map[string][]*Handle),
	}
}

func (h *History) add(handle *Handle) {
	name := handle.Record().ToolName

	h.mu.Lock()
	defer h.mu.Unlock()

	entries := append(h.perTool[name], handle)
	if len(entries) > h.depth {
		entries = entries[len(entries)-h.depth:]
	}
	h.perTool[name] = entries
}

// Latest returns the most recent execution record for the tool, or false if
// the tool has never run.
func (h *History) Latest(tool string) (ExecutionRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.perTool[tool]
	if len(entries) == 0 {
		return ExecutionRecord{}, false
	}
	return entries[len(entries)-1].Record(), true
}

// ForTool returns the retained records for the tool in chronological order.
func (h *History) ForTool(tool string) []ExecutionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.perTool[tool]
	records := make([]ExecutionRecord, 0, len(entries))
	for _, handle := range entries {
		records = append(records, handle.Record())
	}
	return records
}

// LatestPerTool returns the newest record for every tool that has run.
func (h *History) LatestPerTool() map[string]ExecutionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]ExecutionRecord, len(h.perTool))
	for name, entries := range h.perTool {
		if len(entries) == 0 {
			continue
		}
		out[name] = entries[len(entries)-1].Record()
	}
	return out
}

// Running returns records of all executions that have not reached a terminal
// state yet, sorted by tool name for stable output.
func (h *History) Running() []ExecutionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []ExecutionRecord
	for _, entries := range h.perTool {
		for _, handle := range entries {
			record := handle.Record()
			if !record.Status.IsTerminal() {
				out = append(out, record)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ToolName != out[j].ToolName {
			return out[i].ToolName < out[j].ToolName
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Tools returns the names of all tools with retained history, sorted.
func (h *History) Tools() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.perTool))
	for name := range h.perTool {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
