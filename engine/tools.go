// Delegation tool contract and registry.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Tool implementations live outside this core; only the execute
//   contract is load-bearing

package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/richinex/cite/model"
)

// ToolResult is the outcome of one delegation call. Knowledge, when
// present on success, is appended to the last user message before
// generation.
type ToolResult struct {
	Success   bool   `json:"success"`
	Knowledge string `json:"knowledge,omitempty"`
}

// Tool is an external delegation target (e.g. an online-resources
// lookup). Execute may emit events while running.
type Tool interface {
	Name() string
	Execute(ctx context.Context, query string, events model.EventSink) (ToolResult, error)
}

// ToolRegistry manages delegation tools by name.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool. Returns an error if the name is taken.
func (r *ToolRegistry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool '%s' already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Names returns all registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
