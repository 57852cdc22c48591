package tool

import (
	"sort"
	"sync"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

// ToolRegistry manages the catalog of tool descriptors. It is the single
// authority on which tools exist, which are enabled, and which default ports
// are reserved. The enabled flag is the only state that changes after
// registration.
type ToolRegistry interface {
	// Register adds a descriptor to the registry. It fails with a
	// DUPLICATE_TOOL error if the name or a non-zero default port is already
	// taken, and with an INVALID_DESCRIPTOR error if validation fails.
	Register(descriptor ToolDescriptor) error

	// Get retrieves a descriptor copy by name, failing with an UNKNOWN_TOOL
	// error if not registered.
	Get(name string) (ToolDescriptor, error)

	// ListEnabled returns copies of all enabled descriptors ordered by name.
	ListEnabled() []ToolDescriptor

	// ListAll returns copies of every registered descriptor ordered by name.
	ListAll() []ToolDescriptor

	// SetEnabled flips the enabled flag of a registered tool. It is the only
	// post-registration mutation and is safe to call concurrently with reads.
	SetEnabled(name string, enabled bool) error

	// ReservedPorts returns the default ports reserved by descriptors other
	// than skipTool, for the allocator's conflict skipping.
	ReservedPorts(skipTool string) map[int]string

	// Count returns the number of registered tools.
	Count() int
}

// DefaultToolRegistry implements ToolRegistry with a single read-write lock
// held briefly around map access. Descriptors are stored and returned by
// value so callers cannot mutate registered state.
type DefaultToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolDescriptor
	ports map[int]string // defaultPort -> owning tool name
}

// NewToolRegistry creates an empty DefaultToolRegistry.
func NewToolRegistry() *DefaultToolRegistry {
	return &DefaultToolRegistry{
		tools: make(map[string]ToolDescriptor),
		ports: make(map[int]string),
	}
}

// Register adds a descriptor to the registry after validation and collision
// checks. Name uniqueness is global; a non-zero default port must be unique
// across all registered descriptors regardless of their enabled state.
func (r *DefaultToolRegistry) Register(descriptor ToolDescriptor) error {
	if err := descriptor.Validate(); err != nil {
		return types.NewInvalidDescriptorError(err.Error(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[descriptor.Name]; exists {
		return types.NewDuplicateToolError(descriptor.Name, "name collision")
	}

	if descriptor.HasPort() {
		if owner, taken := r.ports[descriptor.DefaultPort]; taken {
			return types.NewDuplicateToolError(descriptor.Name, "port collision with "+owner).
				WithContext("port", descriptor.DefaultPort)
		}
	}

	r.tools[descriptor.Name] = descriptor.Clone()
	if descriptor.HasPort() {
		r.ports[descriptor.DefaultPort] = descriptor.Name
	}

	return nil
}

// Get retrieves a descriptor copy by name.
func (r *DefaultToolRegistry) Get(name string) (ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptor, exists := r.tools[name]
	if !exists {
		return ToolDescriptor{}, types.NewUnknownToolError(name)
	}

	return descriptor.Clone(), nil
}

// ListEnabled returns copies of all enabled descriptors ordered by name so
// iteration order is deterministic across calls.
func (r *DefaultToolRegistry) ListEnabled() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, d := range r.tools {
		if d.Enabled {
			out = append(out, d.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAll returns copies of every registered descriptor ordered by name.
func (r *DefaultToolRegistry) ListAll() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d.Clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetEnabled flips the enabled flag of a registered tool.
func (r *DefaultToolRegistry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	descriptor, exists := r.tools[name]
	if !exists {
		return types.NewUnknownToolError(name)
	}

	descriptor.Enabled = enabled
	r.tools[name] = descriptor

	return nil
}

// ReservedPorts returns a copy of the defaultPort reservations held by
// descriptors other than skipTool. The allocator skips these when scanning
// for a free port so one tool never squats another tool's published port.
func (r *DefaultToolRegistry) ReservedPorts(skipTool string) map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int]string, len(r.ports))
	for port, owner := range r.ports {
		if owner == skipTool {
			continue
		}
		out[port] = owner
	}

	return out
}

// Count returns the number of registered tools.
func (r *DefaultToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}
