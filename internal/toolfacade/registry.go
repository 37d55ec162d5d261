package toolfacade

import "sort"

type registration struct {
	descriptor ToolDescriptor
	handler    ToolHandler
}

// ToolRegistry is a name -> (descriptor, handler) catalogue, grounded on
// the teacher's internal/mcp/tool_registry.go register/lookup/list shape.
type ToolRegistry struct {
	tools map[string]registration
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: map[string]registration{}}
}

// Register adds a tool under descriptor.Name; re-registering the same
// name overwrites the previous entry.
func (r *ToolRegistry) Register(descriptor ToolDescriptor, handler ToolHandler) {
	r.tools[descriptor.Name] = registration{descriptor: descriptor, handler: handler}
}

// Lookup resolves a tool by name.
func (r *ToolRegistry) Lookup(name string) (ToolDescriptor, ToolHandler, bool) {
	reg, ok := r.tools[name]
	if !ok {
		return ToolDescriptor{}, nil, false
	}
	return reg.descriptor, reg.handler, true
}

// List returns every registered descriptor, sorted by name.
func (r *ToolRegistry) List() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, reg := range r.tools {
		out = append(out, reg.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
