package tool

import (
	"fmt"
	"sort"

	"github.com/codeorc/orchestrator/internal/orcerr"
)

// Registry aggregates Tools by name behind a plain name -> Tool map, since
// this orchestrator's tool set is fixed at construction time rather than
// grown incrementally.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry, rejecting a malformed Parameters()
// schema at registration time rather than at first use.
func (r *Registry) Register(t Tool) error {
	if err := validateSchemaDocument(t.Parameters()); err != nil {
		return fmt.Errorf("tool %q: %w", t.Name(), err)
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the tool registered under name, or orcerr.ErrUnknownTool.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orcerr.ErrUnknownTool, name)
	}
	return t, nil
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run looks up name and invokes it with params, first validating params
// against the tool's declared schema.
func (r *Registry) Run(name, params string) (Result, error) {
	t, err := r.Get(name)
	if err != nil {
		return Result{}, err
	}
	if err := ValidateParams(t.Parameters(), params); err != nil {
		return Result{Status: StatusError, Error: err.Error()}, nil
	}
	return t.Run(params)
}
