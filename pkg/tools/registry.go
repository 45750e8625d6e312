package tools

import (
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/invopop/jsonschema"
)

// Registry holds every ToolSpec known to the runtime, built once at
// startup and read-only thereafter (§5 "shared resources" — a registry
// is safe for concurrent reads without locking once construction
// finishes).
type Registry struct {
	specs map[string]models.ToolSpec
}

// NewRegistry builds the registry from the built-in IDE tool set. Local
// and virtual tool specs, if any are configured, are added via
// RegisterLocal before the registry is handed to callers.
func NewRegistry() (*Registry, error) {
	r := &Registry{specs: make(map[string]models.ToolSpec, len(builtinArgShapes))}
	reflector := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}

	for name, shape := range builtinArgShapes {
		schema := reflector.Reflect(shape)
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("generating schema for %s: %w", name, err)
		}
		r.specs[name] = models.ToolSpec{
			Name:          name,
			Description:   builtinDescriptions[name],
			ParametersRaw: raw,
			Mode:          BuiltinModes[name],
			Permission:    builtinPermissions[name],
		}
	}
	return r, nil
}

// RegisterLocal adds (or overwrites) a tool spec executed in-process
// rather than by the IDE, e.g. a virtual "summarize" tool.
func (r *Registry) RegisterLocal(spec models.ToolSpec) {
	r.specs[spec.Name] = spec
}

// Get returns the named tool spec.
func (r *Registry) Get(name string) (models.ToolSpec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return models.ToolSpec{}, fmt.Errorf("%w: tool %q", apperrors.ErrNotFound, name)
	}
	return spec, nil
}

// All returns every registered tool spec, in no particular order.
func (r *Registry) All() []models.ToolSpec {
	out := make([]models.ToolSpec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	return out
}
