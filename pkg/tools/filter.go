package tools

import (
	"bytes"
	"fmt"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Filter restricts a Registry to the subset one agent variant is
// allowed to call, and validates a proposed call's arguments against
// that tool's JSON Schema before it is ever dispatched.
type Filter struct {
	registry     *Registry
	allowedTools map[string]bool
	compiled     map[string]*jsonschema.Schema
}

// NewFilter builds a per-agent filter from the registry and an
// allow-list. An empty allow-list means "every registered tool" —
// matching the universal agent variant in single-agent mode.
func NewFilter(registry *Registry, allowedTools []string) (*Filter, error) {
	f := &Filter{
		registry: registry,
		compiled: make(map[string]*jsonschema.Schema),
	}
	if len(allowedTools) > 0 {
		f.allowedTools = make(map[string]bool, len(allowedTools))
		for _, name := range allowedTools {
			f.allowedTools[name] = true
		}
	}

	for _, spec := range registry.All() {
		if !f.allows(spec.Name) {
			continue
		}
		compiler := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(spec.ParametersRaw))
		if err != nil {
			return nil, fmt.Errorf("unmarshaling schema for %s: %w", spec.Name, err)
		}
		if err := compiler.AddResource(spec.Name, doc); err != nil {
			return nil, fmt.Errorf("adding schema resource for %s: %w", spec.Name, err)
		}
		schema, err := compiler.Compile(spec.Name)
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", spec.Name, err)
		}
		f.compiled[spec.Name] = schema
	}
	return f, nil
}

func (f *Filter) allows(name string) bool {
	if f.allowedTools == nil {
		return true
	}
	return f.allowedTools[name]
}

// Allowed returns the tool specs visible to this agent, suitable for
// inclusion in an LLM request's tool list.
func (f *Filter) Allowed() []models.ToolSpec {
	var out []models.ToolSpec
	for _, spec := range f.registry.All() {
		if f.allows(spec.Name) {
			out = append(out, spec)
		}
	}
	return out
}

// Validate checks a proposed call's name against the allow-list and its
// arguments against the tool's compiled JSON Schema.
func (f *Filter) Validate(call models.ToolCall) error {
	if !f.allows(call.Name) {
		return &apperrors.ValidationError{Field: "tool_name", Message: fmt.Sprintf("%q is not permitted for this agent", call.Name)}
	}
	schema, ok := f.compiled[call.Name]
	if !ok {
		return fmt.Errorf("%w: tool %q", apperrors.ErrNotFound, call.Name)
	}
	if err := schema.Validate(toAnyMap(call.Arguments)); err != nil {
		return &apperrors.ValidationError{Field: "arguments", Message: err.Error()}
	}
	return nil
}

func toAnyMap(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
