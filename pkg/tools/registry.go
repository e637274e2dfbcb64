// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

// Package tools provides the tool registry behind tools/list and tools/call.
//
// Each tool has:
//   - A unique name and a free-text description
//   - An input schema, derived from a typed argument struct or declared explicitly
//   - A handler, invoked only after its arguments pass the schema
//
// Tools are registered once at process start; a definition never changes
// after registration.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

var (
	// ErrToolNotFound is returned when invoking an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")
	// ErrDuplicateTool is returned when a name is registered twice.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrInvalidArguments wraps schema validation and decoding failures.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Handler is the untyped form every tool is reduced to. args has already
// been validated against the tool's schema.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Call is a tool invocation whose arguments are already validated and bound.
type Call func(ctx context.Context) (any, error)

// binder turns validated raw arguments into a Call.
type binder func(raw map[string]any) (Call, error)

// NoArgs is the argument type of tools that take no parameters.
type NoArgs struct{}

// Definition is a registered tool.
type Definition struct {
	Name        string
	Description string
	InputSchema Schema
	bind        binder
}

// Info is the tools/list view of a definition.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

// Info returns the listing entry for d.
func (d *Definition) Info() Info {
	return Info{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema}
}

// Prepare validates args against the schema and binds them. Every error it
// returns is an argument error wrapping ErrInvalidArguments; the handler has
// not run.
func (d *Definition) Prepare(args map[string]any) (Call, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := d.InputSchema.validate(args); err != nil {
		return nil, err
	}
	return d.bind(args)
}

// Invoke is Prepare followed by the call. Handler errors and panics are not
// intercepted, so a handler error may itself wrap ErrInvalidArguments; use
// Prepare to tell the two apart.
func (d *Definition) Invoke(ctx context.Context, args map[string]any) (any, error) {
	call, err := d.Prepare(args)
	if err != nil {
		return nil, err
	}
	return call(ctx)
}

// Registry holds all registered tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Definition)}
}

// Register adds a tool whose input schema is derived from Args. The handler
// receives its arguments decoded into Args; its result is rendered by
// NewResult.
func Register[Args any, Res any](r *Registry, name, description string, fn func(ctx context.Context, args Args) (Res, error)) error {
	schema, err := SchemaFor[Args]()
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return r.add(&Definition{
		Name:        name,
		Description: description,
		InputSchema: schema,
		bind: func(raw map[string]any) (Call, error) {
			var args Args
			if err := decodeArgs(raw, &args); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
			}
			return func(ctx context.Context) (any, error) {
				res, err := fn(ctx, args)
				if err != nil {
					return nil, err
				}
				return res, nil
			}, nil
		},
	})
}

// MustRegister is like Register but panics on error. Intended for
// process-start wiring.
func MustRegister[Args any, Res any](r *Registry, name, description string, fn func(ctx context.Context, args Args) (Res, error)) {
	if err := Register(r, name, description, fn); err != nil {
		panic(err)
	}
}

// RegisterFunc adds a tool with an explicit schema and an untyped handler.
func (r *Registry) RegisterFunc(name, description string, schema Schema, fn Handler) error {
	if fn == nil {
		return fmt.Errorf("register %s: nil handler", name)
	}
	if schema.Type == "" {
		schema.Type = TypeObject
	}
	if schema.Properties == nil {
		schema.Properties = map[string]Property{}
	}
	for _, req := range schema.Required {
		if _, ok := schema.Properties[req]; !ok {
			return fmt.Errorf("register %s: required argument %q has no property", name, req)
		}
	}
	return r.add(&Definition{
		Name:        name,
		Description: description,
		InputSchema: schema,
		bind: func(raw map[string]any) (Call, error) {
			return func(ctx context.Context) (any, error) { return fn(ctx, raw) }, nil
		},
	})
}

func (r *Registry) add(d *Definition) error {
	if d.Name == "" {
		return errors.New("tool name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
	}
	r.tools[d.Name] = d
	return nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// List returns every tool sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d.Info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke runs a tool by name.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return d.Invoke(ctx, args)
}

func decodeArgs(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
