// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type addArgs struct {
	A float64 `json:"a" desc:"first addend"`
	B float64 `json:"b" desc:"second addend"`
}

type greetArgs struct {
	Name     string            `json:"name"`
	Greeting *string           `json:"greeting"`
	Times    int               `json:"times,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
	internal string
	Hidden   string `json:"-"`
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 || len(r.List()) != 0 {
		t.Fatal("expected empty registry")
	}
}

func TestRegisterAndInvoke(t *testing.T) {
	r := NewRegistry()
	err := Register(r, "add", "Add two numbers", func(_ context.Context, args addArgs) (float64, error) {
		return args.A + args.B, nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Invoke(context.Background(), "add", map[string]any{"a": 2.0, "b": 3.5})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != 5.5 {
		t.Errorf("add = %v, want 5.5", got)
	}

	def, ok := r.Lookup("add")
	if !ok {
		t.Fatal("Lookup(add) not found")
	}
	if def.Description != "Add two numbers" {
		t.Errorf("description = %q", def.Description)
	}
	if def.InputSchema.Properties["a"].Description != "first addend" {
		t.Errorf("desc tag not applied: %+v", def.InputSchema.Properties["a"])
	}
}

func TestRegister_ZeroArgs(t *testing.T) {
	r := NewRegistry()
	MustRegister(r, "sayHelloWorld", "", func(context.Context, NoArgs) (string, error) {
		return "Hello MCP World!", nil
	})

	got, err := r.Invoke(context.Background(), "sayHelloWorld", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "Hello MCP World!" {
		t.Errorf("got %v", got)
	}

	info := r.List()[0]
	if info.InputSchema.Type != TypeObject || len(info.InputSchema.Properties) != 0 || len(info.InputSchema.Required) != 0 {
		t.Errorf("unexpected schema for zero-arg tool: %+v", info.InputSchema)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := NewRegistry()
	fn := func(context.Context, NoArgs) (string, error) { return "", nil }
	if err := Register(r, "dup", "", fn); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := Register(r, "dup", "", fn)
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
	if err := r.RegisterFunc("dup", "", Schema{}, func(context.Context, map[string]any) (any, error) { return nil, nil }); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("RegisterFunc: expected ErrDuplicateTool, got %v", err)
	}
}

func TestRegister_EmptyName(t *testing.T) {
	r := NewRegistry()
	if err := Register(r, "", "", func(context.Context, NoArgs) (string, error) { return "", nil }); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestRegister_UnsupportedArgType(t *testing.T) {
	r := NewRegistry()
	err := Register(r, "bad", "", func(context.Context, struct {
		Fn func() `json:"fn"`
	}) (string, error) {
		return "", nil
	})
	if err == nil {
		t.Fatal("expected error for func-typed argument")
	}

	err = Register(r, "scalar", "", func(context.Context, string) (string, error) { return "", nil })
	if err == nil {
		t.Fatal("expected error for non-struct argument type")
	}
}

func TestSchemaFor(t *testing.T) {
	s, err := SchemaFor[greetArgs]()
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}

	wantTypes := map[string]string{
		"name":     TypeString,
		"greeting": TypeString,
		"times":    TypeInteger,
		"tags":     TypeArray,
		"meta":     TypeObject,
	}
	if len(s.Properties) != len(wantTypes) {
		t.Fatalf("properties = %v, want %d entries", s.Properties, len(wantTypes))
	}
	for name, typ := range wantTypes {
		if s.Properties[name].Type != typ {
			t.Errorf("%s type = %q, want %q", name, s.Properties[name].Type, typ)
		}
	}

	if len(s.Required) != 1 || s.Required[0] != "name" {
		t.Errorf("required = %v, want [name]", s.Required)
	}
}

func TestInvoke_Validation(t *testing.T) {
	r := NewRegistry()
	var called bool
	MustRegister(r, "greet", "", func(_ context.Context, args greetArgs) (string, error) {
		called = true
		return "hi " + args.Name, nil
	})

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing required", map[string]any{}},
		{"null required", map[string]any{"name": nil}},
		{"unknown key", map[string]any{"name": "x", "extra": 1}},
		{"wrong type", map[string]any{"name": 42.0}},
		{"fractional integer", map[string]any{"name": "x", "times": 1.5}},
		{"array for object", map[string]any{"name": "x", "meta": []any{}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called = false
			_, err := r.Invoke(context.Background(), "greet", tc.args)
			if !errors.Is(err, ErrInvalidArguments) {
				t.Fatalf("expected ErrInvalidArguments, got %v", err)
			}
			if called {
				t.Error("handler must not run when validation fails")
			}
		})
	}
}

func TestInvoke_DecodesIntoStruct(t *testing.T) {
	r := NewRegistry()
	var got greetArgs
	MustRegister(r, "greet", "", func(_ context.Context, args greetArgs) (string, error) {
		got = args
		return "", nil
	})

	_, err := r.Invoke(context.Background(), "greet", map[string]any{
		"name":     "ada",
		"greeting": "hello",
		"times":    3.0,
		"tags":     []any{"a", "b"},
		"meta":     map[string]any{"k": "v"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got.Name != "ada" || got.Greeting == nil || *got.Greeting != "hello" || got.Times != 3 {
		t.Errorf("decoded = %+v", got)
	}
	if len(got.Tags) != 2 || got.Meta["k"] != "v" {
		t.Errorf("decoded collections = %v %v", got.Tags, got.Meta)
	}
}

func TestInvoke_HandlerErrorPropagates(t *testing.T) {
	r := NewRegistry()
	MustRegister(r, "fail", "", func(context.Context, NoArgs) (string, error) {
		return "", errors.New("fail!")
	})
	_, err := r.Invoke(context.Background(), "fail", nil)
	if err == nil || err.Error() != "fail!" {
		t.Fatalf("expected handler error unchanged, got %v", err)
	}
}

func TestPrepare_SeparatesArgumentErrors(t *testing.T) {
	r := NewRegistry()
	MustRegister(r, "greet", "", func(_ context.Context, args greetArgs) (string, error) {
		return "hi " + args.Name, nil
	})
	MustRegister(r, "relay", "", func(ctx context.Context, _ NoArgs) (string, error) {
		_, err := r.Invoke(ctx, "greet", map[string]any{})
		return "", fmt.Errorf("downstream: %w", err)
	})

	greet, _ := r.Lookup("greet")
	if _, err := greet.Prepare(map[string]any{"name": 1.0}); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("Prepare: expected ErrInvalidArguments, got %v", err)
	}
	call, err := greet.Prepare(map[string]any{"name": "ada"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got, err := call(context.Background()); err != nil || got != "hi ada" {
		t.Fatalf("call = %v, %v", got, err)
	}

	relay, _ := r.Lookup("relay")
	call, err = relay.Prepare(nil)
	if err != nil {
		t.Fatalf("relay arguments are valid, Prepare returned %v", err)
	}
	// The handler's own error wraps the sentinel; only Prepare decides
	// whether the caller's arguments were at fault.
	if _, err := call(context.Background()); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected wrapped handler error, got %v", err)
	}
}

func TestInvoke_NotFound(t *testing.T) {
	_, err := NewRegistry().Invoke(context.Background(), "nope", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestRegisterFunc(t *testing.T) {
	r := NewRegistry()
	schema := ObjectSchema(map[string]Property{
		"text": {Type: TypeString, Description: "text to echo"},
	}, "text")
	err := r.RegisterFunc("echo", "Echo text", schema, func(_ context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	})
	if err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	got, err := r.Invoke(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil || got != "hi" {
		t.Fatalf("Invoke = %v, %v", got, err)
	}
	if _, err := r.Invoke(context.Background(), "echo", map[string]any{}); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}

	bad := ObjectSchema(nil, "ghost")
	if err := r.RegisterFunc("bad", "", bad, func(context.Context, map[string]any) (any, error) { return nil, nil }); err == nil {
		t.Fatal("expected error for required argument without property")
	}
}

func TestList_Sorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		MustRegister(r, name, "", func(context.Context, NoArgs) (string, error) { return "", nil })
	}
	list := r.List()
	if list[0].Name != "alpha" || list[1].Name != "mid" || list[2].Name != "zeta" {
		t.Errorf("List not sorted: %v", list)
	}
}
