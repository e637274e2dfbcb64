// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/freitascorp/mcpfn/pkg/session"
	"github.com/freitascorp/mcpfn/pkg/tools"
)

// errNoSession is returned by tools that keep state when the request carries
// no active session.
var errNoSession = errors.New("this tool needs a session: call initialize and send Mcp-Session-Id")

type addArgs struct {
	A float64 `json:"a" desc:"first addend"`
	B float64 `json:"b" desc:"second addend"`
}

type noteArgs struct {
	Note string `json:"note" desc:"text to remember for this session"`
}

type counterArgs struct {
	By int `json:"by,omitempty" desc:"increment (default 1)"`
}

// registerBuiltinTools installs the tools shipped with the binary.
func registerBuiltinTools(r *tools.Registry) error {
	if err := tools.Register(r, "sayHelloWorld", "Returns a friendly greeting",
		func(_ context.Context, _ tools.NoArgs) (string, error) {
			return "Hello MCP World!", nil
		}); err != nil {
		return err
	}

	if err := tools.Register(r, "add", "Adds two numbers",
		func(_ context.Context, args addArgs) (float64, error) {
			return args.A + args.B, nil
		}); err != nil {
		return err
	}

	echoSchema := tools.ObjectSchema(map[string]tools.Property{
		"message": {Type: tools.TypeString, Description: "text to echo back"},
	}, "message")
	if err := r.RegisterFunc("echo", "Echoes the message argument", echoSchema,
		func(_ context.Context, args map[string]any) (any, error) {
			return args["message"], nil
		}); err != nil {
		return err
	}

	if err := tools.Register(r, "counter", "Increments and returns a per-session counter", counter); err != nil {
		return err
	}
	if err := tools.Register(r, "rememberNote", "Stores a note in the current session", rememberNote); err != nil {
		return err
	}
	return tools.Register(r, "recallNotes", "Lists the notes stored in the current session", recallNotes)
}

func counter(ctx context.Context, args counterArgs) (int64, error) {
	by := int64(args.By)
	if by == 0 {
		by = 1
	}
	var n int64
	ok := session.Update(ctx, func(d *session.Data) {
		n = asInt64(d.Get("count", 0)) + by
		d.Set("count", n)
	})
	if !ok {
		return 0, errNoSession
	}
	return n, nil
}

func rememberNote(ctx context.Context, args noteArgs) (string, error) {
	if args.Note == "" {
		return "", fmt.Errorf("note must not be empty")
	}
	var total int
	ok := session.Update(ctx, func(d *session.Data) {
		notes := asStrings(d.Get("notes", nil))
		notes = append(notes, args.Note)
		d.Set("notes", notes)
		total = len(notes)
	})
	if !ok {
		return "", errNoSession
	}
	return fmt.Sprintf("remembered (%d notes)", total), nil
}

func recallNotes(ctx context.Context, _ tools.NoArgs) ([]string, error) {
	d, ok := session.Get(ctx)
	if !ok {
		return nil, errNoSession
	}
	notes := asStrings(d.Get("notes", nil))
	if notes == nil {
		notes = []string{}
	}
	return notes, nil
}

// Values read back from a JSON-backed store come out as float64 and []any.

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func asStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
