// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package session

import (
	"encoding/json"
	"testing"
)

func TestData(t *testing.T) {
	src := map[string]any{"a": 1}
	d := NewData(src)
	src["a"] = 2
	if d.Get("a", nil) != 1 {
		t.Error("NewData should copy its input")
	}

	if d.Get("missing", "fallback") != "fallback" {
		t.Error("Get should return the default for unset keys")
	}

	d.Set("b", true)
	d.Delete("a")
	if d.Len() != 1 || d.Get("b", false) != true {
		t.Errorf("unexpected data: %v", d.Raw())
	}

	raw := d.Raw()
	raw["c"] = 3
	if d.Len() != 1 {
		t.Error("Raw should return a copy")
	}
}

func TestData_ZeroValue(t *testing.T) {
	var d Data
	d.Set("k", "v")
	if d.Get("k", nil) != "v" {
		t.Error("Set on zero Data should work")
	}

	var empty Data
	b, err := json.Marshal(&empty)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != "{}" {
		t.Errorf("zero Data marshals to %s, want {}", b)
	}
}

func TestData_UnmarshalNull(t *testing.T) {
	var d Data
	if err := json.Unmarshal([]byte("null"), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if d.Len() != 0 {
		t.Errorf("expected empty data, got %v", d.Raw())
	}
	if err := json.Unmarshal([]byte(`[1]`), &d); err == nil {
		t.Error("non-object JSON should fail to decode")
	}
}
