// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package session

import (
	"encoding/json"
	"maps"
)

// Data is the key/value state attached to a session. Values must be
// JSON-serializable. A Data returned by a Store is always a private copy:
// mutating it has no effect until it is written back through Store.Update.
type Data struct {
	values map[string]any
}

// NewData returns a Data holding a shallow copy of values.
func NewData(values map[string]any) *Data {
	d := &Data{values: make(map[string]any, len(values))}
	maps.Copy(d.values, values)
	return d
}

// Get returns the value stored under key, or def when the key is unset.
func (d *Data) Get(key string, def any) any {
	if v, ok := d.values[key]; ok {
		return v
	}
	return def
}

// Set stores value under key.
func (d *Data) Set(key string, value any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	d.values[key] = value
}

// Delete removes key.
func (d *Data) Delete(key string) {
	delete(d.values, key)
}

// Replace discards every key and installs a copy of values.
func (d *Data) Replace(values map[string]any) {
	d.values = make(map[string]any, len(values))
	maps.Copy(d.values, values)
}

// Len returns the number of keys.
func (d *Data) Len() int { return len(d.values) }

// Raw returns a copy of the full mapping.
func (d *Data) Raw() map[string]any {
	out := make(map[string]any, len(d.values))
	maps.Copy(out, d.values)
	return out
}

func (d *Data) MarshalJSON() ([]byte, error) {
	if d.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.values)
}

func (d *Data) UnmarshalJSON(b []byte) error {
	var values map[string]any
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	if values == nil {
		values = make(map[string]any)
	}
	d.values = values
	return nil
}
