// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package tools

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// JSON schema primitive types accepted in an input schema.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Schema is the input schema advertised by tools/list. It is always an
// object schema; each property is one named argument.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one argument.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ObjectSchema builds a schema from properties, marking the named ones required.
func ObjectSchema(props map[string]Property, required ...string) Schema {
	if props == nil {
		props = map[string]Property{}
	}
	return Schema{Type: TypeObject, Properties: props, Required: required}
}

// IsRequired reports whether name must be supplied.
func (s Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// SchemaFor derives the input schema of an argument struct type T.
//
// Each exported field is one argument. The json tag supplies the argument
// name (a "-" tag hides the field) and the desc tag its description. A field
// is required unless it is a pointer or tagged omitempty.
func SchemaFor[T any]() (Schema, error) {
	return schemaOf(reflect.TypeFor[T]())
}

func schemaOf(t reflect.Type) (Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Schema{}, fmt.Errorf("argument type %s must be a struct", t)
	}

	s := ObjectSchema(nil)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous {
			return Schema{}, fmt.Errorf("%s.%s: embedded fields are not supported", t, f.Name)
		}

		name, omitempty := parseJSONTag(f)
		if name == "-" {
			continue
		}
		typ, err := jsonType(f.Type)
		if err != nil {
			return Schema{}, fmt.Errorf("%s.%s: %w", t, f.Name, err)
		}
		if _, dup := s.Properties[name]; dup {
			return Schema{}, fmt.Errorf("%s: duplicate argument name %q", t, name)
		}

		s.Properties[name] = Property{Type: typ, Description: f.Tag.Get("desc")}
		if !omitempty && f.Type.Kind() != reflect.Pointer {
			s.Required = append(s.Required, name)
		}
	}
	return s, nil
}

func parseJSONTag(f reflect.StructField) (name string, omitempty bool) {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return f.Name, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = f.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitempty = true
		}
	}
	return name, omitempty
}

func jsonType(t reflect.Type) (string, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger, nil
	case reflect.Float32, reflect.Float64:
		return TypeNumber, nil
	case reflect.Bool:
		return TypeBoolean, nil
	case reflect.Map, reflect.Struct:
		return TypeObject, nil
	case reflect.Slice, reflect.Array:
		return TypeArray, nil
	default:
		return "", fmt.Errorf("unsupported argument kind %s", t.Kind())
	}
}

// matchesType reports whether a decoded JSON value v conforms to typ.
func matchesType(v any, typ string) bool {
	switch typ {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
	case TypeNumber:
		_, ok := toFloat(v)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// validate checks args against s before a handler runs.
func (s Schema) validate(args map[string]any) error {
	for _, name := range s.Required {
		v, ok := args[name]
		if !ok || v == nil {
			return fmt.Errorf("%w: missing required argument %q", ErrInvalidArguments, name)
		}
	}
	for name, v := range args {
		prop, ok := s.Properties[name]
		if !ok {
			return fmt.Errorf("%w: unknown argument %q", ErrInvalidArguments, name)
		}
		if v == nil {
			continue
		}
		if !matchesType(v, prop.Type) {
			return fmt.Errorf("%w: argument %q must be of type %s", ErrInvalidArguments, name, prop.Type)
		}
	}
	return nil
}
