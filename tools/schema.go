package tools

import (
	"encoding/json"
	"math"
)

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
)

// Field describes one named argument of a tool.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
}

// Schema is the input schema of a tool: a flat object of primitive fields.
// Keys not named by any field are ignored.
type Schema struct {
	Fields []Field
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks args against the schema and returns an invalid-kind
// *Failure naming the first offending field.
func (s Schema) Validate(args map[string]any) error {
	for _, f := range s.Fields {
		v, ok := args[f.Name]
		if !ok || v == nil {
			if f.Required {
				return Invalid("missing required argument %q", f.Name)
			}
			continue
		}
		if !f.Type.accepts(v) {
			return Invalid("argument %q must be a %s", f.Name, f.Type)
		}
	}
	return nil
}

func (t FieldType) accepts(v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		_, ok := toFloat(v)
		return ok
	case TypeInteger:
		n, ok := toFloat(v)
		return ok && n == math.Trunc(n)
	}
	return false
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Args is the validated argument object handed to a handler.
type Args map[string]any

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

