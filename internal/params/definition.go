// Package params models the declarative parameter schema of a job kind and
// the layered resolution of parameter values: type-driven defaults, caller
// seed values, then persisted per-kind overrides.
package params

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type tags the parameter definition variant.
type Type string

const (
	// TypeNumber is a numeric parameter with optional bounds.
	TypeNumber Type = "number"
	// TypeBoolean is an on/off parameter.
	TypeBoolean Type = "boolean"
	// TypeText is a free-form string parameter.
	TypeText Type = "text"
	// TypeSelect is a string parameter restricted to a fixed option list.
	TypeSelect Type = "select"
)

// Definition is one typed parameter in a job kind's schema. The concrete
// variants are Number, Boolean, Text, and Select.
type Definition interface {
	// ParamName is the unique key within the job kind's parameter set.
	ParamName() string
	// ParamType tags the variant.
	ParamType() Type
	// DefaultValue is the type-driven default.
	DefaultValue() any
	// check validates and coerces a caller-supplied value.
	check(value any) (any, error)
}

// Number is a numeric parameter.
type Number struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Help    string   `json:"help,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Step    *float64 `json:"step,omitempty"`
	Default float64  `json:"default"`
}

// ParamName returns the parameter key.
func (n Number) ParamName() string { return n.Name }

// ParamType returns TypeNumber.
func (n Number) ParamType() Type { return TypeNumber }

// DefaultValue returns the configured default (zero when unspecified).
func (n Number) DefaultValue() any { return n.Default }

// MarshalJSON tags the serialized definition with its type, for the kind
// catalog endpoint.
func (n Number) MarshalJSON() ([]byte, error) {
	type alias Number
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeNumber, alias(n)})
}

func (n Number) check(value any) (any, error) {
	var v float64
	switch t := value.(type) {
	case float64:
		v = t
	case float32:
		v = float64(t)
	case int:
		v = float64(t)
	case int64:
		v = float64(t)
	default:
		return nil, fmt.Errorf("expected number, got %T", value)
	}
	if n.Min != nil && v < *n.Min {
		return nil, fmt.Errorf("must be >= %v", *n.Min)
	}
	if n.Max != nil && v > *n.Max {
		return nil, fmt.Errorf("must be <= %v", *n.Max)
	}
	return v, nil
}

// Boolean is an on/off parameter.
type Boolean struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Help    string `json:"help,omitempty"`
	Default bool   `json:"default"`
}

// ParamName returns the parameter key.
func (b Boolean) ParamName() string { return b.Name }

// ParamType returns TypeBoolean.
func (b Boolean) ParamType() Type { return TypeBoolean }

// DefaultValue returns the configured default (false when unspecified).
func (b Boolean) DefaultValue() any { return b.Default }

// MarshalJSON tags the serialized definition with its type.
func (b Boolean) MarshalJSON() ([]byte, error) {
	type alias Boolean
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeBoolean, alias(b)})
}

func (b Boolean) check(value any) (any, error) {
	v, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("expected boolean, got %T", value)
	}
	return v, nil
}

// Text is a free-form string parameter.
type Text struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Help    string `json:"help,omitempty"`
	Default string `json:"default"`
}

// ParamName returns the parameter key.
func (t Text) ParamName() string { return t.Name }

// ParamType returns TypeText.
func (t Text) ParamType() Type { return TypeText }

// DefaultValue returns the configured default (empty when unspecified).
func (t Text) DefaultValue() any { return t.Default }

// MarshalJSON tags the serialized definition with its type.
func (t Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeText, alias(t)})
}

func (t Text) check(value any) (any, error) {
	v, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected text, got %T", value)
	}
	return v, nil
}

// Select is a string parameter restricted to Options. An unset Default
// falls back to the first option.
type Select struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Help    string   `json:"help,omitempty"`
	Options []string `json:"options"`
	Default string   `json:"default,omitempty"`
}

// ParamName returns the parameter key.
func (s Select) ParamName() string { return s.Name }

// ParamType returns TypeSelect.
func (s Select) ParamType() Type { return TypeSelect }

// DefaultValue returns the configured default, falling back to the first
// option when unset.
func (s Select) DefaultValue() any {
	if s.Default != "" {
		return s.Default
	}
	if len(s.Options) > 0 {
		return s.Options[0]
	}
	return ""
}

// MarshalJSON tags the serialized definition with its type.
func (s Select) MarshalJSON() ([]byte, error) {
	type alias Select
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeSelect, alias(s)})
}

func (s Select) check(value any) (any, error) {
	v, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected option string, got %T", value)
	}
	for _, opt := range s.Options {
		if v == opt {
			return v, nil
		}
	}
	return nil, fmt.Errorf("must be one of [%s]", strings.Join(s.Options, ", "))
}

// Values maps parameter names to resolved values.
type Values map[string]any

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// ResolveDefaults emits the type-driven default for every definition.
// Pure: identical input yields identical output.
func ResolveDefaults(defs []Definition) Values {
	out := make(Values, len(defs))
	for _, def := range defs {
		out[def.ParamName()] = def.DefaultValue()
	}
	return out
}

// Merge layers value maps left to right with right bias: a key present in
// a later layer wins; keys absent from later layers keep the earlier
// layer's value.
func Merge(layers ...Values) Values {
	out := Values{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// FieldError describes a single invalid parameter.
type FieldError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ValidationError aggregates all invalid parameters of a launch request.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Reason))
	}
	return "invalid parameters: " + strings.Join(parts, "; ")
}

// Validate walks values against the schema, coercing numeric types and
// checking bounds/options. Keys not present in the schema are dropped for
// forward compatibility; keys missing from values get the definition's
// default. A non-nil error is always a *ValidationError.
func Validate(defs []Definition, values Values) (Values, error) {
	out := make(Values, len(defs))
	var verr ValidationError

	for _, def := range defs {
		raw, present := values[def.ParamName()]
		if !present {
			out[def.ParamName()] = def.DefaultValue()
			continue
		}
		v, err := def.check(raw)
		if err != nil {
			verr.Fields = append(verr.Fields, FieldError{Name: def.ParamName(), Reason: err.Error()})
			continue
		}
		out[def.ParamName()] = v
	}

	if len(verr.Fields) > 0 {
		return nil, &verr
	}
	return out, nil
}
