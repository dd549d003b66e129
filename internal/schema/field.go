package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is how a field is presented and edited.
type Kind string

const (
	KindToggle Kind = "checkbox"
	KindNumber Kind = "number"
	KindChoice Kind = "radio"
)

func (k Kind) valid() bool {
	return k == KindToggle || k == KindNumber || k == KindChoice
}

// Meta is shared by every field variant.
type Meta struct {
	Name      string
	Label     string
	Required  bool
	HelpLinks []HelpLink
}

// Title returns the label, falling back to the field name.
func (m Meta) Title() string {
	if m.Label != "" {
		return m.Label
	}
	return m.Name
}

// Field is one of BoolField, NumberField or ChoiceField.
type Field interface {
	Info() Meta
	Kind() Kind
	// Default returns the field's default in its native type.
	Default() any
	// Parse converts user input into the field's native type.
	Parse(raw string) (any, error)
	// Check reports whether v is an acceptable value for the field.
	Check(v any) error
	// Format renders v for display.
	Format(v any) string

	isField()
}

// BoolField is a toggle.
type BoolField struct {
	Meta
	Def bool
}

func (f BoolField) Info() Meta { return f.Meta }
func (f BoolField) Kind() Kind { return KindToggle }
func (f BoolField) Default() any { return f.Def }
func (BoolField) isField() {}

func (f BoolField) Parse(raw string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "on", "1":
		return true, nil
	case "false", "no", "n", "off", "0":
		return false, nil
	}
	return nil, fmt.Errorf("%s: %q is not a boolean", f.Name, raw)
}

func (f BoolField) Check(v any) error {
	if _, ok := v.(bool); !ok {
		return fmt.Errorf("%s must be of type boolean", f.Name)
	}
	return nil
}

func (f BoolField) Format(v any) string {
	if b, _ := v.(bool); b {
		return "[x]"
	}
	return "[ ]"
}

// NumberField is a numeric input. Integer fields produce int64 values.
type NumberField struct {
	Meta
	Def     float64
	Integer bool
}

func (f NumberField) Info() Meta { return f.Meta }
func (f NumberField) Kind() Kind { return KindNumber }
func (NumberField) isField() {}

func (f NumberField) Default() any {
	if f.Integer {
		return int64(f.Def)
	}
	return f.Def
}

func (f NumberField) Parse(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if f.Integer {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", f.Name, raw)
		}
		return n, nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", f.Name, raw)
	}
	return n, nil
}

func (f NumberField) Check(v any) error {
	n, ok := toFloat(v)
	if !ok {
		return fmt.Errorf("%s must be of type %s", f.Name, f.typeName())
	}
	if f.Integer && n != math.Trunc(n) {
		return fmt.Errorf("%s must be of type integer", f.Name)
	}
	return nil
}

func (f NumberField) Format(v any) string {
	if n, ok := toFloat(v); ok {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

func (f NumberField) typeName() string {
	if f.Integer {
		return "integer"
	}
	return "number"
}

// ChoiceField is a single choice among enumerated options. Without options
// any string is accepted.
type ChoiceField struct {
	Meta
	Def     any
	Options []Option
}

// Option is one allowed value of a ChoiceField.
type Option struct {
	Label string
	Value any
}

func (f ChoiceField) Info() Meta { return f.Meta }
func (f ChoiceField) Kind() Kind { return KindChoice }
func (f ChoiceField) Default() any { return f.Def }
func (ChoiceField) isField() {}

func (f ChoiceField) Parse(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if len(f.Options) == 0 {
		if raw == "" {
			return nil, fmt.Errorf("%s: value is required", f.Name)
		}
		return raw, nil
	}
	for _, o := range f.Options {
		if raw == o.Label || raw == optionKey(o.Value) {
			return o.Value, nil
		}
	}
	return nil, fmt.Errorf("%s: %q is not one of %s", f.Name, raw, strings.Join(f.optionKeys(), ", "))
}

func (f ChoiceField) Check(v any) error {
	if len(f.Options) == 0 {
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%s must be of type string", f.Name)
		}
		return nil
	}
	key := optionKey(v)
	for _, o := range f.Options {
		if optionKey(o.Value) == key {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s", f.Name, strings.Join(f.optionKeys(), ", "))
}

func (f ChoiceField) Format(v any) string {
	return optionKey(v)
}

func (f ChoiceField) optionKeys() []string {
	keys := make([]string, len(f.Options))
	for i, o := range f.Options {
		keys[i] = optionKey(o.Value)
	}
	return keys
}

// optionKey gives tuples like ["encoder","3"] the key "encoder 3".
func optionKey(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = optionKey(p)
		}
		return strings.Join(parts, " ")
	case []string:
		return strings.Join(t, " ")
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// CheckValue validates v against f. A missing value is an error only for
// required fields.
func CheckValue(f Field, v any) error {
	if v == nil {
		if f.Info().Required {
			return fmt.Errorf("%s is required", f.Info().Name)
		}
		return nil
	}
	return f.Check(v)
}
