package schema

import (
	"fmt"
	"io"
	"strings"
)

// Render writes a one-line control for f showing value, followed by any help
// links. A nil value renders the field's default.
func Render(w io.Writer, f Field, value any) error {
	if value == nil {
		value = f.Default()
	}
	meta := f.Info()

	var line string
	switch t := f.(type) {
	case BoolField:
		line = fmt.Sprintf("%s %s (%s)", t.Format(value), meta.Title(), meta.Name)
	case NumberField:
		line = fmt.Sprintf("%s (%s): %s", meta.Title(), meta.Name, t.Format(value))
	case ChoiceField:
		line = fmt.Sprintf("%s (%s): %s", meta.Title(), meta.Name, renderOptions(t, value))
	default:
		return fmt.Errorf("render %s: unsupported field type %T", meta.Name, f)
	}
	if meta.Required {
		line += " *"
	}

	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	for _, l := range meta.HelpLinks {
		if _, err := fmt.Fprintf(w, "    ? %s: %s\n", l.Label, l.Href); err != nil {
			return err
		}
	}
	return nil
}

func renderOptions(f ChoiceField, value any) string {
	if len(f.Options) == 0 {
		return f.Format(value)
	}
	current := optionKey(value)
	parts := make([]string, len(f.Options))
	for i, o := range f.Options {
		mark := "( )"
		if optionKey(o.Value) == current {
			mark = "(*)"
		}
		parts[i] = mark + " " + o.Label
	}
	return strings.Join(parts, "  ")
}

// Binding ties a field to the single callback through which its value changes.
type Binding struct {
	Field  Field
	Update func(value any)
}

// Set parses raw in the field's native type and passes the result to Update.
// Update is not called when parsing fails.
func (b Binding) Set(raw string) error {
	v, err := b.Field.Parse(raw)
	if err != nil {
		return err
	}
	b.Update(v)
	return nil
}

// Toggle flips a boolean field relative to current.
func (b Binding) Toggle(current any) error {
	if _, ok := b.Field.(BoolField); !ok {
		return fmt.Errorf("%s is not a toggle", b.Field.Info().Name)
	}
	on, _ := current.(bool)
	b.Update(!on)
	return nil
}
