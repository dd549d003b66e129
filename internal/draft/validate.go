package draft

import (
	"fmt"
	"net/mail"
	"sort"

	"github.com/me/shennong/internal/schema"
	"github.com/me/shennong/pkg/model"
)

// Validate checks d the way the backend will on submission and returns every
// problem found. Field errors on analysis arguments are keyed
// "<analysis>.<argument>".
func Validate(d Draft, cat *schema.Catalog) []model.FieldError {
	var errs []model.FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, model.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if d.Email == "" {
		add("email", "email is required")
	} else if _, err := mail.ParseAddress(d.Email); err != nil {
		add("email", "email field must be a valid email address")
	}
	if schema.Channel.Check(d.Channel) != nil {
		add("channel", "Channel should be either 1 or 2")
	}
	if len(d.Files) == 0 {
		add("files", "Files[] must contain at least one file")
	}
	if d.Res == "" {
		add("res", "res is required")
	} else if schema.Res.Check(d.Res) != nil {
		add("res", "res must be one of .pkl, .csv")
	}
	if len(d.Analyses) == 0 {
		add("analyses", "analyses field is required")
		return errs
	}

	names := make([]string, 0, len(d.Analyses))
	for name := range d.Analyses {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sel := d.Analyses[name]
		g, ok := cat.Group(name)
		if !ok {
			add("analysis", "Unknown processor %s", name)
			continue
		}
		for _, f := range g.InitArgs {
			arg := f.Info().Name
			v, present := sel.InitArgs[arg]
			if !present || v == nil {
				if f.Info().Required {
					add(name+"."+arg, "%s processor is missing required field `%s`", name, arg)
				}
				continue
			}
			if err := schema.CheckValue(f, v); err != nil {
				add(name+"."+arg, "%s processor field `%s` must be of type %s", name, arg, typeName(f))
			}
		}
		for _, pp := range g.Required {
			if !sel.HasPostprocessor(pp) {
				add(name+"."+pp, "%s processor requires postprocessor `%s`", name, pp)
			}
		}
		for _, pp := range sel.Postprocessors {
			if !g.AllowsPostprocessor(pp) {
				add(name+"."+pp, "%s processor does not accept postprocessor `%s`", name, pp)
			}
		}
	}
	return errs
}

func typeName(f schema.Field) string {
	switch t := f.(type) {
	case schema.BoolField:
		return "boolean"
	case schema.NumberField:
		if t.Integer {
			return "integer"
		}
		return "number"
	}
	return "string"
}
