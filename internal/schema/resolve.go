package schema

import (
	"fmt"
	"sort"

	"github.com/me/shennong/pkg/model"
)

// Group is one analysis with its arguments and postprocessor toggles.
type Group struct {
	Analysis       BoolField
	InitArgs       []Field
	Postprocessors []BoolField
	Required       []string
}

// Name returns the analysis name used as the draft key.
func (g *Group) Name() string {
	return g.Analysis.Name
}

// Arg returns the argument field with the given name.
func (g *Group) Arg(name string) (Field, bool) {
	for _, f := range g.InitArgs {
		if f.Info().Name == name {
			return f, true
		}
	}
	return nil, false
}

// AllowsPostprocessor reports whether name is a valid postprocessor for the group.
func (g *Group) AllowsPostprocessor(name string) bool {
	for _, p := range g.Postprocessors {
		if p.Name == name {
			return true
		}
	}
	return false
}

// IsRequired reports whether the postprocessor cannot be deselected.
func (g *Group) IsRequired(postprocessor string) bool {
	for _, r := range g.Required {
		if r == postprocessor {
			return true
		}
	}
	return false
}

// DefaultSelection is the configuration a freshly enabled analysis starts with:
// every argument at its default and the required postprocessors chosen.
func (g *Group) DefaultSelection() model.AnalysisSelection {
	sel := model.AnalysisSelection{
		InitArgs:       make(map[string]any, len(g.InitArgs)),
		Postprocessors: []string{},
	}
	for _, f := range g.InitArgs {
		sel.InitArgs[f.Info().Name] = f.Default()
	}
	for _, r := range g.Required {
		sel = sel.WithPostprocessor(r, true)
	}
	return sel
}

// Catalog is the resolved form of a schema Document.
type Catalog struct {
	Title       string
	Description string
	Groups      []*Group
	byName      map[string]*Group
}

// Group returns the analysis group with the given name.
func (c *Catalog) Group(name string) (*Group, bool) {
	g, ok := c.byName[name]
	return g, ok
}

// Names returns the analysis names in display order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Groups))
	for i, g := range c.Groups {
		names[i] = g.Name()
	}
	return names
}

// Resolve builds a Catalog from doc, applying the display overlay.
// It fails on malformed schemas rather than guessing.
func Resolve(doc *Document, display *Display) (*Catalog, error) {
	if display == nil {
		display = &Display{}
	}

	names := make([]string, 0, len(doc.Processors))
	for name := range doc.Processors {
		names = append(names, name)
	}
	sort.Strings(names)

	cat := &Catalog{
		Title:       doc.Title,
		Description: doc.Description,
		byName:      make(map[string]*Group, len(names)),
	}

	for _, name := range names {
		proc := doc.Processors[name]
		item := display.Analyses[name]

		g := &Group{
			Analysis: BoolField{Meta: Meta{Name: name, Label: item.Label, HelpLinks: item.HelpLinks}},
			Required: append([]string{}, proc.RequiredPostprocessors...),
		}

		for _, arg := range proc.InitArgs {
			f, err := NewField(arg, display.Arguments[arg.Name])
			if err != nil {
				return nil, fmt.Errorf("processor %s: %w", name, err)
			}
			g.InitArgs = append(g.InitArgs, f)
		}

		valid := append([]string{}, proc.ValidPostprocessors...)
		sort.Strings(valid)
		for _, pp := range valid {
			pi := display.Postprocessors[pp]
			g.Postprocessors = append(g.Postprocessors, BoolField{
				Meta: Meta{Name: pp, Label: pi.Label, HelpLinks: pi.HelpLinks},
			})
		}
		for _, r := range g.Required {
			if !g.AllowsPostprocessor(r) {
				return nil, fmt.Errorf("processor %s: required postprocessor %q is not a valid postprocessor", name, r)
			}
		}

		cat.Groups = append(cat.Groups, g)
		cat.byName[name] = g
	}

	return cat, nil
}

// NewField resolves one argument into its field variant. An explicit kind in
// the overlay wins; otherwise booleans become toggles, integers and numbers
// numeric inputs, and strings (and tuples) enumerated choices.
func NewField(arg ArgSchema, item DisplayItem) (Field, error) {
	if arg.Name == "" {
		return nil, fmt.Errorf("argument without a name")
	}
	meta := Meta{Name: arg.Name, Label: item.Label, Required: arg.Required, HelpLinks: item.HelpLinks}

	kind := item.Kind
	if kind == "" {
		kind = inferKind(arg)
	}

	switch kind {
	case KindToggle:
		def := false
		if arg.Default != nil {
			b, ok := arg.Default.(bool)
			if !ok {
				return nil, fmt.Errorf("argument %s: default %v is not a boolean", arg.Name, arg.Default)
			}
			def = b
		}
		return BoolField{Meta: meta, Def: def}, nil

	case KindNumber:
		var def float64
		if arg.Default != nil {
			n, ok := toFloat(arg.Default)
			if !ok {
				return nil, fmt.Errorf("argument %s: default %v is not a number", arg.Name, arg.Default)
			}
			def = n
		}
		return NumberField{Meta: meta, Def: def, Integer: arg.Type == TypeInteger}, nil

	case KindChoice:
		f := ChoiceField{Meta: meta, Def: arg.Default}
		for _, o := range arg.Options {
			f.Options = append(f.Options, Option{Label: optionKey(o), Value: o})
		}
		if f.Def == nil && len(f.Options) > 0 {
			f.Def = f.Options[0].Value
		}
		return f, nil
	}

	return nil, fmt.Errorf("argument %s: unsupported kind %q", arg.Name, kind)
}

func inferKind(arg ArgSchema) Kind {
	switch arg.Type {
	case TypeBoolean:
		return KindToggle
	case TypeInteger, TypeNumber:
		return KindNumber
	case TypeString, TypeTuple:
		return KindChoice
	}
	// Untyped arguments (no default in the processor signature) fall back to
	// the Go type of whatever default is present.
	switch arg.Default.(type) {
	case bool:
		return KindToggle
	case float64:
		return KindNumber
	}
	return KindChoice
}

// Channel and Res are the job-wide options that are not part of the
// processor schema.
var (
	Channel = ChoiceField{
		Meta: Meta{
			Name:     "channel",
			Label:    "If recording is in stereo, which channel would you like to keep (1 or 2)?",
			Required: true,
		},
		Def:     1,
		Options: []Option{{Label: "1", Value: 1}, {Label: "2", Value: 2}},
	}
	Res = ChoiceField{
		Meta: Meta{
			Name:     "res",
			Label:    "Please select the format for your data files",
			Required: true,
			HelpLinks: []HelpLink{{
				Label: "Features collection",
				Href:  "https://docs.cognitive-ml.fr/shennong/python/features.html#module-shennong.features_collection",
			}},
		},
		Def:     ".pkl",
		Options: []Option{{Label: ".pkl", Value: ".pkl"}, {Label: ".csv", Value: ".csv"}},
	}
)
