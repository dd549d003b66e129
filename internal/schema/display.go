package schema

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed display.yaml
var defaultDisplay []byte

// HelpLink points at external documentation for a field.
type HelpLink struct {
	Label string `yaml:"label" json:"label"`
	Href  string `yaml:"href" json:"href"`
}

// DisplayItem is the presentation overlay for one field. Kind is optional;
// when empty it is inferred from the schema's declared type.
type DisplayItem struct {
	Kind      Kind       `yaml:"kind"`
	Label     string     `yaml:"label"`
	HelpLinks []HelpLink `yaml:"help_links"`
}

// Display holds overlays for analyses, their arguments, and postprocessors.
type Display struct {
	Analyses       map[string]DisplayItem `yaml:"analyses"`
	Arguments      map[string]DisplayItem `yaml:"arguments"`
	Postprocessors map[string]DisplayItem `yaml:"postprocessors"`
}

// LoadDisplay parses a YAML display overlay.
func LoadDisplay(data []byte) (*Display, error) {
	var d Display
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse display overlay: %w", err)
	}
	for name, item := range d.Arguments {
		if item.Kind != "" && !item.Kind.valid() {
			return nil, fmt.Errorf("parse display overlay: argument %q has unknown kind %q", name, item.Kind)
		}
	}
	return &d, nil
}

// DefaultDisplay returns the overlay shipped with the client.
func DefaultDisplay() *Display {
	d, err := LoadDisplay(defaultDisplay)
	if err != nil {
		panic(err)
	}
	return d
}
