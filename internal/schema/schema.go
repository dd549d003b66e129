// Package schema turns the backend's processor schema into typed form fields.
//
// The backend publishes a JSON document describing every analysis
// ("processor"), its constructor arguments, and the postprocessors that may
// follow it. Resolve converts that document once into a Catalog of Field
// values so nothing downstream re-inspects raw JSON types.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueType is the declared type of an argument in the backend schema.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeTuple   ValueType = "tuple"
	TypeUnknown ValueType = ""
)

// Document is the processor schema served at /static/processor-schema.json.
type Document struct {
	Title          string                         `json:"title"`
	Description    string                         `json:"description"`
	Processors     map[string]ProcessorSchema     `json:"processors"`
	Postprocessors map[string]PostprocessorSchema `json:"postprocessors"`
}

// PostprocessorSchema describes a postprocessor class.
type PostprocessorSchema struct {
	ClassName string      `json:"class_name"`
	InitArgs  []ArgSchema `json:"init_args"`
}

// ProcessorSchema describes an analysis and the postprocessors it accepts.
type ProcessorSchema struct {
	ClassName              string      `json:"class_name"`
	InitArgs               []ArgSchema `json:"init_args"`
	RequiredPostprocessors []string    `json:"required_postprocessors"`
	ValidPostprocessors    []string    `json:"valid_postprocessors"`
}

// ArgSchema is one constructor argument.
type ArgSchema struct {
	Name     string    `json:"name"`
	Type     ValueType `json:"type"`
	Default  any       `json:"default"`
	Required bool      `json:"required"`
	Options  []any     `json:"options,omitempty"`
}

// Parse decodes a schema document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse processor schema: %w", err)
	}
	if len(doc.Processors) == 0 {
		return nil, fmt.Errorf("parse processor schema: no processors defined")
	}
	return &doc, nil
}
