// Package schema loads the YAML input-schema definition: candidate paging,
// selector keys, the speller alphabet, and the session's default options.
// Files are validated against a JSON Schema before use so a malformed schema
// fails loudly at load time rather than as odd runtime behavior.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// schemaJSON constrains the shape of a schema file.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["schema"],
  "properties": {
    "schema": {
      "type": "object",
      "required": ["schema_id"],
      "properties": {
        "schema_id": {"type": "string", "minLength": 1},
        "name": {"type": "string"}
      }
    },
    "menu": {
      "type": "object",
      "properties": {
        "page_size": {"type": "integer", "minimum": 1, "maximum": 10},
        "alternative_select_keys": {"type": "string"}
      }
    },
    "speller": {
      "type": "object",
      "properties": {
        "alphabet": {"type": "string"},
        "initials": {"type": "string"}
      }
    },
    "options": {
      "type": "object",
      "additionalProperties": {"type": "boolean"}
    }
  }
}`

// defaultPageSize applies when the menu section omits page_size.
const defaultPageSize = 5

// Schema is one parsed input-schema definition.
type Schema struct {
	Meta struct {
		ID   string `yaml:"schema_id"`
		Name string `yaml:"name"`
	} `yaml:"schema"`

	Menu struct {
		PageSize              int    `yaml:"page_size"`
		AlternativeSelectKeys string `yaml:"alternative_select_keys"`
	} `yaml:"menu"`

	Speller struct {
		Alphabet string `yaml:"alphabet"`
		Initials string `yaml:"initials"`
	} `yaml:"speller"`

	// Options holds the session's default option values.
	Options map[string]bool `yaml:"options"`
}

// Load reads, validates, and parses the schema file at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(data)
}

// Parse validates and parses schema YAML.
func Parse(data []byte) (*Schema, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return &s, nil
}

// validate checks the YAML document against the embedded JSON Schema. The
// document is round-tripped through JSON so the validator sees canonical
// JSON types.
func validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize schema: %w", err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("normalize schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader([]byte(schemaJSON))); err != nil {
		return fmt.Errorf("load embedded schema: %w", err)
	}
	sch, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}
	if err := sch.Validate(instance); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	return nil
}

// ID returns the schema identifier.
func (s *Schema) ID() string {
	return s.Meta.ID
}

// SelectKeys returns the configured selector-key string; empty means digit
// selection.
func (s *Schema) SelectKeys() string {
	return s.Menu.AlternativeSelectKeys
}

// Initials returns the characters that start a new input unit, falling back
// to the full speller alphabet when no initials are configured.
func (s *Schema) Initials() string {
	if s.Speller.Initials != "" {
		return s.Speller.Initials
	}
	return s.Speller.Alphabet
}

// PageSize returns the candidate page size.
func (s *Schema) PageSize() int {
	if s.Menu.PageSize <= 0 {
		return defaultPageSize
	}
	return s.Menu.PageSize
}
