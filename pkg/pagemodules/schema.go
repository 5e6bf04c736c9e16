package pagemodules

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// AttributesDef is the $defs entry of a module type schema that constrains
// custom attributes.
const AttributesDef = "attributes"

// ModuleSchema is the compiled form of ModuleType.Schema, a JSON Schema
// (draft 2020-12) document describing the data record of a module:
//
//	{
//	  "type": "object",
//	  "properties": {"title": {"type": "string"}},
//	  "additionalProperties": false,
//	  "$defs": {
//	    "attributes": {
//	      "type": "object",
//	      "properties": {"variant": {"enum": ["light", "dark"]}}
//	    }
//	  }
//	}
//
// Custom attributes are validated against $defs/attributes when present.
// An empty schema accepts anything.
type ModuleSchema struct {
	data       *jsonschema.Resolved
	attributes *jsonschema.Resolved
}

// ParseSchema compiles a module type schema document.
func ParseSchema(raw map[string]interface{}) (*ModuleSchema, error) {
	s := &ModuleSchema{}
	if len(raw) == 0 {
		return s, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var root jsonschema.Schema
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	// Data is written one key at a time, so record-level constraints that
	// span several keys are not checked per write.
	record := root
	record.Required = nil
	record.MinProperties = nil
	record.DependentRequired = nil
	if s.data, err = record.Resolve(nil); err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	if _, ok := root.Defs[AttributesDef]; ok {
		attrs := &jsonschema.Schema{
			Schema: root.Schema,
			Ref:    "#/$defs/" + AttributesDef,
			Defs:   root.Defs,
		}
		if s.attributes, err = attrs.Resolve(nil); err != nil {
			return nil, fmt.Errorf("resolve attributes schema: %w", err)
		}
	}
	return s, nil
}

// ValidateData checks one data value against the record schema.
func (s *ModuleSchema) ValidateData(key string, value interface{}) error {
	if s.data == nil {
		return nil
	}
	if err := s.data.Validate(map[string]interface{}{key: value}); err != nil {
		return fmt.Errorf("%w: data key %q: %v", ErrInvalidData, key, err)
	}
	return nil
}

// ValidateAttributes checks a full custom attribute map.
func (s *ModuleSchema) ValidateAttributes(attrs map[string]interface{}) error {
	if s.attributes == nil {
		return nil
	}
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	if err := s.attributes.Validate(attrs); err != nil {
		return fmt.Errorf("%w: custom attributes: %v", ErrInvalidData, err)
	}
	return nil
}

// schemaFor compiles the schema of a module type. A nil type has an empty
// schema.
func schemaFor(typ *ModuleType) (*ModuleSchema, error) {
	if typ == nil {
		return &ModuleSchema{}, nil
	}
	s, err := ParseSchema(typ.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: module type %s has a malformed schema: %v", ErrInvalidData, typ.Name, err)
	}
	return s, nil
}
