package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

// GenerateSchema reflects the JSON Schema of T.
//
// Struct tags drive the result:
//
//	type Args struct {
//	    LogID string `json:"logId" jsonschema:"required,description=Id of the log"`
//	}
//
// Schemas are self-contained (no $ref) and reject unknown properties.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		Anonymous:                  true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	return reflector.Reflect(&v)
}

// CompiledSchema validates values against a reflected schema.
type CompiledSchema struct {
	name   string
	schema *validator.Schema
}

// CompileSchema compiles s for validation. name identifies the schema in
// error messages.
func CompileSchema(name string, s *jsonschema.Schema) (*CompiledSchema, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	doc, err := validator.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", name, err)
	}

	c := validator.NewCompiler()
	resource := name + ".json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &CompiledSchema{name: name, schema: compiled}, nil
}

// Validate checks v against the schema. v may be any value that encodes to
// JSON; it is normalized through an encode/decode pass first.
func (s *CompiledSchema) Validate(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", s.name, err)
	}
	inst, err := validator.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unmarshal value for %s: %w", s.name, err)
	}
	return s.schema.Validate(inst)
}
