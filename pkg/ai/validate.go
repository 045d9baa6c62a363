package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var compiledSchemas sync.Map // schema name -> *jsonschema.Schema

// ValidatePayload checks raw model output against the schema.
func ValidatePayload(schema *Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &ValidationError{Schema: schema.Name, Content: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	compiled, err := CompileSchema(schema)
	if err != nil {
		return &ValidationError{Schema: schema.Name, Content: raw, Err: err}
	}

	if err := compiled.Validate(parsed); err != nil {
		return &ValidationError{Schema: schema.Name, Content: raw, Err: err}
	}

	return nil
}

// CompileSchema returns the cached compiled form of the schema definition.
func CompileSchema(schema *Schema) (*jsonschema.Schema, error) {
	if cached, ok := compiledSchemas.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	definition, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %q: %w", schema.Name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := compiler.AddResource(url, bytes.NewReader(definition)); err != nil {
		return nil, fmt.Errorf("add schema %q: %w", schema.Name, err)
	}

	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", schema.Name, err)
	}

	compiledSchemas.Store(schema.Name, compiled)
	return compiled, nil
}
