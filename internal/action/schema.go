package action

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateBody checks body against the JSON Schema in schema (draft 2020-12
// unless the schema declares otherwise).
func ValidateBody(schema, body string) error {
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("body is not valid JSON: unexpected data after top-level value")
	}

	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("body does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schema string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource("schema.json", strings.NewReader(schema)); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}
