package packs

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.schema.json
var schemaFS embed.FS

var (
	compileOnce    sync.Once
	compileErr     error
	indexSchema    *jsonschema.Schema
	manifestSchema *jsonschema.Schema
)

func compileSchemas() {
	indexSchema, compileErr = compileSchema("schema/index.schema.json")
	if compileErr != nil {
		return
	}
	manifestSchema, compileErr = compileSchema("schema/pack.schema.json")
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	id := "inmemory://" + name
	if err := compiler.AddResource(id, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	compiled, err := compiler.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return compiled, nil
}

func validateIndexDoc(doc []byte) error {
	return validateDoc(indexSchemaFor, doc)
}

func validateManifestDoc(doc []byte) error {
	return validateDoc(manifestSchemaFor, doc)
}

func indexSchemaFor() (*jsonschema.Schema, error) {
	compileOnce.Do(compileSchemas)
	return indexSchema, compileErr
}

func manifestSchemaFor() (*jsonschema.Schema, error) {
	compileOnce.Do(compileSchemas)
	return manifestSchema, compileErr
}

func validateDoc(get func() (*jsonschema.Schema, error), doc []byte) error {
	schema, err := get()
	if err != nil {
		return err
	}
	var value any
	if err := json.Unmarshal(doc, &value); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
