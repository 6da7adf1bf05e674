// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// SchemaID identifies the generated config schema.
const SchemaID = "https://lostfound.dev/schemas/config.json"

var (
	compiledOnce   sync.Once
	compiledSchema *jschema.Schema
	compiledErr    error
)

// GenerateSchema reflects Config into a JSON Schema document. Unknown keys
// are rejected so typos in config.yaml surface at startup.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "lostfound configuration"
	schema.Description = "Schema for lostfound config.yaml"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "marshal schema").Wrap(err)
	}
	return data, nil
}

// ValidateYAML checks a config document against the generated schema.
// An empty document is valid.
func ValidateYAML(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_PARSE_FAILED").With("operation", "parse yaml").Wrap(err)
	}
	if doc == nil {
		return nil
	}

	sch, err := schema()
	if err != nil {
		return err
	}
	if err := sch.Validate(normalize(doc)); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "validate schema").Wrap(err)
	}
	return nil
}

func schema() (*jschema.Schema, error) {
	compiledOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			compiledErr = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compiledErr = oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "parse schema").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("config.json", doc); err != nil {
			compiledErr = oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "add schema").Wrap(err)
			return
		}
		compiledSchema, compiledErr = c.Compile("config.json")
		if compiledErr != nil {
			compiledErr = oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "compile schema").Wrap(compiledErr)
		}
	})
	return compiledSchema, compiledErr
}

// normalize converts yaml.v3 values into the JSON value model the
// validator expects: map[string]any, []any, float64 numbers.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return val
	}
}
