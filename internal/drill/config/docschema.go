package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// drillSchema is the JSON Schema every drill document must satisfy before
// decoding. It catches structural mistakes (wrong types, missing sections)
// with better messages than decode errors; cross-field rules live in the
// hand validator.
const drillSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["profiles"],
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "string"},
    "target": {
      "type": "object",
      "properties": {
        "baseUrl": {"type": "string"},
        "timeout": {"type": "string"},
        "verifyTls": {"type": "boolean"},
        "headers": {"type": "object", "additionalProperties": {"type": "string"}}
      }
    },
    "profiles": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["executor", "tasks"],
        "properties": {
          "executor": {"type": "string"},
          "vus": {"type": "integer", "minimum": 0},
          "duration": {"type": "string"},
          "gracefulStop": {"type": "string"},
          "stages": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["duration", "target"],
              "properties": {
                "duration": {"type": "string"},
                "target": {"type": "integer", "minimum": 0},
                "name": {"type": "string"}
              }
            }
          },
          "pacing": {
            "type": "object",
            "required": ["type"],
            "properties": {
              "type": {"enum": ["none", "constant", "random"]},
              "duration": {"type": "string"},
              "min": {"type": "string"},
              "max": {"type": "string"}
            }
          },
          "login": {
            "type": "object",
            "required": ["path"],
            "properties": {
              "path": {"type": "string"},
              "username": {"type": "string"},
              "password": {"type": "string"},
              "tokenPath": {"type": "string"}
            }
          },
          "tasks": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["path"],
              "properties": {
                "name": {"type": "string"},
                "weight": {"type": "integer", "minimum": 1},
                "method": {"type": "string"},
                "path": {"type": "string"},
                "body": {"type": "string"},
                "headers": {"type": "object", "additionalProperties": {"type": "string"}},
                "check": {"enum": ["", "ok", "waf-block", "limit-hit", "login"]}
              }
            }
          }
        }
      }
    },
    "thresholds": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    }
  }
}`

var (
	compiledSchema     *jsonschema.Schema
	compileSchemaOnce  sync.Once
	compileSchemaError error
)

func schema() (*jsonschema.Schema, error) {
	compileSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("drill-schema.json", strings.NewReader(drillSchema)); err != nil {
			compileSchemaError = fmt.Errorf("invalid schema: %w", err)
			return
		}
		compiledSchema, compileSchemaError = compiler.Compile("drill-schema.json")
	})
	return compiledSchema, compileSchemaError
}

// ValidateDocument checks a raw drill document against the embedded schema.
// YAML documents are normalized through a JSON round-trip first.
func ValidateDocument(data []byte, ext string) error {
	sch, err := schema()
	if err != nil {
		return err
	}

	var doc interface{}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
	default:
		var yamlDoc interface{}
		if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
			return fmt.Errorf("invalid YAML: %w", err)
		}
		// jsonschema expects JSON-decoded values (float64 numbers,
		// map[string]interface{} objects), so round-trip through JSON.
		normalized, err := json.Marshal(yamlDoc)
		if err != nil {
			return fmt.Errorf("failed to normalize YAML document: %w", err)
		}
		if err := json.Unmarshal(normalized, &doc); err != nil {
			return fmt.Errorf("failed to normalize YAML document: %w", err)
		}
	}

	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}
