package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation is returned when a saved report does not match Schema.
var ErrSchemaViolation = errors.New("report does not match schema")

// Schema describes the JSON form of a report.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "bundle": {"$ref": "#/definitions/groups"},
      "role": {"$ref": "#/definitions/groups"},
      "histogram": {
        "type": "object",
        "additionalProperties": {"$ref": "#/definitions/histogram"}
      },
      "base_fields": {"type": "integer", "minimum": 0}
    }
  },
  "definitions": {
    "histogram": {
      "type": "object",
      "propertyNames": {"pattern": "^[0-9]+$"},
      "additionalProperties": {"type": "integer", "minimum": 1}
    },
    "field": {
      "type": "object",
      "required": ["type", "required", "translatable", "cardinality"],
      "properties": {
        "type": {"type": "string"},
        "required": {"type": "boolean"},
        "translatable": {"type": "boolean"},
        "cardinality": {"type": "integer", "minimum": -1},
        "target_type": {"type": "string"},
        "target_bundles": {"type": "array", "items": {"type": "string"}},
        "histogram": {"$ref": "#/definitions/histogram"}
      }
    },
    "groups": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "instances": {"type": "integer", "minimum": 0},
          "fields": {
            "type": "object",
            "additionalProperties": {"$ref": "#/definitions/field"}
          },
          "is_node_editing": {"type": "boolean"},
          "is_taxonomy_editing": {"type": "boolean"},
          "source": {
            "type": "object",
            "required": ["plugin_id"],
            "properties": {
              "plugin_id": {"type": "string"},
              "source_field_index": {"type": "integer", "minimum": 0}
            }
          }
        }
      }
    }
  }
}`

// Validate checks a JSON document against Schema. The returned error lists
// every violation.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(Schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}
