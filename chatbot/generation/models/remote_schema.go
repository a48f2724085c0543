package models

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// generateResponseSchema accepts one {"generated_text": ...} object or a
// non-empty list of them.
const generateResponseSchema = `{
  "definitions": {
    "generation": {
      "type": "object",
      "required": ["generated_text"],
      "properties": {
        "generated_text": {"type": "string"},
        "details": {"type": ["object", "null"]}
      }
    }
  },
  "oneOf": [
    {"$ref": "#/definitions/generation"},
    {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/generation"}}
  ]
}`

var responseSchema = mustCompileSchema(generateResponseSchema)

func mustCompileSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid response schema: %v", err))
	}
	return schema
}

// validateGenerateResponse checks a /generate body before it is decoded.
func validateGenerateResponse(body []byte) error {
	result, err := responseSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("unexpected response shape: %s", strings.Join(errs, "; "))
	}
	return nil
}
