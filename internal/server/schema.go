package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const segmentSchema = `
{ "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Segment an uploaded image",
  "type": "object",
  "properties": {
    "image_filename": { "type": "string", "minLength": 1 },
    "n_segments": {
      "description": "Target number of superpixels (default from config)",
      "type": "integer",
      "minimum": 1
    },
    "compactness": {
      "description": "SLIC compactness (default from config)",
      "type": "number",
      "exclusiveMinimum": 0
    }
  },
  "required": ["image_filename"]
}
`

const saveLabelSchema = `
{ "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Assign a label to a superpixel",
  "type": "object",
  "properties": {
    "image_id": { "type": "string", "minLength": 1 },
    "superpixel_id": { "type": "integer" },
    "label": { "type": "string", "minLength": 1 },
    "user": { "type": "string" }
  },
  "required": ["image_id", "superpixel_id", "label"]
}
`

var (
	segmentValidator   = mustSchema(segmentSchema)
	saveLabelValidator = mustSchema(saveLabelSchema)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

// decodeValid validates body against schema and unmarshals it into v.
func decodeValid(schema *gojsonschema.Schema, body []byte, v any) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("JSON did not pass validation: %s", strings.Join(msgs, "; "))
	}
	return json.Unmarshal(body, v)
}
