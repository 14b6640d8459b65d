package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"todo-list/domain"
)

const itemSchemaURL = "mem://todo-list/item.schema.json"

const itemSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name"],
  "properties": {
    "id":           {"type": "string"},
    "name":         {"type": "string", "pattern": "\\S"},
    "description":  {"type": "string"},
    "importance":   {"type": "integer", "minimum": 1, "maximum": 5},
    "dueDate":      {"$ref": "#/$defs/date"},
    "completed":    {"type": "boolean"},
    "createdDate":  {"$ref": "#/$defs/date"},
    "lastEditDate": {"$ref": "#/$defs/date"}
  },
  "$defs": {
    "date": {
      "type": "string",
      "anyOf": [{"format": "date"}, {"format": "date-time"}]
    }
  }
}`

var itemSchema = compileItemSchema()

func compileItemSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(itemSchemaURL, strings.NewReader(itemSchemaJSON)); err != nil {
		panic(fmt.Sprintf("api: item schema: %v", err))
	}
	return compiler.MustCompile(itemSchemaURL)
}

// decodeItem checks body against the item schema and decodes it.
func decodeItem(body []byte) (domain.Item, error) {
	var doc any
	if err := sonic.Unmarshal(body, &doc); err != nil {
		return domain.Item{}, &domain.ValidationError{Message: "body is not valid JSON"}
	}
	if err := itemSchema.Validate(doc); err != nil {
		return domain.Item{}, schemaError(err)
	}
	var item domain.Item
	if err := sonic.Unmarshal(body, &item); err != nil {
		return domain.Item{}, &domain.ValidationError{Message: err.Error()}
	}
	return item, nil
}

// schemaError flattens a schema failure into a ValidationError naming the
// first offending field.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &domain.ValidationError{Message: err.Error()}
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := strings.TrimPrefix(strings.TrimPrefix(leaf.InstanceLocation, "#"), "/")
	return &domain.ValidationError{Field: field, Message: leaf.Message}
}
