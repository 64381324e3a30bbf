package document

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// nodeSchemaJSON is the actor-node schema from spec.md §6: any loaded
// document, or any element of a bare top-level array, must conform to
// this envelope. It says nothing about an actor's own `options` shape —
// that's the Option Validator's (C3) job, once the node's actor type is
// known.
const nodeSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "kingpin://schema/actor-node",
  "$defs": {
    "node": {
      "type": "object",
      "properties": {
        "actor": {"type": "string", "minLength": 1},
        "desc": {"type": "string"},
        "options": {"type": "object"},
        "condition": {},
        "warn_on_failure": {},
        "timeout": {}
      },
      "required": ["actor"],
      "additionalProperties": false
    }
  },
  "oneOf": [
    {"$ref": "#/$defs/node"},
    {"type": "array", "items": {"$ref": "#/$defs/node"}}
  ]
}`

func compileNodeSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const id = "kingpin://schema/actor-node"
	if err := c.AddResource(id, strings.NewReader(nodeSchemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(id)
}
