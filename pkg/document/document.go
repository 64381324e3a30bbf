// Package document implements the document loader (C2): source
// resolution and fetch, phase-1 (document-time) token substitution,
// YAML/JSON parsing, and schema validation against the actor-node shape.
package document

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/token"
)

// Loader fetches and parses documents and macro/contexts sub-documents.
// A Loader is stateless beyond its compiled schema and is safe for
// concurrent use.
type Loader struct {
	schema *jsonschema.Schema
}

// New compiles the actor-node schema once and returns a ready Loader.
func New() (*Loader, error) {
	schema, err := compileNodeSchema()
	if err != nil {
		return nil, fmt.Errorf("document: compile actor-node schema: %w", err)
	}
	return &Loader{schema: schema}, nil
}

// Load fetches ref, applies phase-1 substitution against tokens, parses
// the result as YAML (a superset of JSON), validates it against the
// actor-node schema, and normalizes a bare top-level array into the
// equivalent group.Sync node. The returned node is ready to hand to the
// Actor Registry.
func (l *Loader) Load(ref string, tokens token.Values) (map[string]interface{}, error) {
	raw, err := l.fetch(ref)
	if err != nil {
		return nil, err
	}

	substituted, err := token.Substitute(string(raw), tokens, token.Document, true)
	if err != nil {
		if mte, ok := err.(*token.MissingTokenError); ok {
			return nil, mte.AsFailure()
		}
		return nil, kperrors.Wrap(kperrors.Fatal, kperrors.CodeMissingToken, fmt.Sprintf("substituting %q", ref), err)
	}

	var parsed interface{}
	if err := yaml.Unmarshal([]byte(substituted), &parsed); err != nil {
		return nil, kperrors.Wrap(kperrors.Fatal, kperrors.CodeSchemaInvalid, fmt.Sprintf("parsing %q", ref), err)
	}

	if err := l.schema.Validate(parsed); err != nil {
		return nil, kperrors.Wrap(kperrors.Fatal, kperrors.CodeSchemaInvalid, fmt.Sprintf("validating %q against the actor-node schema", ref), err)
	}

	switch v := parsed.(type) {
	case map[string]interface{}:
		return v, nil
	case []interface{}:
		return actor.ArrayToSyncGroup(v), nil
	default:
		return nil, kperrors.Fatalf(kperrors.CodeSchemaInvalid, "%q must parse to a mapping or an array, got %T", ref, parsed)
	}
}

// LoadContexts fetches ref, applies phase-1 substitution against tokens,
// and parses the result as a plain list of context mappings. It satisfies
// group.ContextsLoader for the group actor's `contexts: <file reference>`
// form.
func (l *Loader) LoadContexts(ref string, tokens token.Values) ([]map[string]interface{}, error) {
	raw, err := l.fetch(ref)
	if err != nil {
		return nil, err
	}

	substituted, err := token.Substitute(string(raw), tokens, token.Document, true)
	if err != nil {
		if mte, ok := err.(*token.MissingTokenError); ok {
			return nil, mte.AsFailure()
		}
		return nil, kperrors.Wrap(kperrors.Fatal, kperrors.CodeMissingToken, fmt.Sprintf("substituting %q", ref), err)
	}

	var parsed []interface{}
	if err := yaml.Unmarshal([]byte(substituted), &parsed); err != nil {
		return nil, kperrors.Wrap(kperrors.Fatal, kperrors.CodeSchemaInvalid, fmt.Sprintf("parsing contexts file %q", ref), err)
	}

	blocks := make([]map[string]interface{}, 0, len(parsed))
	for i, item := range parsed {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, kperrors.Fatalf(kperrors.CodeSchemaInvalid, "contexts file %q element %d must be a mapping, got %T", ref, i, item)
		}
		blocks = append(blocks, m)
	}
	return blocks, nil
}
