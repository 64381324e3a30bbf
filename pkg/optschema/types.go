package optschema

import (
	"context"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/open-policy-agent/opa/rego"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// EnumType is the core's stock enumerated-string self-validating type
// (e.g. state: "present"|"absent").
type EnumType struct {
	Values []string
}

// NewEnum builds an EnumType accepting exactly the given values.
func NewEnum(values ...string) *EnumType {
	return &EnumType{Values: values}
}

func (e *EnumType) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	for _, v := range e.Values {
		if v == s {
			return nil
		}
	}
	return fmt.Errorf("%q is not one of %s", s, strings.Join(e.Values, ", "))
}

// SchemaType is the core's stock JSON-Schema-like self-validating type: it
// compares a mapping option against a compiled JSON Schema document.
type SchemaType struct {
	compiled *jsonschema.Schema
}

// NewSchemaType compiles schemaJSON (a JSON Schema document, draft
// 2020-12) once at registration time.
func NewSchemaType(id string, schemaJSON string) (*SchemaType, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(id, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("optschema: load schema %s: %w", id, err)
	}
	compiled, err := c.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("optschema: compile schema %s: %w", id, err)
	}
	return &SchemaType{compiled: compiled}, nil
}

func (s *SchemaType) Validate(value interface{}) error {
	if err := s.compiled.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ConstraintType is an enrichment self-validating type expressing a value
// constraint as a CUE expression, e.g. ">=1 & <=65535".
type ConstraintType struct {
	ctx  *cue.Context
	expr string
}

// NewConstraint checks at registration time that a CUE constraint
// expression compiles; Validate compiles it again on each call and unifies
// it against the candidate value.
func NewConstraint(expr string) (*ConstraintType, error) {
	ctx := cuecontext.New()
	if err := ctx.CompileString(expr).Err(); err != nil {
		return nil, fmt.Errorf("optschema: invalid CUE constraint %q: %w", expr, err)
	}
	return &ConstraintType{ctx: ctx, expr: expr}, nil
}

func (c *ConstraintType) Validate(value interface{}) error {
	constraint := c.ctx.CompileString(c.expr)
	encoded := c.ctx.Encode(value)
	unified := constraint.Unify(encoded)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("value %v does not satisfy constraint %q: %w", value, c.expr, err)
	}
	return nil
}

// PolicyType is an enrichment self-validating type expressing a value
// constraint as a Rego policy: value is rejected unless
// data.kingpin.optschema.allow evaluates true against it.
type PolicyType struct {
	query rego.PreparedEvalQuery
}

// NewPolicy prepares regoModule (which must define
// package kingpin.optschema and a rule named allow) once at registration
// time.
func NewPolicy(ctx context.Context, regoModule string) (*PolicyType, error) {
	r := rego.New(
		rego.Query("data.kingpin.optschema.allow"),
		rego.Module("optschema.rego", regoModule),
	)
	q, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("optschema: prepare policy: %w", err)
	}
	return &PolicyType{query: q}, nil
}

func (p *PolicyType) Validate(value interface{}) error {
	results, err := p.query.Eval(context.Background(), rego.EvalInput(value))
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return fmt.Errorf("policy produced no result for value %v", value)
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok || !allowed {
		return fmt.Errorf("value %v rejected by policy", value)
	}
	return nil
}
