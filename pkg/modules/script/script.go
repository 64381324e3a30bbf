// Package script implements script.Run (D5): a built-in actor that
// evaluates a Starlark expression against its options, for option-driven
// scripted checks the stock actor library has no dedicated type for.
// Grounded on pkg/config/starlark_eval.go's StarlarkEvaluator, trimmed to
// the one-shot "run a script, read back a result" shape this actor needs.
package script

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/optschema"
	"github.com/nextdoor/kingpin/pkg/registry"
	"github.com/nextdoor/kingpin/pkg/token"
)

// Module registers script.Run into a Registry.
type Module struct {
	Inst           actor.Instrumentation
	Logger         zerolog.Logger
	DefaultTimeout time.Duration
}

func NewModule(inst actor.Instrumentation, logger zerolog.Logger, defaultTimeout time.Duration) Module {
	return Module{Inst: inst, Logger: logger, DefaultTimeout: defaultTimeout}
}

func (m Module) Register(r *registry.Registry) {
	r.Register("script.Run", m.build)
}

// Docs satisfies the registry's optional Documented interface, for --explain.
func (m Module) Docs() map[string]optschema.Schema {
	return map[string]optschema.Schema{"script.Run": runSchema}
}

var runSchema = optschema.Schema{
	"script": {Kind: optschema.KindString, Default: optschema.Required, Doc: "Starlark source evaluated against 'args'."},
	"args":   {Kind: optschema.KindMap, Default: map[string]interface{}{}, Doc: "Values bound into the script's global scope."},
}

func (m Module) build(node map[string]interface{}, ctx token.Values, dry bool) (actor.Actor, error) {
	spec, err := actor.ParseNode(node)
	if err != nil {
		return nil, err
	}
	base, err := actor.NewBase(actor.Config{
		ActorType:   "script.Run",
		Spec:        spec,
		Context:     ctx,
		Schema:         runSchema,
		DefaultDesc:    "Run script",
		DefaultTimeout: m.DefaultTimeout,
		Dry:            dry,
		Logger:         m.Logger,
	})
	if err != nil {
		return nil, err
	}
	return actor.New(base, &runBody{base: base}, m.Inst), nil
}

type runBody struct {
	base *actor.Base
}

// Execute evaluates the script unconditionally, dry or real: a Starlark
// expression bound only to its own declared args has no side effect the dry
// pass needs to suppress, so there is nothing for a @dry wrap to skip here —
// the evaluation itself is the check.
func (b *runBody) Execute(ctx context.Context) error {
	source, _ := b.base.Options["script"].(string)
	args, _ := b.base.Options["args"].(map[string]interface{})

	result, err := evaluate(source, args)
	if err != nil {
		return kperrors.Wrap(kperrors.Fatal, kperrors.CodeInvalidScript, "evaluating script", err)
	}

	if result.Failed() {
		b.base.Infof("script check failed: result=%v", result.Value)
		return kperrors.Recoverablef(kperrors.CodeBadRequest, "script result was falsy: %v", result.Value)
	}

	b.base.Debugf("script ok, result=%v", result.Value)
	return nil
}

// evalResult carries whatever the script bound to the global name "result";
// no binding at all is treated as an implicit pass.
type evalResult struct {
	Bound bool
	Value interface{}
	Falsy bool
}

func (r evalResult) Failed() bool {
	return r.Bound && r.Falsy
}

func evaluate(source string, args map[string]interface{}) (evalResult, error) {
	thread := &starlark.Thread{
		Name:  "kingpin-script",
		Print: func(_ *starlark.Thread, _ string) {},
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
	}
	argDict := starlark.NewDict(len(args))
	for k, v := range args {
		sv, err := toStarlark(v)
		if err != nil {
			return evalResult{}, fmt.Errorf("converting args[%q]: %w", k, err)
		}
		if err := argDict.SetKey(starlark.String(k), sv); err != nil {
			return evalResult{}, err
		}
	}
	predeclared["args"] = argDict

	globals, err := starlark.ExecFile(thread, "script.run.star", source, predeclared)
	if err != nil {
		return evalResult{}, err
	}

	result, bound := globals["result"]
	if !bound {
		return evalResult{}, nil
	}
	goVal, err := fromStarlark(result)
	if err != nil {
		return evalResult{}, fmt.Errorf("converting result: %w", err)
	}
	return evalResult{Bound: true, Value: goVal, Falsy: !bool(result.Truth())}, nil
}

func toStarlark(v interface{}) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case time.Duration:
		return starlark.MakeInt64(int64(val)), nil
	case []interface{}:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case map[string]interface{}:
		d := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

func fromStarlark(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		out := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]interface{}, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be a string")
			}
			value, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			out[string(key)] = value
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type %s", v.Type())
	}
}
