package actor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/optschema"
	"github.com/nextdoor/kingpin/pkg/token"
)

// Body is the concrete per-actor behavior a registered constructor builds.
// Everything else — substitution, validation, condition, timeout, logging,
// error normalization — is handled once by Base/Wrapped and shared by every
// actor, matching base.py's BaseActor template.
type Body interface {
	Execute(ctx context.Context) error
}

// Actor is the narrow interface the rest of the tree (groups, macros, the
// runner) depends on. Every registered constructor ultimately produces one.
type Actor interface {
	Run(ctx context.Context) error
	Desc() string
}

// Config carries everything Base needs to run one Spec's lifecycle. The
// caller (a registry constructor) fills DefaultDesc with the actor class's
// own template ("Sleep {sleep}s") and DefaultTimeout with its class default,
// both of which spec.md §4.5 leaves to the concrete actor.
type Config struct {
	ActorType string
	Spec      Spec
	Context   token.Values

	// SkipOptionSubstitution is set by Group, whose "acts" sub-documents
	// must reach its own children unsubstituted; desc and condition are
	// still substituted strictly. Macro does not set it: its options,
	// "tokens" included, are substituted strictly like any other actor's,
	// so a contextual token missing from them fails construction with a
	// Fatal error.
	SkipOptionSubstitution bool

	Schema         optschema.Schema
	DefaultDesc    string
	DefaultTimeout time.Duration

	Dry    bool
	Logger zerolog.Logger
}

// Base implements the shared actor lifecycle. Concrete actors embed *Base
// and are wrapped into a Wrapped value by New, which is what satisfies
// Actor.
type Base struct {
	ID            uuid.UUID
	ActorType     string
	desc          string
	Options       map[string]interface{}
	condition     interface{}
	warnOnFailure bool
	timeout       time.Duration
	dry           bool
	log           zerolog.Logger
}

// NewBase runs the full construction-time lifecycle from spec.md §4.5:
// phase-2 substitution of desc/condition/(options), default-description
// formatting, and option-schema validation. The returned Base is
// immutable thereafter.
func NewBase(cfg Config) (*Base, error) {
	b := &Base{
		ID:        uuid.New(),
		ActorType: cfg.ActorType,
		dry:       cfg.Dry,
		log:       cfg.Logger,
	}

	desc, err := token.Substitute(cfg.Spec.Desc, cfg.Context, token.Context, true)
	if err != nil {
		return nil, missingContext(err)
	}

	condition := cfg.Spec.Condition
	if cs, ok := condition.(string); ok {
		substituted, err := token.Substitute(cs, cfg.Context, token.Context, true)
		if err != nil {
			return nil, missingContext(err)
		}
		condition = substituted
	}

	rawOptions := cfg.Spec.Options
	if !cfg.SkipOptionSubstitution {
		var substituted map[string]interface{}
		if err := token.SubstituteJSON(cfg.Spec.Options, cfg.Context, token.Context, true, &substituted); err != nil {
			if mte, ok := err.(*token.MissingTokenError); ok {
				return nil, mte.AsFailure()
			}
			return nil, kperrors.Wrap(kperrors.Fatal, kperrors.CodeMissingContext, "substituting options", err)
		}
		rawOptions = substituted
	}

	if desc == "" {
		desc = formatDefaultDesc(cfg.DefaultDesc, rawOptions)
	}
	b.desc = desc

	resolved, err := cfg.Schema.Validate(rawOptions)
	if err != nil {
		return nil, err
	}
	b.Options = resolved

	warn := cfg.Spec.WarnOnFailure
	if ws, ok := warn.(string); ok {
		wb, err := optschema.Str2Bool(ws)
		if err != nil {
			return nil, kperrors.Fatalf(kperrors.CodeInvalidOptions, "warn_on_failure: %v", err)
		}
		b.warnOnFailure = wb
	} else if wb, ok := warn.(bool); ok {
		b.warnOnFailure = wb
	}

	b.condition = condition

	timeout := cfg.DefaultTimeout
	switch t := cfg.Spec.Timeout.(type) {
	case nil:
	case int:
		timeout = time.Duration(t) * time.Second
	case float64:
		timeout = time.Duration(t * float64(time.Second))
	case string:
		// "0" and "" both disable the timeout, matching the source's
		// falsy-timeout convention.
		if t == "" || t == "0" {
			timeout = 0
		} else if secs, err := strconv.ParseFloat(t, 64); err == nil {
			timeout = time.Duration(secs * float64(time.Second))
		}
	}
	b.timeout = timeout

	return b, nil
}

func missingContext(err error) error {
	if mte, ok := err.(*token.MissingTokenError); ok {
		return kperrors.Fatalf(kperrors.CodeMissingContext, "%s", mte.Error())
	}
	return err
}

// formatDefaultDesc renders a class's default description template
// ("Sleep {sleep}s") against its own resolved options, non-strictly: a
// template referencing an option the schema hasn't validated yet simply
// keeps its literal {name} form rather than failing construction.
func formatDefaultDesc(tmpl string, options map[string]interface{}) string {
	if tmpl == "" {
		return ""
	}
	rendered, err := token.Substitute(tmpl, token.Values(options), token.Context, false)
	if err != nil {
		return tmpl
	}
	return rendered
}

func (b *Base) Desc() string { return b.desc }

// Dry reports whether this instance was built for the rehearsal pass.
func (b *Base) Dry() bool { return b.dry }

func (b *Base) logPrefix() string {
	if b.dry {
		return fmt.Sprintf("[DRY: %s] ", b.desc)
	}
	return fmt.Sprintf("[%s] ", b.desc)
}

func (b *Base) Infof(format string, args ...interface{}) {
	b.log.Info().Msg(b.logPrefix() + fmt.Sprintf(format, args...))
}

func (b *Base) Warnf(format string, args ...interface{}) {
	b.log.Warn().Msg(b.logPrefix() + fmt.Sprintf(format, args...))
}

func (b *Base) Errorf(format string, args ...interface{}) {
	b.log.Error().Msg(b.logPrefix() + fmt.Sprintf(format, args...))
}

func (b *Base) Debugf(format string, args ...interface{}) {
	b.log.Debug().Msg(b.logPrefix() + fmt.Sprintf(format, args...))
}

// checkCondition evaluates the resolved condition value. A string is false
// only when it reads "false" or "0" (case-insensitive, surrounding space
// ignored); every other string, including "no", "off" and "", is true, so
// this is narrower than the grammar of a boolean-typed option. A numeric
// condition (e.g. one that ends up numeric from JSON round-tripping) is
// truthy whenever it's non-zero.
func (b *Base) checkCondition() (bool, error) {
	switch v := b.condition.(type) {
	case nil:
		return true, nil
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed == "false" || trimmed == "0" {
			return false, nil
		}
		return true, nil
	default:
		return true, nil
	}
}
