// Package optschema implements the option validator (C3): per-actor option
// schemas that fill defaults, reject unknown keys, enforce required
// presence, and delegate per-option checks to a self-validating Type.
package optschema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nextdoor/kingpin/pkg/kperrors"
)

// Required is the sentinel default marking an option as mandatory: absence
// is a validation error, never a silently-applied default.
var Required = struct{ required bool }{true}

// Kind names a primitive option category.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindMap    Kind = "map"
	KindList   Kind = "list"
	KindAny    Kind = "any"
)

// Type is a self-validating option type: Validate either accepts value or
// returns an error, which the caller wraps as InvalidOptions.
type Type interface {
	Validate(value interface{}) error
}

// Field describes one declared option: its primitive kind (used for basic
// coercion/checks), its optional self-validating Type, its default (or
// Required), and its documentation string.
type Field struct {
	Kind    Kind
	Type    Type
	Default interface{} // Required sentinel, or a concrete default value
	Doc     string
}

func (f Field) isRequired() bool {
	_, ok := f.Default.(struct{ required bool })
	return ok
}

// Schema is an actor's declared option map: name -> Field.
type Schema map[string]Field

// Validate applies the four-step algorithm from spec.md §4.3 in place on a
// copy of raw, returning the resolved option map or the first validation
// failure. Every failure this function returns is Fatal InvalidOptions.
func (s Schema) Validate(raw map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		resolved[k] = v
	}

	var unknown []string
	for k := range raw {
		if _, ok := s[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, kperrors.Fatalf(kperrors.CodeInvalidOptions,
			"unknown option(s): %s", strings.Join(unknown, ", "))
	}

	var missing []string
	for name, field := range s {
		v, present := raw[name]
		if !present {
			if field.isRequired() {
				missing = append(missing, name)
				continue
			}
			resolved[name] = field.Default
			continue
		}
		coerced, err := coerce(field.Kind, v)
		if err != nil {
			return nil, kperrors.Wrap(kperrors.Fatal, kperrors.CodeInvalidOptions,
				fmt.Sprintf("option %q", name), err)
		}
		resolved[name] = coerced
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, kperrors.Fatalf(kperrors.CodeInvalidOptions,
			"missing required option(s): %s", strings.Join(missing, ", "))
	}

	for name, field := range s {
		if field.Type == nil {
			continue
		}
		v := resolved[name]
		if v == "undefined" {
			continue
		}
		if err := field.Type.Validate(v); err != nil {
			return nil, kperrors.Wrap(kperrors.Fatal, kperrors.CodeInvalidOptions,
				fmt.Sprintf("option %q failed validation", name), err)
		}
	}

	return resolved, nil
}

// coerce performs the primitive type checks/coercions the source
// implementation applies before a self-validating type ever sees the
// value: notably str2bool-style truthiness parsing for booleans supplied
// as strings, since the document format has no native boolean-from-string
// distinction once tokens have been substituted.
func coerce(kind Kind, v interface{}) (interface{}, error) {
	switch kind {
	case KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := str2bool(t)
			if err != nil {
				return nil, fmt.Errorf("expected boolean, got %q", t)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("expected boolean, got %T", v)
		}
	case KindInt:
		switch t := v.(type) {
		case int:
			return t, nil
		case int64:
			return int(t), nil
		case float64:
			return int(t), nil
		case string:
			i, err := strconv.Atoi(t)
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", t)
			}
			return i, nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", v)
		}
	case KindFloat:
		switch t := v.(type) {
		case float64:
			return t, nil
		case int:
			return float64(t), nil
		case string:
			f, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, fmt.Errorf("expected number, got %q", t)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("expected number, got %T", v)
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected string, got %T", v)
	case KindMap:
		if m, ok := v.(map[string]interface{}); ok {
			return m, nil
		}
		return nil, fmt.Errorf("expected mapping, got %T", v)
	case KindList:
		if l, ok := v.([]interface{}); ok {
			return l, nil
		}
		return nil, fmt.Errorf("expected list, got %T", v)
	default:
		return v, nil
	}
}

// str2bool parses the case-insensitive truthy/falsy string forms the core
// recognizes for condition/warn_on_failure/boolean-typed options.
func str2bool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("not a recognized boolean: %q", s)
	}
}

// Str2Bool exposes str2bool to other packages, e.g. pkg/actor's parsing of
// a string warn_on_failure value. pkg/actor's condition check does not use
// it and treats only "false" and "0" as false.
func Str2Bool(s string) (bool, error) { return str2bool(s) }
