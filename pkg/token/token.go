// Package token implements the two-phase text substitution shared by
// document-time (%NAME%) and instantiation-time ({NAME}) token references:
// literal substitution, %NAME|default% defaulting, backslash-escaping, and
// deep substitution over arbitrary JSON-shaped data via a serialize/
// substitute/reparse round trip.
package token

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/nextdoor/kingpin/pkg/kperrors"
)

// Values is the token-source mapping: name -> substitution value. Only
// string, bool, int, int64, and float64 values participate in literal
// substitution;
// other value types are ignored with no error (mirroring the source's
// silent skip of disallowed types).
type Values map[string]interface{}

// Delimiters names one phase's wrapper characters: "%" for document-time,
// "{"/"}" for instantiation-time.
type Delimiters struct {
	Left  string
	Right string
}

// Document is the document-time delimiter pair: %NAME%.
var Document = Delimiters{Left: "%", Right: "%"}

// Context is the instantiation-time delimiter pair: {NAME}.
var Context = Delimiters{Left: "{", Right: "}"}

// MissingTokenError reports every unresolved token name found in one
// substitution pass.
type MissingTokenError struct {
	Names []string
}

func (e *MissingTokenError) Error() string {
	return fmt.Sprintf("found un-matched tokens: %v", e.Names)
}

// AsFailure converts a MissingTokenError into the fatal core error it
// always is.
func (e *MissingTokenError) AsFailure() *kperrors.Error {
	return kperrors.Fatalf(kperrors.CodeMissingToken, "%s", e.Error())
}

// Substitute replaces every non-escaped token reference in s using d's
// delimiters and values. A reference with no matching value falls back to
// its inline default (%NAME|default%) if present; otherwise, if strict is
// true, its name is accumulated into a MissingTokenError once all
// references have been scanned. Escaped references (\%NAME\% or \{NAME\})
// are reduced to their literal, unescaped form in a final pass regardless
// of strict. Substitution is not recursive: text produced by a
// replacement is never re-scanned.
func Substitute(s string, values Values, d Delimiters, strict bool) (string, error) {
	left, right := regexp.QuoteMeta(d.Left), regexp.QuoteMeta(d.Right)

	for k, v := range values {
		switch v.(type) {
		case string, bool, int, int64, float64:
		default:
			continue
		}
		literal := d.Left + k + d.Right
		s = strings.ReplaceAll(s, literal, fmt.Sprintf("%v", v))
	}

	defaultRe := regexp.MustCompile(left + `((\w+)\|([^` + right + `]+))` + right)
	s = defaultRe.ReplaceAllStringFunc(s, func(match string) string {
		groups := defaultRe.FindStringSubmatch(match)
		key, def := groups[2], groups[3]
		if v, ok := values[key]; ok {
			return fmt.Sprintf("%v", v)
		}
		return def
	})

	escapePattern := regexp.MustCompile(`\\` + left + `(\w+)\\` + right)

	if strict {
		bareRe := regexp.MustCompile(left + `\w+` + right)
		found := bareRe.FindAllString(s, -1)
		missingSet := map[string]struct{}{}
		for _, m := range found {
			name := strings.TrimSuffix(strings.TrimPrefix(m, d.Left), d.Right)
			missingSet[name] = struct{}{}
		}
		for _, m := range escapePattern.FindAllStringSubmatch(s, -1) {
			delete(missingSet, m[1])
		}
		if len(missingSet) > 0 {
			names := make([]string, 0, len(missingSet))
			for n := range missingSet {
				names = append(names, n)
			}
			sort.Strings(names)
			return "", &MissingTokenError{Names: names}
		}
	}

	s = escapePattern.ReplaceAllString(s, d.Left+"$1"+d.Right)
	return s, nil
}

// SubstituteJSON applies Substitute to the textual JSON encoding of v,
// then re-parses the result into result. This gives deep substitution
// through nested mappings and arrays without a manual tree walk, at the
// cost of requiring every substituted value to be round-trippable through
// JSON text.
func SubstituteJSON(v interface{}, values Values, d Delimiters, strict bool, result interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("token: marshal for substitution: %w", err)
	}
	substituted, err := Substitute(string(raw), values, d, strict)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(substituted), result); err != nil {
		return fmt.Errorf("token: unmarshal after substitution: %w", err)
	}
	return nil
}

// FromEnviron builds a Values map from process environment KEY=VALUE
// pairs, as produced by os.Environ().
func FromEnviron(environ []string) Values {
	v := make(Values, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			v[kv[:i]] = kv[i+1:]
		}
	}
	return v
}

// Merge returns a new Values with override's keys taking precedence over
// base's. Neither input is mutated.
func Merge(base, override Values) Values {
	out := make(Values, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
