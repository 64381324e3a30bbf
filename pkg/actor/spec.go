// Package actor implements the actor core (C5): the Spec/Base lifecycle
// shared by every actor — phase-2 substitution, default-description
// formatting, option validation, condition short-circuit, timeout-wrapped
// execution with shielded semantics, and error normalization.
package actor

import (
	"fmt"

	"github.com/nextdoor/kingpin/pkg/kperrors"
)

// Spec is the canonical per-node shape parsed straight out of a document
// (spec.md §3, "Actor specification"). A top-level array is expanded to
// {actor: "group.Sync", options: {acts: array}} by the caller (the
// Document Loader or Macro actor) before Spec ever sees it.
type Spec struct {
	Actor         string
	Desc          string
	Options       map[string]interface{}
	Condition     interface{}
	WarnOnFailure interface{}
	Timeout       interface{}
}

// ParseNode extracts a Spec from a raw parsed document node.
func ParseNode(node map[string]interface{}) (Spec, error) {
	s := Spec{
		Condition:     true,
		WarnOnFailure: false,
	}

	actorID, ok := node["actor"].(string)
	if !ok || actorID == "" {
		return Spec{}, kperrors.Fatalf(kperrors.CodeInvalidActor, "actor node missing required 'actor' identifier")
	}
	s.Actor = actorID

	if d, ok := node["desc"]; ok {
		s.Desc, ok = d.(string)
		if !ok {
			return Spec{}, kperrors.Fatalf(kperrors.CodeInvalidOptions, "'desc' must be a string, got %T", d)
		}
	}

	if o, ok := node["options"]; ok {
		m, ok := o.(map[string]interface{})
		if !ok {
			return Spec{}, kperrors.Fatalf(kperrors.CodeInvalidOptions, "'options' must be a mapping, got %T", o)
		}
		s.Options = m
	} else {
		s.Options = map[string]interface{}{}
	}

	if c, ok := node["condition"]; ok {
		s.Condition = c
	}
	if w, ok := node["warn_on_failure"]; ok {
		s.WarnOnFailure = w
	}
	if t, ok := node["timeout"]; ok {
		s.Timeout = t
	}

	return s, nil
}

// ArrayToSyncGroup wraps a bare top-level array of actor nodes into the
// equivalent single group.Sync node, per spec.md §3.
func ArrayToSyncGroup(acts []interface{}) map[string]interface{} {
	return map[string]interface{}{
		"actor": "group.Sync",
		"desc":  fmt.Sprintf("Sync group of %d action(s)", len(acts)),
		"options": map[string]interface{}{
			"acts": acts,
		},
	}
}
