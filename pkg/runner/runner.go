// Package runner implements the Runner (C9): build phase, rehearsal pass,
// real pass, and exit-status mapping, wiring the Document Loader and the
// built-in actor Modules into one ready-to-execute engine instance.
package runner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/document"
	"github.com/nextdoor/kingpin/pkg/group"
	"github.com/nextdoor/kingpin/pkg/kingpinconfig"
	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/macro"
	"github.com/nextdoor/kingpin/pkg/modules/file"
	"github.com/nextdoor/kingpin/pkg/modules/misc"
	"github.com/nextdoor/kingpin/pkg/modules/script"
	"github.com/nextdoor/kingpin/pkg/optschema"
	"github.com/nextdoor/kingpin/pkg/registry"
	"github.com/nextdoor/kingpin/pkg/token"
)

// Runner wires the Document Loader and the Actor Registry's built-in
// modules into the build → rehearsal → real pipeline from spec.md §4.9.
type Runner struct {
	Loader   *document.Loader
	Registry *registry.Registry
	Config   *kingpinconfig.Config
	Logger   zerolog.Logger
}

// New builds a Runner with the stock module set (misc, group, macro, file,
// script), each sharing cfg.DefaultTimeout and inst. extraModules lets an
// embedder register additional actor types (e.g. an integration-actor
// library) alongside the built-ins, per §4.4's "a caller embedding the
// engine may pass additional modules".
func New(cfg *kingpinconfig.Config, inst actor.Instrumentation, logger zerolog.Logger, extraModules ...registry.Module) (*Runner, error) {
	loader, err := document.New()
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}

	modules := []registry.Module{
		misc.NewModule(inst, logger, cfg.DefaultTimeout),
		group.NewModule(loader, inst, logger),
		macro.NewModule(loader, inst, logger, cfg.DefaultTimeout),
		file.NewModule(inst, logger, cfg.DefaultTimeout),
		script.NewModule(inst, logger, cfg.DefaultTimeout),
	}
	modules = append(modules, extraModules...)

	return &Runner{
		Loader:   loader,
		Registry: registry.New(modules...),
		Config:   cfg,
		Logger:   logger,
	}, nil
}

// Explain returns the declared option schema for a registered actor
// identifier, for the CLI's --explain flag.
func (r *Runner) Explain(id string) (optschema.Schema, bool) {
	return r.Registry.Explain(id)
}

// Options controls which phases of the pipeline a single Execute call
// performs.
type Options struct {
	// DryOnly runs only the rehearsal pass (--dry).
	DryOnly bool
	// BuildOnly constructs the dry tree and stops (--build-only).
	BuildOnly bool
	// SkipDry skips the rehearsal pass entirely and goes straight to the
	// real pass, mirroring the SKIP_DRY environment variable. The dry
	// Build still happens first: it is the pipeline's sole pre-flight
	// validation of the document, real-pass-bound or not.
	SkipDry bool
}

// LoadScript fetches and parses the document at ref, applying phase-1
// substitution against tokens, ready to hand to Execute.
func (r *Runner) LoadScript(ref string, tokens token.Values) (map[string]interface{}, error) {
	return r.Loader.Load(ref, tokens)
}

// AdHocNode builds the single-actor document Execute expects from the
// --actor/--option/--param CLI form: options populates the actor's
// "options" mapping, params populates top-level node keys (desc,
// condition, warn_on_failure, timeout).
func AdHocNode(actorID string, options, params map[string]interface{}) map[string]interface{} {
	node := map[string]interface{}{"actor": actorID}
	for k, v := range params {
		node[k] = v
	}
	node["options"] = options
	return node
}

// Execute runs the build/rehearsal/real pipeline against one already-
// loaded node. It is the sole entry point both --script and --actor go
// through once a node is in hand.
//
//  1. Build phase: instantiate the root tree with dry=true. A construction
//     error is returned verbatim (already Fatal).
//  2. Rehearsal pass: run that dry tree, unless SkipDry. A rehearsal
//     failure aborts before the real pass.
//  3. Real pass: rebuild the identical input with dry=false and run it.
func (r *Runner) Execute(ctx context.Context, node map[string]interface{}, tokens token.Values, opts Options) error {
	dryTree, err := r.Registry.Build(node, tokens, true)
	if err != nil {
		return kperrors.Normalize(err)
	}
	if opts.BuildOnly {
		return nil
	}

	skipDry := opts.SkipDry || r.Config.SkipDry
	if !skipDry {
		if err := dryTree.Run(ctx); err != nil {
			r.Logger.Error().Err(err).Str("desc", dryTree.Desc()).Msg("rehearsal pass failed")
			return kperrors.Normalize(err)
		}
	}
	if opts.DryOnly {
		return nil
	}

	realTree, err := r.Registry.Build(node, tokens, false)
	if err != nil {
		return kperrors.Normalize(err)
	}
	if err := realTree.Run(ctx); err != nil {
		r.Logger.Error().Err(err).Str("desc", realTree.Desc()).Msg("real pass failed")
		return kperrors.Normalize(err)
	}
	return nil
}
