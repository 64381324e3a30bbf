// Package commands implements the kingpin CLI surface from spec.md §6: a
// single command with a flag set, not a subcommand tree, since the Runner
// exposes exactly one operation (build → rehearsal → real) applied either
// to a loaded script or to one ad-hoc actor.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/nextdoor/kingpin/pkg/kingpinconfig"
	"github.com/nextdoor/kingpin/pkg/runner"
	"github.com/nextdoor/kingpin/pkg/telemetry"
	"github.com/nextdoor/kingpin/pkg/token"
)

var (
	scriptPath string
	actorID    string
	options    []string
	params     []string
	dryOnly    bool
	explain    bool
	buildOnly  bool
	watch      bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kingpin",
		Short: "Kingpin — deployment-automation engine",
		Long: `Kingpin runs a declarative tree of actors: instantiate, validate,
rehearse (dry pass), then execute (real pass), with bounded-concurrency
groups, macro indirection, and token-driven parameterization.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage: true,
		RunE:         runRoot,
	}

	rootCmd.Flags().StringVar(&scriptPath, "script", "", "run the document at PATH")
	rootCmd.Flags().StringVar(&actorID, "actor", "", "run (or --explain) a single ad-hoc actor by identifier")
	rootCmd.Flags().StringArrayVar(&options, "option", nil, "K=V entry for the ad-hoc actor's options (repeatable)")
	rootCmd.Flags().StringArrayVar(&params, "param", nil, "K=V entry for the ad-hoc actor's top-level node keys (repeatable)")
	rootCmd.Flags().BoolVar(&dryOnly, "dry", false, "run only the rehearsal pass")
	rootCmd.Flags().BoolVar(&explain, "explain", false, "print the documentation for --actor and exit")
	rootCmd.Flags().BoolVar(&buildOnly, "build-only", false, "construct the tree and exit (0 on success)")
	rootCmd.Flags().BoolVar(&watch, "watch", false, "re-run the pipeline when --script changes on disk (macro sub-documents are not watched)")

	return rootCmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := kingpinconfig.FromEnviron()
	if err != nil {
		return err
	}

	telCfg := telemetry.DevelopmentConfig()
	telCfg.Logging.Level = cfg.LogLevel
	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return fmt.Errorf("starting telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	r, err := runner.New(cfg, tel, tel.Logger.Zerolog())
	if err != nil {
		return err
	}

	if explain {
		return runExplain(r)
	}

	node, tokens, err := resolveNode(r)
	if err != nil {
		return err
	}

	opts := runner.Options{DryOnly: dryOnly, BuildOnly: buildOnly}
	if err := r.Execute(ctx, node, tokens, opts); err != nil {
		return err
	}

	if watch {
		return watchAndRerun(ctx, r, tokens, opts)
	}
	return nil
}

func runExplain(r *runner.Runner) error {
	if actorID == "" {
		return fmt.Errorf("--explain requires --actor ID")
	}
	schema, ok := r.Explain(actorID)
	if !ok {
		return fmt.Errorf("%q has no declared documentation", actorID)
	}
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		field := schema[name]
		fmt.Printf("%s (%s): %s\n", name, field.Kind, field.Doc)
	}
	return nil
}

// resolveNode builds the single actor node Execute runs, from either
// --script or --actor, and the token values substituted into it.
func resolveNode(r *runner.Runner) (map[string]interface{}, token.Values, error) {
	tokens := token.FromEnviron(os.Environ())

	switch {
	case scriptPath != "" && actorID != "":
		return nil, nil, fmt.Errorf("--script and --actor are mutually exclusive")
	case scriptPath != "":
		node, err := r.LoadScript(scriptPath, tokens)
		return node, tokens, err
	case actorID != "":
		opts, err := parseKeyValues(options)
		if err != nil {
			return nil, nil, fmt.Errorf("--option: %w", err)
		}
		prms, err := parseKeyValues(params)
		if err != nil {
			return nil, nil, fmt.Errorf("--param: %w", err)
		}
		return runner.AdHocNode(actorID, opts, prms), tokens, nil
	default:
		return nil, nil, fmt.Errorf("one of --script or --actor is required")
	}
}

// parseKeyValues turns a repeated "K=V" flag into a mapping. Each value is
// parsed as JSON when it looks like one (so --option count=3 or
// --option enabled=true bind a number/bool rather than a string); anything
// that doesn't parse as JSON is kept as the literal string.
func parseKeyValues(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		k, v, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("expected K=V, got %q", pair)
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out, nil
}

// watchAndRerun implements D7: re-run the pipeline whenever the watched
// script changes, until ctx is cancelled. Grounded on pkg/policy/loader.go's
// fsnotify-driven reload loop.
func watchAndRerun(ctx context.Context, r *runner.Runner, tokens token.Values, opts runner.Options) error {
	if scriptPath == "" {
		return fmt.Errorf("--watch requires --script")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(scriptPath); err != nil {
		return fmt.Errorf("watching %q: %w", scriptPath, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			node, err := r.LoadScript(scriptPath, tokens)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload %q: %v\n", scriptPath, err)
				continue
			}
			if err := r.Execute(ctx, node, tokens, opts); err != nil {
				fmt.Fprintf(os.Stderr, "run %q: %v\n", scriptPath, err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}
