// Package file implements file.Content, a minimal ensure-state actor that
// manages a single file's existence, contents, and permission mode on the
// local filesystem. It exists as a concrete, runnable instance of
// pkg/ensure's reconciliation mixin — the spec's equivalent of
// actors/aws/s3.py's Bucket, scoped down to something exercisable without
// any cloud credentials.
package file

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/actor"
	"github.com/nextdoor/kingpin/pkg/ensure"
	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/optschema"
	"github.com/nextdoor/kingpin/pkg/registry"
	"github.com/nextdoor/kingpin/pkg/token"
)

const defaultMode = 0o644

// Module registers file.Content into a Registry.
type Module struct {
	Inst           actor.Instrumentation
	Logger         zerolog.Logger
	DefaultTimeout time.Duration
}

func NewModule(inst actor.Instrumentation, logger zerolog.Logger, defaultTimeout time.Duration) Module {
	return Module{Inst: inst, Logger: logger, DefaultTimeout: defaultTimeout}
}

func (m Module) Register(r *registry.Registry) {
	r.Register("file.Content", m.build)
}

// Docs satisfies the registry's optional Documented interface, for --explain.
func (m Module) Docs() map[string]optschema.Schema {
	return map[string]optschema.Schema{"file.Content": contentSchema}
}

var contentSchema = optschema.Schema{
	"state":   ensure.StateField(),
	"path":    {Kind: optschema.KindString, Default: optschema.Required, Doc: "Path of the file to manage."},
	"content": {Kind: optschema.KindString, Default: ensure.Undefined, Doc: "Desired file contents, or \"undefined\" to leave unmanaged."},
	"mode":    {Kind: optschema.KindString, Default: ensure.Undefined, Doc: "Desired octal file mode (e.g. \"0644\"), or \"undefined\" to leave unmanaged."},
}

func (m Module) build(node map[string]interface{}, ctx token.Values, dry bool) (actor.Actor, error) {
	spec, err := actor.ParseNode(node)
	if err != nil {
		return nil, err
	}
	base, err := actor.NewBase(actor.Config{
		ActorType:   "file.Content",
		Spec:        spec,
		Context:     ctx,
		Schema:         contentSchema,
		DefaultDesc:    "File {path}",
		DefaultTimeout: m.DefaultTimeout,
		Dry:            dry,
		Logger:         m.Logger,
	})
	if err != nil {
		return nil, err
	}

	path, _ := base.Options["path"].(string)

	r := &ensure.Reconciler{
		Base: base,
		State: ensure.StateOps{
			Get: func(ctx context.Context) (string, error) {
				if _, err := os.Stat(path); err != nil {
					if os.IsNotExist(err) {
						return ensure.StateAbsent, nil
					}
					return "", kperrors.Wrap(kperrors.Recoverable, kperrors.CodeBadRequest, fmt.Sprintf("stat %q", path), err)
				}
				return ensure.StatePresent, nil
			},
			Create: func(ctx context.Context) error {
				if err := os.WriteFile(path, []byte{}, defaultMode); err != nil {
					return kperrors.Wrap(kperrors.Recoverable, kperrors.CodeBadRequest, fmt.Sprintf("creating %q", path), err)
				}
				return nil
			},
			Delete: func(ctx context.Context) error {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return kperrors.Wrap(kperrors.Recoverable, kperrors.CodeBadRequest, fmt.Sprintf("deleting %q", path), err)
				}
				return nil
			},
		},
		Properties: []ensure.Property{
			{
				Name: "content",
				Get: func(ctx context.Context) (interface{}, error) {
					data, err := os.ReadFile(path)
					if err != nil {
						if os.IsNotExist(err) {
							return "", nil
						}
						return nil, kperrors.Wrap(kperrors.Recoverable, kperrors.CodeBadRequest, fmt.Sprintf("reading %q", path), err)
					}
					return string(data), nil
				},
				Set: func(ctx context.Context, want interface{}) error {
					s, _ := want.(string)
					if err := os.WriteFile(path, []byte(s), defaultMode); err != nil {
						return kperrors.Wrap(kperrors.Recoverable, kperrors.CodeBadRequest, fmt.Sprintf("writing %q", path), err)
					}
					return nil
				},
			},
			{
				Name: "mode",
				Get: func(ctx context.Context) (interface{}, error) {
					info, err := os.Stat(path)
					if err != nil {
						if os.IsNotExist(err) {
							return "", nil
						}
						return nil, kperrors.Wrap(kperrors.Recoverable, kperrors.CodeBadRequest, fmt.Sprintf("stat %q", path), err)
					}
					return fmt.Sprintf("0%o", info.Mode().Perm()), nil
				},
				Set: func(ctx context.Context, want interface{}) error {
					s, _ := want.(string)
					mode, err := strconv.ParseUint(s, 8, 32)
					if err != nil {
						return kperrors.Fatalf(kperrors.CodeInvalidOptions, "mode %q is not a valid octal permission", s)
					}
					if err := os.Chmod(path, os.FileMode(mode)); err != nil {
						return kperrors.Wrap(kperrors.Recoverable, kperrors.CodeBadRequest, fmt.Sprintf("chmod %q", path), err)
					}
					return nil
				},
			},
		},
		Desired: base.Options,
	}

	return actor.New(base, r, m.Inst), nil
}
