package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nextdoor/kingpin/pkg/kingpinconfig"
	"github.com/nextdoor/kingpin/pkg/token"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := New(kingpinconfig.Default(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func writeScript(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestExecuteRunsScriptRealPass(t *testing.T) {
	r := newTestRunner(t)
	path := filepath.Join(t.TempDir(), "greeting.txt")
	script := writeScript(t, `
actor: file.Content
options:
  path: "`+path+`"
  content: "hello from the real pass"
`)
	node, err := r.LoadScript(script, token.Values{})
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if err := r.Execute(context.Background(), node, token.Values{}, Options{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if string(data) != "hello from the real pass" {
		t.Fatalf("got content %q", data)
	}
}

func TestExecuteDryOnlyDoesNotTouchDisk(t *testing.T) {
	r := newTestRunner(t)
	path := filepath.Join(t.TempDir(), "greeting.txt")
	script := writeScript(t, `
actor: file.Content
options:
  path: "`+path+`"
  content: "hello"
`)
	node, err := r.LoadScript(script, token.Values{})
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if err := r.Execute(context.Background(), node, token.Values{}, Options{DryOnly: true}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("dry-only run must not touch disk")
	}
}

func TestExecuteBuildOnlyStopsBeforeAnyPass(t *testing.T) {
	r := newTestRunner(t)
	path := filepath.Join(t.TempDir(), "greeting.txt")
	script := writeScript(t, `
actor: file.Content
options:
  path: "`+path+`"
  content: "hello"
`)
	node, err := r.LoadScript(script, token.Values{})
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if err := r.Execute(context.Background(), node, token.Values{}, Options{BuildOnly: true}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("build-only run must not touch disk")
	}
}

func TestExecuteConstructionErrorIsReported(t *testing.T) {
	r := newTestRunner(t)
	script := writeScript(t, `
actor: misc.NoSuchActor
options: {}
`)
	node, err := r.LoadScript(script, token.Values{})
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if err := r.Execute(context.Background(), node, token.Values{}, Options{}); err == nil {
		t.Fatal("expected a construction error for an unknown actor")
	}
}

func TestExecuteAdHocActorWithOptionsAndParams(t *testing.T) {
	r := newTestRunner(t)
	node := AdHocNode("misc.Note", map[string]interface{}{"message": "hi"}, map[string]interface{}{"desc": "say hi"})
	if err := r.Execute(context.Background(), node, token.Values{}, Options{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestExecuteSkipDrySkipsRehearsalButNotReal(t *testing.T) {
	r := newTestRunner(t)
	path := filepath.Join(t.TempDir(), "greeting.txt")
	script := writeScript(t, `
actor: file.Content
options:
  path: "`+path+`"
  content: "hello"
`)
	node, err := r.LoadScript(script, token.Values{})
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if err := r.Execute(context.Background(), node, token.Values{}, Options{SkipDry: true}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.ReadFile(path); err != nil {
		t.Fatalf("expected the real pass to have run: %v", err)
	}
}

func TestExplainReturnsDeclaredSchema(t *testing.T) {
	r := newTestRunner(t)
	schema, ok := r.Explain("file.Content")
	if !ok {
		t.Fatal("expected file.Content to be documented")
	}
	if _, ok := schema["path"]; !ok {
		t.Fatal("expected a 'path' option in file.Content's schema")
	}
}
