package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nextdoor/kingpin/pkg/kperrors"
	"github.com/nextdoor/kingpin/pkg/token"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestLoadParsesAndValidatesNode(t *testing.T) {
	path := writeTemp(t, "script.yaml", `
actor: misc.Sleep
desc: "sleep for %SECONDS%s"
options:
  sleep: 1
`)
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	node, err := l.Load(path, token.Values{"SECONDS": "5"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if node["actor"] != "misc.Sleep" {
		t.Errorf("got actor %v", node["actor"])
	}
	if node["desc"] != "sleep for 5s" {
		t.Errorf("got desc %v", node["desc"])
	}
}

func TestLoadWrapsBareArrayInSyncGroup(t *testing.T) {
	path := writeTemp(t, "script.yaml", `
- actor: misc.Note
  options: {message: "hi"}
- actor: misc.Note
  options: {message: "bye"}
`)
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	node, err := l.Load(path, token.Values{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if node["actor"] != "group.Sync" {
		t.Fatalf("expected implicit group.Sync wrapper, got %v", node["actor"])
	}
	acts, _ := node["options"].(map[string]interface{})["acts"].([]interface{})
	if len(acts) != 2 {
		t.Fatalf("expected 2 wrapped acts, got %d", len(acts))
	}
}

func TestLoadRejectsUnknownSchemaField(t *testing.T) {
	path := writeTemp(t, "script.yaml", `
actor: misc.Note
bogus_field: true
`)
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := l.Load(path, token.Values{}); err == nil {
		t.Fatal("expected schema validation error for unknown top-level field")
	}
}

func TestLoadMissingTokenIsFatal(t *testing.T) {
	path := writeTemp(t, "script.yaml", `
actor: misc.Note
desc: "hi %WHO%"
`)
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = l.Load(path, token.Values{})
	if !kperrors.IsFatal(err) {
		t.Fatalf("expected fatal missing-token error, got %v", err)
	}
}

func TestFtpSchemeRejected(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = l.Load("ftp://example.com/script.yaml", token.Values{})
	if !kperrors.IsFatal(err) {
		t.Fatalf("expected fatal error for ftp:// scheme, got %v", err)
	}
}

func TestLoadContexts(t *testing.T) {
	path := writeTemp(t, "contexts.yaml", `
- R: x
- R: y
`)
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	blocks, err := l.LoadContexts(path, token.Values{})
	if err != nil {
		t.Fatalf("LoadContexts: %v", err)
	}
	if len(blocks) != 2 || blocks[0]["R"] != "x" || blocks[1]["R"] != "y" {
		t.Fatalf("got %v", blocks)
	}
}
