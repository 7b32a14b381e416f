package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"arbor/internal/check"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[run]
severity = "warning"
tree_walker_threads = 4

[[check]]
name = "IllegalKind"
id = "noLabels"
tokens = ["labeled_statement"]
[check.properties]
kinds = ["labeled_statement", "assert_statement"]
message = "no %s"

[[check]]
name = "OuterTypeNumber"
severity = "error"

[[filter]]
type = "suppressions"
file = "suppressions.yaml"

[[filter]]
type = "suppress"
checks = "IllegalKind"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Run.TabWidth != 8 || cfg.Run.CheckerThreads != 1 || cfg.Run.TreeWalkerThreads != 4 {
		t.Errorf("run section %+v", cfg.Run)
	}
	if got := cfg.Resolve(cfg.Filters[0].File); got != filepath.Join(filepath.Dir(path), "suppressions.yaml") {
		t.Errorf("Resolve = %q", got)
	}

	specs, err := cfg.Specs()
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 2 {
		t.Fatalf("specs %+v", specs)
	}
	if specs[0].Severity != check.SevWarning || specs[0].ID != "noLabels" || len(specs[0].Tokens) != 1 {
		t.Errorf("first spec %+v", specs[0])
	}
	kinds, err := specs[0].Properties.Strings("kinds")
	if err != nil || len(kinds) != 2 {
		t.Errorf("kinds property %v, %v", kinds, err)
	}
	if specs[1].Severity != check.SevError {
		t.Errorf("second spec severity %v", specs[1].Severity)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		is   error
	}{
		{"unknown key", "[run]\nthreads = 2\n", "unknown keys: run.threads", nil},
		{"bad toml", "[run\n", "failed to parse TOML", nil},
		{"zero threads", "[run]\nchecker_threads = 0\n", "checker_threads", ErrInvalidThreads},
		{"negative walker threads", "[run]\ntree_walker_threads = -2\n", "tree_walker_threads", ErrInvalidThreads},
		{"bad severity", "[[check]]\nname = \"X\"\nseverity = \"loud\"\n", "unknown severity", nil},
		{"missing name", "[[check]]\nid = \"x\"\n", "missing name", nil},
		{"unknown filter", "[[filter]]\ntype = \"regex\"\n", "unknown type", nil},
		{"empty suppress", "[[filter]]\ntype = \"suppress\"\n", "no conditions", nil},
		{"tab width", "[run]\ntab_width = 0\n", "tab_width", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, t.TempDir(), tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	path, ok, err := Find(nested)
	if err != nil || !ok || path != filepath.Join(root, FileName) {
		t.Errorf("Find = %q, %v, %v", path, ok, err)
	}
}

func TestAccepts(t *testing.T) {
	cfg := Default()
	if !cfg.Accepts("src/A.java") || cfg.Accepts("README.md") {
		t.Error("extension filter")
	}
	cfg.Run.FileExtensions = nil
	if !cfg.Accepts("README.md") {
		t.Error("empty extension list must accept everything")
	}
}
