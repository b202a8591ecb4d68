package seed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queries.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeSeed(t, `---
- Roads:
    - keyword: асфальт
    - keyword: ремонт дорог
      active: false
- Medical:
    - keyword: томограф
`)

	file, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(file) != 2 {
		t.Fatalf("groups = %d, want 2", len(file))
	}
	roads := file[0]["Roads"]
	if len(roads) != 2 {
		t.Fatalf("Roads entries = %d, want 2", len(roads))
	}
	if roads[1].Active == nil || *roads[1].Active {
		t.Errorf("second Roads entry active = %v, want false", roads[1].Active)
	}
}

func TestLoaderLoadWithTemplateVariables(t *testing.T) {
	t.Setenv("TENDERS_SEED_EXTRA", `mri "3T"`)

	path := writeSeed(t, `---
- Medical:
    - keyword: {{TENDERS_SEED_EXTRA}}
    - keyword: {{ TENDERS_SEED_UNSET_VARIABLE }}
`)

	file, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	entries := file[0]["Medical"]
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Keyword != `mri "3T"` {
		t.Errorf("expanded keyword = %q", entries[0].Keyword)
	}
	if entries[1].Keyword != "" {
		t.Errorf("unset variable keyword = %q, want empty", entries[1].Keyword)
	}
}

func TestLoaderErrors(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load(); err == nil {
		t.Error("Load() on a missing file returned nil error")
	}

	path := writeSeed(t, "- Roads: [keyword: : :\n")
	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("Load() on invalid yaml returned nil error")
	}
}
