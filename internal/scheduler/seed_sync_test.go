package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/store/memory"
)

func TestSeedSyncCreatesMissingOnly(t *testing.T) {
	st := memory.New(clock.NewFake(testEpoch))
	ctx := context.Background()

	existing := createQuery(t, st, "Асфальт", false)

	path := filepath.Join(t.TempDir(), "queries.yaml")
	content := `---
- Roads:
    - keyword: асфальт
    - keyword: ремонт дорог
- Medical:
    - keyword: томограф
      active: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	syncer := NewSeedSyncer(path, st, nil)

	created, err := syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	got, err := st.GetQuery(ctx, existing.ID)
	if err != nil {
		t.Fatalf("GetQuery() error = %v", err)
	}
	if got.Keyword != "Асфальт" || got.Active || got.Category != nil {
		t.Errorf("existing query was modified: %+v", got)
	}

	all, err := st.ListQueries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	byKeyword := make(map[string]*domain.SavedQuery)
	for _, q := range all {
		byKeyword[q.Keyword] = q
	}
	if q := byKeyword["томограф"]; q == nil || q.Active || q.Category == nil || *q.Category != "Medical" {
		t.Errorf("seeded query = %+v", q)
	}

	again, err := syncer.Sync(ctx)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if again != 0 {
		t.Errorf("second sync created %d, want 0", again)
	}
}

func TestSeedSyncMissingFile(t *testing.T) {
	st := memory.New(clock.NewFake(testEpoch))
	syncer := NewSeedSyncer(filepath.Join(t.TempDir(), "missing.yaml"), st, nil)

	if _, err := syncer.Sync(context.Background()); err == nil {
		t.Error("Sync() with a missing file returned nil error")
	}
}
