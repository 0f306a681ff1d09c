package registry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/router-for-me/LLMConfigService/internal/db"
	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.GormStore) {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "registry-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	st := store.NewGormStore(conn)
	return New(st, nil, nil), st
}

func mustCreate(t *testing.T, r *Registry, providerID, name string) models.Config {
	t.Helper()
	cfg, err := r.Create(context.Background(), CreateInput{ProviderID: providerID, Name: name, ModelID: "model-" + name})
	if err != nil {
		t.Fatalf("create %s/%s: %v", providerID, name, err)
	}
	return cfg
}

func countDefaults(t *testing.T, r *Registry, providerID string) int {
	t.Helper()
	rows, err := r.List(context.Background(), providerID, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	n := 0
	for _, row := range rows {
		if row.IsDefault {
			n++
		}
	}
	return n
}

func TestCreate_BootstrapsFirstDefaultPerProvider(t *testing.T) {
	r, _ := newTestRegistry(t)

	first := mustCreate(t, r, "openai", "a")
	second := mustCreate(t, r, "openai", "b")
	other := mustCreate(t, r, "claude", "c")

	if !first.IsDefault {
		t.Fatalf("expected first openai config to be default")
	}
	if second.IsDefault {
		t.Fatalf("expected second openai config not to be default")
	}
	if !other.IsDefault || other.ProviderID != "anthropic" {
		t.Fatalf("expected first anthropic config to be default, got %+v", other)
	}
	if first.ID == second.ID || first.ID == "" {
		t.Fatalf("expected unique ids, got %q and %q", first.ID, second.ID)
	}
	if first.ModelName != "model-a" {
		t.Fatalf("expected model name to default to model id, got %q", first.ModelName)
	}
}

func TestCreate_Validation(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()

	cases := []CreateInput{
		{ProviderID: "openai", Name: "   "},
		{ProviderID: "unknown", Name: "x"},
		{ProviderID: "", Name: "x"},
		{ProviderID: "openai", Name: "x", Proxy: &models.ProxyConfig{Enabled: true, Protocol: "ftp", Host: "h", Port: 1}},
		{ProviderID: "openai", Name: "x", Proxy: &models.ProxyConfig{Enabled: true, Host: "h", Port: 70000}},
	}
	for i, in := range cases {
		if _, err := r.Create(ctx, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
	rows, _ := st.ListConfigs(ctx, store.ListFilter{})
	if len(rows) != 0 {
		t.Fatalf("expected no configs stored, got %d", len(rows))
	}
}

func TestSetDefault_SwitchesExclusively(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	a := mustCreate(t, r, "gemini", "a")
	b := mustCreate(t, r, "gemini", "b")
	other := mustCreate(t, r, "openai", "o")

	if _, err := r.SetDefault(ctx, b.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}
	gotA, _ := r.Get(ctx, a.ID)
	gotB, _ := r.Get(ctx, b.ID)
	gotOther, _ := r.Get(ctx, other.ID)
	if gotA.IsDefault || !gotB.IsDefault {
		t.Fatalf("expected b default only, a=%v b=%v", gotA.IsDefault, gotB.IsDefault)
	}
	if !gotOther.IsDefault {
		t.Fatalf("expected other provider untouched")
	}

	def, errDefault := r.DefaultFor(ctx, "google")
	if errDefault != nil || def.ID != b.ID {
		t.Fatalf("expected default b, got %+v err=%v", def, errDefault)
	}
}

func TestSetDefault_ConcurrentCallsKeepSingleDefault(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	ids := make([]string, 0, 6)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		ids = append(ids, mustCreate(t, r, "ollama", name).ID)
	}

	var wg sync.WaitGroup
	for round := 0; round < 3; round++ {
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := r.SetDefault(ctx, id); err != nil {
					t.Errorf("set default %s: %v", id, err)
				}
			}(id)
		}
	}
	wg.Wait()

	if n := countDefaults(t, r, "ollama"); n != 1 {
		t.Fatalf("expected exactly one default, got %d", n)
	}
}

func TestDelete_DoesNotPromote(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	a := mustCreate(t, r, "anthropic", "a")
	mustCreate(t, r, "anthropic", "b")

	if err := r.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := countDefaults(t, r, "anthropic"); n != 0 {
		t.Fatalf("expected no default after deleting the default, got %d", n)
	}
	if _, err := r.DefaultFor(ctx, "anthropic"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing default, got %v", err)
	}

	c := mustCreate(t, r, "anthropic", "c")
	if c.IsDefault {
		t.Fatalf("expected no bootstrap default while other configs exist")
	}
}

func TestUpdate_ProviderImmutable(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	cfg := mustCreate(t, r, "openai", "a")

	other := "anthropic"
	if _, err := r.Update(ctx, cfg.ID, Patch{ProviderID: &other}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	got, _ := r.Get(ctx, cfg.ID)
	if got.ProviderID != "openai" {
		t.Fatalf("expected provider unchanged, got %q", got.ProviderID)
	}

	same := "OpenAI"
	name := "renamed"
	updated, err := r.Update(ctx, cfg.ID, Patch{ProviderID: &same, Name: &name})
	if err != nil {
		t.Fatalf("expected same provider to be accepted, got %v", err)
	}
	if updated.Name != "renamed" || updated.ModelID != cfg.ModelID {
		t.Fatalf("expected merge of provided fields only, got %+v", updated)
	}
	if updated.UpdatedAt.Before(cfg.UpdatedAt) {
		t.Fatalf("expected updatedAt to be non-decreasing")
	}
}

func TestUpdate_ProxyAttachAndDetach(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	cfg := mustCreate(t, r, "local", "a")

	updated, err := r.SetProxy(ctx, cfg.ID, &models.ProxyConfig{Enabled: true, Protocol: "socks5", Host: "10.0.0.1", Port: 1080, Retries: 3})
	if err != nil {
		t.Fatalf("set proxy: %v", err)
	}
	p, _ := updated.DecodeProxy()
	if p == nil || p.Timeout != 30000 || p.Host != "10.0.0.1" {
		t.Fatalf("expected normalized proxy stored, got %+v", p)
	}

	cleared, err := r.SetProxy(ctx, cfg.ID, nil)
	if err != nil {
		t.Fatalf("clear proxy: %v", err)
	}
	if p, _ := cleared.DecodeProxy(); p != nil {
		t.Fatalf("expected proxy detached, got %+v", p)
	}
}

func TestUnknownID_NotFoundAndStoreUnchanged(t *testing.T) {
	r, st := newTestRegistry(t)
	ctx := context.Background()
	existing := mustCreate(t, r, "deepseek", "a")
	before, _ := st.ListConfigs(ctx, store.ListFilter{})

	name := "x"
	if _, err := r.Update(ctx, "missing", Patch{Name: &name}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if err := r.Delete(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}
	if _, err := r.SetDefault(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("set default: expected ErrNotFound, got %v", err)
	}

	after, _ := st.ListConfigs(ctx, store.ListFilter{})
	if len(after) != len(before) || after[0].ID != existing.ID || !after[0].UpdatedAt.Equal(before[0].UpdatedAt) {
		t.Fatalf("expected store unchanged, before=%+v after=%+v", before, after)
	}
}

func TestNowIsMonotonicPerRecord(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	cfg := mustCreate(t, r, "azure", "a")

	r.nowFn = func() time.Time { return cfg.UpdatedAt.Add(-time.Hour) }
	name := "b"
	updated, err := r.Update(ctx, cfg.ID, Patch{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UpdatedAt.Before(cfg.UpdatedAt) {
		t.Fatalf("expected updatedAt not to move backwards")
	}
}

func TestDefaultForRejectsMissingOrUnknownProvider(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	mustCreate(t, r, "anthropic", "only")

	for _, providerID := range []string{"", "   ", "bogus"} {
		row, err := r.DefaultFor(ctx, providerID)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("provider %q: expected validation error, got row=%+v err=%v", providerID, row, err)
		}
	}
	if _, err := r.DefaultFor(ctx, "Claude"); err != nil {
		t.Fatalf("expected alias lookup to succeed, got %v", err)
	}
}
