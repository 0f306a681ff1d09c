package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/router-for-me/LLMConfigService/internal/db"
	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/proxy"
	"github.com/router-for-me/LLMConfigService/internal/registry"
	"github.com/router-for-me/LLMConfigService/internal/store"
	"gorm.io/gorm"
)

type recordingSyncer struct {
	calls   int
	configs []models.Config
	global  models.GlobalProxy
	err     error
}

func (r *recordingSyncer) Sync(ctx context.Context, load func(context.Context) ([]models.Config, models.GlobalProxy, error)) error {
	configs, global, errLoad := load(ctx)
	if errLoad != nil {
		return errLoad
	}
	r.calls++
	r.configs = configs
	r.global = global
	return r.err
}

func newTestService(t *testing.T, syncer Syncer) (*Service, *gorm.DB) {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "service-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	st := store.NewGormStore(conn)
	return New(st, registry.New(st, nil, nil), proxy.NewResolver(st), syncer), conn
}

func TestService_ProxyPrecedenceScenarios(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	cfg, err := svc.CreateConfig(ctx, registry.CreateInput{
		ProviderID: "openai",
		Name:       "primary",
		ModelID:    "gpt-4o",
		Proxy:      &models.ProxyConfig{Enabled: true, Protocol: "socks5", Host: "10.0.0.1", Port: 1080, Retries: 3},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if errGlobal := svc.SetGlobalProxy(ctx, models.ProxyConfig{Enabled: true, Host: "global.local", Port: 8080, Retries: 3}); errGlobal != nil {
		t.Fatalf("set global: %v", errGlobal)
	}

	effective, err := svc.GetConfigProxy(ctx, cfg.ID)
	if err != nil {
		t.Fatalf("get config proxy: %v", err)
	}
	if effective.Source != proxy.SourcePerConfig || effective.URL() != "socks5://10.0.0.1:1080" {
		t.Fatalf("scenario 1: unexpected %+v", effective)
	}

	if errSet := svc.SetConfigProxy(ctx, cfg.ID, &models.ProxyConfig{Enabled: false, Protocol: "socks5", Host: "10.0.0.1", Port: 1080, Retries: 3}); errSet != nil {
		t.Fatalf("disable config proxy: %v", errSet)
	}
	effective, _ = svc.GetConfigProxy(ctx, cfg.ID)
	if effective.Source != proxy.SourceGlobal || effective.URL() != "http://global.local:8080" {
		t.Fatalf("scenario 2: unexpected %+v", effective)
	}

	if errSet := svc.SetConfigProxy(ctx, cfg.ID, nil); errSet != nil {
		t.Fatalf("detach config proxy: %v", errSet)
	}
	if errGlobal := svc.SetGlobalProxy(ctx, models.ProxyConfig{Enabled: false, Host: "global.local", Port: 8080, Retries: 3}); errGlobal != nil {
		t.Fatalf("disable global: %v", errGlobal)
	}
	effective, _ = svc.GetConfigProxy(ctx, cfg.ID)
	if effective.Source != proxy.SourceNone || effective.Proxy != nil {
		t.Fatalf("scenario 3: unexpected %+v", effective)
	}
}

func TestService_ErrorCodes(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.CreateConfig(ctx, registry.CreateInput{ProviderID: "openai", Name: ""}); CodeOf(err) != CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
	if err := svc.SetGlobalProxy(ctx, models.ProxyConfig{Protocol: "gopher", Host: "h", Port: 1}); CodeOf(err) != CodeValidation {
		t.Fatalf("expected validation code for bad protocol, got %v", err)
	}
	if err := svc.SetGlobalProxy(ctx, models.ProxyConfig{Host: "h", Port: 0}); CodeOf(err) != CodeValidation {
		t.Fatalf("expected validation code for bad port, got %v", err)
	} else {
		var svcErr *Error
		errors.As(err, &svcErr)
		if svcErr.Message != "port must be between 1 and 65535" {
			t.Fatalf("unexpected message %q", svcErr.Message)
		}
	}

	name := "x"
	notFound := []error{
		func() error { _, err := svc.UpdateConfig(ctx, "nope", registry.Patch{Name: &name}); return err }(),
		svc.DeleteConfig(ctx, "nope"),
		svc.SetDefaultConfig(ctx, "nope"),
		func() error { _, err := svc.GetConfigProxy(ctx, "nope"); return err }(),
		svc.SetConfigProxy(ctx, "nope", nil),
	}
	for i, err := range notFound {
		if CodeOf(err) != CodeNotFound {
			t.Fatalf("case %d: expected not_found, got %v", i, err)
		}
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("case %d: expected wrapped ErrNotFound, got %v", i, err)
		}
	}

	global, err := svc.GetGlobalProxy(ctx)
	if err != nil {
		t.Fatalf("get global: %v", err)
	}
	if global.Enabled || global.Host != "127.0.0.1" {
		t.Fatalf("expected failed writes to leave global proxy untouched, got %+v", global)
	}
}

func TestService_StoreFailureCode(t *testing.T) {
	svc, conn := newTestService(t, nil)
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	_ = sqlDB.Close()

	if _, errList := svc.GetConfigs(context.Background(), "", ""); CodeOf(errList) != CodeStore {
		t.Fatalf("expected store_error, got %v", errList)
	}
	if _, errCreate := svc.CreateConfig(context.Background(), registry.CreateInput{ProviderID: "openai", Name: "a"}); CodeOf(errCreate) != CodeStore {
		t.Fatalf("expected store_error on create, got %v", errCreate)
	}
}

func TestService_SyncAfterMutations(t *testing.T) {
	syncer := &recordingSyncer{err: errors.New("disk full")}
	svc, _ := newTestService(t, syncer)
	ctx := context.Background()

	a, err := svc.CreateConfig(ctx, registry.CreateInput{ProviderID: "gemini", Name: "a"})
	if err != nil {
		t.Fatalf("create should succeed despite sync failure: %v", err)
	}
	b, _ := svc.CreateConfig(ctx, registry.CreateInput{ProviderID: "gemini", Name: "b"})
	if errSet := svc.SetDefaultConfig(ctx, b.ID); errSet != nil {
		t.Fatalf("set default: %v", errSet)
	}
	if errDelete := svc.DeleteConfig(ctx, a.ID); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}

	if syncer.calls != 4 {
		t.Fatalf("expected 4 sync calls, got %d", syncer.calls)
	}
	if len(syncer.configs) != 1 || syncer.configs[0].ID != b.ID || !syncer.configs[0].IsDefault {
		t.Fatalf("unexpected synced configs: %+v", syncer.configs)
	}

	if _, errCreate := svc.CreateConfig(ctx, registry.CreateInput{ProviderID: "nope", Name: "c"}); errCreate == nil {
		t.Fatalf("expected validation failure")
	}
	if syncer.calls != 4 {
		t.Fatalf("expected failed mutation not to sync, got %d calls", syncer.calls)
	}
}

func TestService_GetConfigsFilters(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, in := range []registry.CreateInput{
		{ProviderID: "openai", Name: "one"},
		{ProviderID: "anthropic", Name: "two"},
		{ProviderID: "openai", Name: "three"},
	} {
		if _, err := svc.CreateConfig(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	all, _ := svc.GetConfigs(ctx, "", "")
	if len(all) != 3 || all[0].Name != "one" || all[2].Name != "three" {
		t.Fatalf("unexpected list: %+v", all)
	}
	openai, _ := svc.GetConfigs(ctx, "openai", "")
	if len(openai) != 2 {
		t.Fatalf("expected 2 openai configs, got %d", len(openai))
	}
	if _, err := svc.GetConfigs(ctx, "bogus", ""); CodeOf(err) != CodeValidation {
		t.Fatalf("expected validation for unknown provider filter, got %v", err)
	}
	def, err := svc.GetDefaultConfig(ctx, "openai")
	if err != nil || def.Name != "one" {
		t.Fatalf("expected default one, got %+v err=%v", def, err)
	}
}
