package proxy

import (
	"context"
	"errors"
	"testing"

	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/store"
)

type fakeReader struct {
	configs map[string]models.Config
	global  models.GlobalProxy
	reads   int
}

func (f *fakeReader) GetConfig(_ context.Context, id string) (models.Config, error) {
	cfg, ok := f.configs[id]
	if !ok {
		return models.Config{}, store.ErrNotFound
	}
	return cfg, nil
}

func (f *fakeReader) GetGlobalProxy(_ context.Context) (models.GlobalProxy, error) {
	f.reads++
	return f.global, nil
}

func configWithProxy(t *testing.T, id string, p *models.ProxyConfig) models.Config {
	t.Helper()
	cfg := models.Config{ID: id, ProviderID: "openai", Name: id}
	if errEncode := cfg.EncodeProxy(p); errEncode != nil {
		t.Fatalf("encode proxy: %v", errEncode)
	}
	return cfg
}

func globalRow(enabled bool) models.GlobalProxy {
	return models.GlobalProxy{ID: 1, Enabled: enabled, Protocol: "http", Host: "global.local", Port: 8080, TimeoutMs: 30000, Retries: 3}
}

func TestResolve_PerConfigShadowsGlobal(t *testing.T) {
	reader := &fakeReader{
		configs: map[string]models.Config{
			"c1": configWithProxy(t, "c1", &models.ProxyConfig{Enabled: true, Protocol: "socks5", Host: "10.0.0.1", Port: 1080, Timeout: 30000, Retries: 3}),
		},
		global: globalRow(true),
	}
	got, err := NewResolver(reader).Resolve(context.Background(), "c1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Source != SourcePerConfig {
		t.Fatalf("expected per-config source, got %q", got.Source)
	}
	if got.Proxy == nil || got.Proxy.Protocol != "socks5" || got.Proxy.Host != "10.0.0.1" || got.Proxy.Port != 1080 {
		t.Fatalf("unexpected proxy: %+v", got.Proxy)
	}
	if got.URL() != "socks5://10.0.0.1:1080" {
		t.Fatalf("unexpected url %q", got.URL())
	}
	if reader.reads != 0 {
		t.Fatalf("expected global proxy not to be read, got %d reads", reader.reads)
	}
}

func TestResolve_DisabledPerConfigFallsBackToGlobal(t *testing.T) {
	reader := &fakeReader{
		configs: map[string]models.Config{
			"c1": configWithProxy(t, "c1", &models.ProxyConfig{Enabled: false, Protocol: "socks5", Host: "10.0.0.1", Port: 1080, Timeout: 30000, Retries: 3}),
		},
		global: globalRow(true),
	}
	got, err := NewResolver(reader).Resolve(context.Background(), "c1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Source != SourceGlobal {
		t.Fatalf("expected global source, got %q", got.Source)
	}
	if got.Proxy == nil || got.Proxy.Host != "global.local" || got.Proxy.Port != 8080 {
		t.Fatalf("unexpected proxy: %+v", got.Proxy)
	}
	if got.URL() != "http://global.local:8080" {
		t.Fatalf("unexpected url %q", got.URL())
	}
}

func TestResolve_NoProxyWhenGlobalDisabled(t *testing.T) {
	reader := &fakeReader{
		configs: map[string]models.Config{"c1": configWithProxy(t, "c1", nil)},
		global:  globalRow(false),
	}
	got, err := NewResolver(reader).Resolve(context.Background(), "c1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Source != SourceNone || got.Proxy != nil || got.URL() != "" {
		t.Fatalf("expected no proxy, got %+v", got)
	}
}

func TestResolve_UnknownConfig(t *testing.T) {
	reader := &fakeReader{configs: map[string]models.Config{}, global: globalRow(true)}
	if _, err := NewResolver(reader).Resolve(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNormalizeAndValidate(t *testing.T) {
	p := Normalize(models.ProxyConfig{Enabled: true, Protocol: " SOCKS5 ", Host: " proxy.local ", Port: 1080, Retries: 3, Auth: &models.ProxyAuth{}})
	if p.Protocol != "socks5" || p.Host != "proxy.local" || p.Timeout != 30000 || p.Auth != nil {
		t.Fatalf("unexpected normalized proxy: %+v", p)
	}
	if err := Validate(p); err != nil {
		t.Fatalf("expected valid proxy, got %v", err)
	}

	defaulted := Normalize(models.ProxyConfig{Host: "h", Port: 80})
	if defaulted.Protocol != "http" {
		t.Fatalf("expected http default protocol, got %q", defaulted.Protocol)
	}

	bad := []models.ProxyConfig{
		{Protocol: "ftp", Host: "h", Port: 80, Timeout: 30000},
		{Protocol: "http", Host: "", Port: 80, Timeout: 30000},
		{Protocol: "http", Host: "http://h", Port: 80, Timeout: 30000},
		{Protocol: "http", Host: "h", Port: 0, Timeout: 30000},
		{Protocol: "http", Host: "h", Port: 65536, Timeout: 30000},
		{Protocol: "http", Host: "h", Port: 80, Timeout: 999},
		{Protocol: "http", Host: "h", Port: 80, Timeout: 120001},
		{Protocol: "http", Host: "h", Port: 80, Timeout: 30000, Retries: 11},
		{Protocol: "http", Host: "h", Port: 80, Timeout: 30000, Retries: -1},
		{Protocol: "http", Host: "h", Port: 80, Timeout: 30000, Auth: &models.ProxyAuth{Password: "p"}},
	}
	for i, candidate := range bad {
		if err := Validate(candidate); !errors.Is(err, ErrInvalidProxy) {
			t.Fatalf("case %d: expected ErrInvalidProxy, got %v", i, err)
		}
	}
}

func TestURLEscapesCredentials(t *testing.T) {
	got := URL(&models.ProxyConfig{Protocol: "http", Host: "::1", Port: 3128, Auth: &models.ProxyAuth{Username: "me", Password: "p@ss:word"}})
	if got != "http://me:p%40ss%3Aword@[::1]:3128" {
		t.Fatalf("unexpected url %q", got)
	}
}
