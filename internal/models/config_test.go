package models

import "testing"

func TestConfigProxyRoundTrip(t *testing.T) {
	var cfg Config
	proxy, errDecode := cfg.DecodeProxy()
	if errDecode != nil || proxy != nil {
		t.Fatalf("expected no proxy on empty config, got %+v err=%v", proxy, errDecode)
	}

	in := &ProxyConfig{
		Enabled:  true,
		Protocol: "socks5",
		Host:     "10.0.0.1",
		Port:     1080,
		Auth:     &ProxyAuth{Username: "u", Password: "p"},
		Timeout:  5000,
		Retries:  0,
	}
	if errEncode := cfg.EncodeProxy(in); errEncode != nil {
		t.Fatalf("encode: %v", errEncode)
	}
	out, errDecode := cfg.DecodeProxy()
	if errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if out == nil || out.Host != "10.0.0.1" || out.Port != 1080 || out.Auth == nil || out.Auth.Password != "p" {
		t.Fatalf("unexpected decoded proxy: %+v", out)
	}

	if errEncode := cfg.EncodeProxy(nil); errEncode != nil {
		t.Fatalf("encode nil: %v", errEncode)
	}
	if cfg.Proxy != nil {
		t.Fatalf("expected proxy column cleared")
	}
}

func TestGlobalProxyConversion(t *testing.T) {
	var row GlobalProxy
	row.ApplyProxyConfig(ProxyConfig{Enabled: true, Protocol: "http", Host: "global.local", Port: 8080, Timeout: 30000, Retries: 3})
	if row.Username != "" || row.Password != "" {
		t.Fatalf("expected empty credentials, got %q/%q", row.Username, row.Password)
	}
	got := row.ProxyConfig()
	if got.Auth != nil {
		t.Fatalf("expected nil auth, got %+v", got.Auth)
	}
	if !got.Enabled || got.Host != "global.local" || got.Port != 8080 {
		t.Fatalf("unexpected proxy config: %+v", got)
	}
}
