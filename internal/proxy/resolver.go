package proxy

import (
	"context"
	"fmt"

	"github.com/router-for-me/LLMConfigService/internal/models"
)

// Source tags where an effective proxy came from.
type Source string

// Effective proxy sources, in precedence order.
const (
	SourcePerConfig Source = "per-config"
	SourceGlobal    Source = "global"
	SourceNone      Source = "none"
)

// EffectiveProxy is the proxy, if any, that applies to a config.
type EffectiveProxy struct {
	Source Source
	Proxy  *models.ProxyConfig // nil when Source is SourceNone.
}

// URL renders the effective proxy URL, or "" for a direct connection.
func (e EffectiveProxy) URL() string {
	return URL(e.Proxy)
}

// Reader is the read-only store surface the resolver needs.
type Reader interface {
	GetConfig(ctx context.Context, id string) (models.Config, error)
	GetGlobalProxy(ctx context.Context) (models.GlobalProxy, error)
}

// Resolver computes effective proxies. It never mutates the store.
type Resolver struct {
	store Reader
}

// NewResolver constructs a Resolver.
func NewResolver(store Reader) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up the config and applies proxy precedence.
// The only failures are an unknown config id and store errors.
func (r *Resolver) Resolve(ctx context.Context, configID string) (EffectiveProxy, error) {
	cfg, errGet := r.store.GetConfig(ctx, configID)
	if errGet != nil {
		return EffectiveProxy{}, errGet
	}
	perConfig, errDecode := cfg.DecodeProxy()
	if errDecode != nil {
		return EffectiveProxy{}, fmt.Errorf("resolve proxy %s: %w", configID, errDecode)
	}
	if perConfig != nil && perConfig.Enabled {
		return EffectiveProxy{Source: SourcePerConfig, Proxy: perConfig}, nil
	}

	global, errGlobal := r.store.GetGlobalProxy(ctx)
	if errGlobal != nil {
		return EffectiveProxy{}, errGlobal
	}
	return Select(perConfig, global.ProxyConfig()), nil
}

// Select applies precedence: an enabled per-config proxy, then an enabled global proxy, then none.
// A present but disabled per-config proxy does not mask the global one.
func Select(perConfig *models.ProxyConfig, global models.ProxyConfig) EffectiveProxy {
	if perConfig != nil && perConfig.Enabled {
		p := *perConfig
		return EffectiveProxy{Source: SourcePerConfig, Proxy: &p}
	}
	if global.Enabled {
		g := global
		return EffectiveProxy{Source: SourceGlobal, Proxy: &g}
	}
	return EffectiveProxy{Source: SourceNone}
}
