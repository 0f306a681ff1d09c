package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/proxy"
	"github.com/router-for-me/LLMConfigService/internal/registry"
	"github.com/router-for-me/LLMConfigService/internal/store"
	log "github.com/sirupsen/logrus"
)

// Syncer receives the full config set after every successful mutation.
// load must be called while the syncer holds its own lock so overlapping syncs apply in read order.
type Syncer interface {
	Sync(ctx context.Context, load func(ctx context.Context) ([]models.Config, models.GlobalProxy, error)) error
}

// Service is the single entry point for callers. Every operation either fully
// succeeds or leaves stored state as it was, and failures carry a stable Code.
type Service struct {
	store    store.Store
	registry *registry.Registry
	resolver *proxy.Resolver
	syncer   Syncer
	nowFn    func() time.Time

	globalMu sync.Mutex
}

// New constructs a Service. syncer may be nil.
func New(st store.Store, reg *registry.Registry, resolver *proxy.Resolver, syncer Syncer) *Service {
	return &Service{
		store:    st,
		registry: reg,
		resolver: resolver,
		syncer:   syncer,
		nowFn:    time.Now,
	}
}

// GetConfigs lists configs in insertion order. providerID and keyword are optional.
func (s *Service) GetConfigs(ctx context.Context, providerID, keyword string) ([]models.Config, error) {
	rows, errList := s.registry.List(ctx, providerID, keyword)
	if errList != nil {
		return nil, s.fail("get configs", errList)
	}
	return rows, nil
}

// GetConfig returns a single config.
func (s *Service) GetConfig(ctx context.Context, id string) (models.Config, error) {
	row, errGet := s.registry.Get(ctx, id)
	if errGet != nil {
		return models.Config{}, s.fail("get config", errGet)
	}
	return row, nil
}

// GetDefaultConfig returns the default config of a provider.
func (s *Service) GetDefaultConfig(ctx context.Context, providerID string) (models.Config, error) {
	row, errGet := s.registry.DefaultFor(ctx, providerID)
	if errGet != nil {
		return models.Config{}, s.fail("get default config", errGet)
	}
	return row, nil
}

// CreateConfig creates a config.
func (s *Service) CreateConfig(ctx context.Context, in registry.CreateInput) (models.Config, error) {
	row, errCreate := s.registry.Create(ctx, in)
	if errCreate != nil {
		return models.Config{}, s.fail("create config", errCreate)
	}
	log.WithFields(log.Fields{
		"config_id":  row.ID,
		"provider":   row.ProviderID,
		"is_default": row.IsDefault,
	}).Info("config created")
	s.sync(ctx)
	return row, nil
}

// UpdateConfig merges patch into a config.
func (s *Service) UpdateConfig(ctx context.Context, id string, patch registry.Patch) (models.Config, error) {
	row, errUpdate := s.registry.Update(ctx, id, patch)
	if errUpdate != nil {
		return models.Config{}, s.fail("update config", errUpdate)
	}
	log.WithFields(log.Fields{"config_id": row.ID, "provider": row.ProviderID}).Info("config updated")
	s.sync(ctx)
	return row, nil
}

// DeleteConfig removes a config.
func (s *Service) DeleteConfig(ctx context.Context, id string) error {
	if errDelete := s.registry.Delete(ctx, id); errDelete != nil {
		return s.fail("delete config", errDelete)
	}
	log.WithField("config_id", id).Info("config deleted")
	s.sync(ctx)
	return nil
}

// SetDefaultConfig makes a config its provider's only default.
func (s *Service) SetDefaultConfig(ctx context.Context, id string) error {
	row, errSet := s.registry.SetDefault(ctx, id)
	if errSet != nil {
		return s.fail("set default config", errSet)
	}
	log.WithFields(log.Fields{"config_id": row.ID, "provider": row.ProviderID}).Info("default config changed")
	s.sync(ctx)
	return nil
}

// GetGlobalProxy returns the singleton global proxy.
func (s *Service) GetGlobalProxy(ctx context.Context) (models.ProxyConfig, error) {
	row, errGet := s.store.GetGlobalProxy(ctx)
	if errGet != nil {
		return models.ProxyConfig{}, s.fail("get global proxy", errGet)
	}
	return row.ProxyConfig(), nil
}

// SetGlobalProxy validates and overwrites the singleton global proxy in place.
func (s *Service) SetGlobalProxy(ctx context.Context, p models.ProxyConfig) error {
	checked, errCheck := registry.CheckProxy(&p)
	if errCheck != nil {
		return s.fail("set global proxy", errCheck)
	}

	s.globalMu.Lock()
	errTx := s.store.Transaction(ctx, func(tx store.Store) error {
		row, errGet := tx.GetGlobalProxy(ctx)
		if errGet != nil {
			return errGet
		}
		row.ApplyProxyConfig(*checked)
		now := s.nowFn().UTC()
		if now.After(row.UpdatedAt) {
			row.UpdatedAt = now
		}
		return tx.PutGlobalProxy(ctx, &row)
	})
	s.globalMu.Unlock()
	if errTx != nil {
		return s.fail("set global proxy", errTx)
	}
	log.WithFields(log.Fields{"enabled": checked.Enabled, "protocol": checked.Protocol}).Info("global proxy updated")
	s.sync(ctx)
	return nil
}

// SetConfigProxy attaches, replaces, or (with nil) detaches a config's own proxy.
func (s *Service) SetConfigProxy(ctx context.Context, configID string, p *models.ProxyConfig) error {
	row, errSet := s.registry.SetProxy(ctx, configID, p)
	if errSet != nil {
		return s.fail("set config proxy", errSet)
	}
	log.WithFields(log.Fields{"config_id": row.ID, "detached": p == nil}).Info("config proxy updated")
	s.sync(ctx)
	return nil
}

// GetConfigProxy returns the effective proxy for a config after precedence is applied.
func (s *Service) GetConfigProxy(ctx context.Context, configID string) (proxy.EffectiveProxy, error) {
	effective, errResolve := s.resolver.Resolve(ctx, configID)
	if errResolve != nil {
		return proxy.EffectiveProxy{}, s.fail("get config proxy", errResolve)
	}
	return effective, nil
}

// Ping checks the underlying store.
func (s *Service) Ping(ctx context.Context) error {
	if errPing := s.store.Ping(ctx); errPing != nil {
		return s.fail("ping", errPing)
	}
	return nil
}

func (s *Service) fail(op string, err error) error {
	translated := translate(err)
	if CodeOf(translated) == CodeStore {
		log.WithError(err).WithField("op", op).Error("service: storage failure")
	}
	return translated
}

// sync pushes the current state to the syncer. Failures are logged and never undo the mutation.
func (s *Service) sync(ctx context.Context) {
	if s.syncer == nil {
		return
	}
	if errSync := s.syncer.Sync(ctx, s.snapshot); errSync != nil {
		log.WithError(errSync).Warn("config sync failed")
	}
}

// snapshot reads every config and the global proxy.
func (s *Service) snapshot(ctx context.Context) ([]models.Config, models.GlobalProxy, error) {
	rows, errList := s.store.ListConfigs(ctx, store.ListFilter{})
	if errList != nil {
		return nil, models.GlobalProxy{}, fmt.Errorf("config sync: list configs: %w", errList)
	}
	global, errGlobal := s.store.GetGlobalProxy(ctx)
	if errGlobal != nil {
		return nil, models.GlobalProxy{}, fmt.Errorf("config sync: load global proxy: %w", errGlobal)
	}
	return rows, global, nil
}
