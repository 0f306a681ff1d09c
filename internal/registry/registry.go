package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/router-for-me/LLMConfigService/internal/locking"
	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/provider"
	"github.com/router-for-me/LLMConfigService/internal/proxy"
	"github.com/router-for-me/LLMConfigService/internal/store"
)

// ErrValidation is wrapped by every input validation failure.
var ErrValidation = errors.New("validation error")

// CreateInput holds inputs for config creation.
type CreateInput struct {
	ProviderID string
	Name       string
	ModelID    string
	ModelName  string
	APIKey     string
	BaseURL    string
	Proxy      *models.ProxyConfig
}

// ProxyUpdate replaces the embedded proxy. A nil Value detaches it.
type ProxyUpdate struct {
	Value *models.ProxyConfig
}

// Patch lists optional fields to merge into an existing config.
type Patch struct {
	ProviderID *string
	Name       *string
	ModelID    *string
	ModelName  *string
	APIKey     *string
	BaseURL    *string
	Proxy      *ProxyUpdate
}

// Registry owns the config lifecycle and default election.
// Mutations are serialized per provider and each runs in one store transaction.
type Registry struct {
	store store.Store
	locks locking.Locker
	nowFn func() time.Time
	newID func() string
}

// New constructs a Registry with default dependencies when nil.
func New(st store.Store, locks locking.Locker, nowFn func() time.Time) *Registry {
	if locks == nil {
		locks = locking.NewMemoryLocker()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Registry{
		store: st,
		locks: locks,
		nowFn: nowFn,
		newID: uuid.NewString,
	}
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func normalizeProvider(value string) (provider.ID, error) {
	id, ok := provider.Normalize(value)
	if !ok {
		if strings.TrimSpace(value) == "" {
			return "", validationf("providerId is required")
		}
		return "", validationf("unknown provider %q", strings.TrimSpace(value))
	}
	return id, nil
}

// CheckProxy normalizes and validates a proxy before it is written.
func CheckProxy(p *models.ProxyConfig) (*models.ProxyConfig, error) {
	if p == nil {
		return nil, nil
	}
	normalized := proxy.Normalize(*p)
	if errValidate := proxy.Validate(normalized); errValidate != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, errValidate)
	}
	return &normalized, nil
}

func (r *Registry) now(floor time.Time) time.Time {
	now := r.nowFn().UTC()
	if now.Before(floor) {
		return floor
	}
	return now
}

func (r *Registry) lockProvider(ctx context.Context, providerID string) (func(), error) {
	unlock, errLock := r.locks.Lock(ctx, "provider:"+providerID)
	if errLock != nil {
		return nil, fmt.Errorf("registry: lock provider %s: %w", providerID, errLock)
	}
	return unlock, nil
}

// Create inserts a new config. The first config of a provider becomes its default.
func (r *Registry) Create(ctx context.Context, in CreateInput) (models.Config, error) {
	providerID, errProvider := normalizeProvider(in.ProviderID)
	if errProvider != nil {
		return models.Config{}, errProvider
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Config{}, validationf("name is required")
	}
	checkedProxy, errProxy := CheckProxy(in.Proxy)
	if errProxy != nil {
		return models.Config{}, errProxy
	}

	modelID := strings.TrimSpace(in.ModelID)
	modelName := strings.TrimSpace(in.ModelName)
	if modelName == "" {
		modelName = modelID
	}
	now := r.now(time.Time{})
	row := models.Config{
		ID:         r.newID(),
		ProviderID: providerID.String(),
		Name:       name,
		ModelID:    modelID,
		ModelName:  modelName,
		APIKey:     strings.TrimSpace(in.APIKey),
		BaseURL:    strings.TrimSpace(in.BaseURL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if errEncode := row.EncodeProxy(checkedProxy); errEncode != nil {
		return models.Config{}, errEncode
	}

	unlock, errLock := r.lockProvider(ctx, row.ProviderID)
	if errLock != nil {
		return models.Config{}, errLock
	}
	defer unlock()

	errTx := r.store.Transaction(ctx, func(tx store.Store) error {
		count, errCount := tx.CountConfigs(ctx, row.ProviderID)
		if errCount != nil {
			return errCount
		}
		row.IsDefault = count == 0
		return tx.PutConfig(ctx, &row)
	})
	if errTx != nil {
		return models.Config{}, errTx
	}
	return row, nil
}

// Get returns a config by id.
func (r *Registry) Get(ctx context.Context, id string) (models.Config, error) {
	return r.store.GetConfig(ctx, id)
}

// List returns configs in insertion order, optionally narrowed to one provider.
func (r *Registry) List(ctx context.Context, providerID, keyword string) ([]models.Config, error) {
	filter := store.ListFilter{Keyword: keyword}
	if strings.TrimSpace(providerID) != "" {
		id, errProvider := normalizeProvider(providerID)
		if errProvider != nil {
			return nil, errProvider
		}
		filter.ProviderID = id.String()
	}
	return r.store.ListConfigs(ctx, filter)
}

// DefaultFor returns the default config of a provider.
// An empty or unknown provider is a validation error.
func (r *Registry) DefaultFor(ctx context.Context, providerID string) (models.Config, error) {
	id, errProvider := normalizeProvider(providerID)
	if errProvider != nil {
		return models.Config{}, errProvider
	}
	rows, errList := r.store.ListConfigs(ctx, store.ListFilter{ProviderID: id.String()})
	if errList != nil {
		return models.Config{}, errList
	}
	for _, row := range rows {
		if row.IsDefault {
			return row, nil
		}
	}
	return models.Config{}, store.ErrNotFound
}

// Update merges the provided fields into an existing config.
func (r *Registry) Update(ctx context.Context, id string, patch Patch) (models.Config, error) {
	current, errGet := r.store.GetConfig(ctx, id)
	if errGet != nil {
		return models.Config{}, errGet
	}
	if patch.ProviderID != nil {
		requested, errProvider := normalizeProvider(*patch.ProviderID)
		if errProvider != nil {
			return models.Config{}, errProvider
		}
		if requested.String() != current.ProviderID {
			return models.Config{}, validationf("providerId is immutable")
		}
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return models.Config{}, validationf("name must not be empty")
	}
	var checkedProxy *models.ProxyConfig
	if patch.Proxy != nil {
		var errProxy error
		if checkedProxy, errProxy = CheckProxy(patch.Proxy.Value); errProxy != nil {
			return models.Config{}, errProxy
		}
	}

	unlock, errLock := r.lockProvider(ctx, current.ProviderID)
	if errLock != nil {
		return models.Config{}, errLock
	}
	defer unlock()

	var row models.Config
	errTx := r.store.Transaction(ctx, func(tx store.Store) error {
		var errFind error
		if row, errFind = tx.GetConfig(ctx, id); errFind != nil {
			return errFind
		}
		if patch.Name != nil {
			row.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.ModelID != nil {
			row.ModelID = strings.TrimSpace(*patch.ModelID)
		}
		if patch.ModelName != nil {
			row.ModelName = strings.TrimSpace(*patch.ModelName)
		}
		if patch.APIKey != nil {
			row.APIKey = strings.TrimSpace(*patch.APIKey)
		}
		if patch.BaseURL != nil {
			row.BaseURL = strings.TrimSpace(*patch.BaseURL)
		}
		if patch.Proxy != nil {
			if errEncode := row.EncodeProxy(checkedProxy); errEncode != nil {
				return errEncode
			}
		}
		row.UpdatedAt = r.now(row.UpdatedAt)
		return tx.PutConfig(ctx, &row)
	})
	if errTx != nil {
		return models.Config{}, errTx
	}
	return row, nil
}

// SetProxy attaches, replaces, or (with nil) detaches the embedded proxy of a config.
func (r *Registry) SetProxy(ctx context.Context, id string, p *models.ProxyConfig) (models.Config, error) {
	return r.Update(ctx, id, Patch{Proxy: &ProxyUpdate{Value: p}})
}

// Delete removes a config. Other configs keep their default flags.
func (r *Registry) Delete(ctx context.Context, id string) error {
	current, errGet := r.store.GetConfig(ctx, id)
	if errGet != nil {
		return errGet
	}

	unlock, errLock := r.lockProvider(ctx, current.ProviderID)
	if errLock != nil {
		return errLock
	}
	defer unlock()

	return r.store.Transaction(ctx, func(tx store.Store) error {
		return tx.DeleteConfig(ctx, id)
	})
}

// SetDefault marks a config as its provider's default and clears every sibling in the same transaction.
func (r *Registry) SetDefault(ctx context.Context, id string) (models.Config, error) {
	current, errGet := r.store.GetConfig(ctx, id)
	if errGet != nil {
		return models.Config{}, errGet
	}

	unlock, errLock := r.lockProvider(ctx, current.ProviderID)
	if errLock != nil {
		return models.Config{}, errLock
	}
	defer unlock()

	var row models.Config
	errTx := r.store.Transaction(ctx, func(tx store.Store) error {
		var errFind error
		if row, errFind = tx.GetConfig(ctx, id); errFind != nil {
			return errFind
		}
		now := r.now(row.UpdatedAt)
		if errClear := tx.ClearDefaults(ctx, row.ProviderID, row.ID, now); errClear != nil {
			return errClear
		}
		row.IsDefault = true
		row.UpdatedAt = now
		return tx.PutConfig(ctx, &row)
	})
	if errTx != nil {
		return models.Config{}, errTx
	}
	return row, nil
}
