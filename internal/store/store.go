package store

import (
	"context"
	"errors"
	"time"

	"github.com/router-for-me/LLMConfigService/internal/models"
)

var (
	// ErrNotFound is returned when a Config record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStore marks an underlying durable storage failure.
	ErrStore = errors.New("store failure")
)

// ListFilter narrows ListConfigs results. Zero values match everything.
type ListFilter struct {
	ProviderID string
	Keyword    string
}

// Store persists Config and GlobalProxy records. Each call is atomic.
type Store interface {
	GetConfig(ctx context.Context, id string) (models.Config, error)
	PutConfig(ctx context.Context, cfg *models.Config) error
	DeleteConfig(ctx context.Context, id string) error
	// ListConfigs returns matching configs in insertion order.
	ListConfigs(ctx context.Context, filter ListFilter) ([]models.Config, error)
	// CountConfigs returns how many configs exist for a provider.
	CountConfigs(ctx context.Context, providerID string) (int64, error)
	// ClearDefaults unsets is_default on every config of providerID except exceptID.
	ClearDefaults(ctx context.Context, providerID, exceptID string, updatedAt time.Time) error
	GetGlobalProxy(ctx context.Context) (models.GlobalProxy, error)
	PutGlobalProxy(ctx context.Context, row *models.GlobalProxy) error
	// Transaction runs fn against a Store bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
