package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/router-for-me/LLMConfigService/internal/db"
	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists configs and the global proxy through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ready() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store: not initialized: %w", ErrStore)
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("gorm store: %s: %w: %w", op, ErrStore, err)
}

// GetConfig loads a config by its public id.
func (s *GormStore) GetConfig(ctx context.Context, id string) (models.Config, error) {
	if errReady := s.ready(); errReady != nil {
		return models.Config{}, errReady
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Config{}, ErrNotFound
	}
	var row models.Config
	if errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Config{}, ErrNotFound
		}
		return models.Config{}, storeErr("get config", errFind)
	}
	return row, nil
}

// PutConfig inserts a new config or overwrites an existing one.
func (s *GormStore) PutConfig(ctx context.Context, cfg *models.Config) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	if cfg == nil || strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("gorm store: put config: missing id: %w", ErrStore)
	}

	if cfg.Seq != 0 {
		if errSave := s.db.WithContext(ctx).Save(cfg).Error; errSave != nil {
			return storeErr("save config", errSave)
		}
		return nil
	}

	if errCreate := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"model_id",
			"model_name",
			"api_key",
			"base_url",
			"is_default",
			"proxy",
			"updated_at",
		}),
	}).Create(cfg).Error; errCreate != nil {
		return storeErr("create config", errCreate)
	}
	return nil
}

// DeleteConfig removes a config by id.
func (s *GormStore) DeleteConfig(ctx context.Context, id string) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	res := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Delete(&models.Config{})
	if res.Error != nil {
		return storeErr("delete config", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConfigs returns configs in insertion order.
func (s *GormStore) ListConfigs(ctx context.Context, filter ListFilter) ([]models.Config, error) {
	if errReady := s.ready(); errReady != nil {
		return nil, errReady
	}
	q := s.db.WithContext(ctx).Model(&models.Config{})
	if providerID := strings.TrimSpace(filter.ProviderID); providerID != "" {
		q = q.Where("provider_id = ?", providerID)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		pattern := dbutil.ContainsPattern(s.db, keyword)
		q = q.Where(
			"("+dbutil.CaseInsensitiveLikeExpr(s.db, "name")+
				" OR "+dbutil.CaseInsensitiveLikeExpr(s.db, "model_id")+
				" OR "+dbutil.CaseInsensitiveLikeExpr(s.db, "model_name")+")",
			pattern,
			pattern,
			pattern,
		)
	}
	var rows []models.Config
	if errFind := q.Order("seq ASC").Find(&rows).Error; errFind != nil {
		return nil, storeErr("list configs", errFind)
	}
	return rows, nil
}

// CountConfigs counts configs for a provider.
func (s *GormStore) CountConfigs(ctx context.Context, providerID string) (int64, error) {
	if errReady := s.ready(); errReady != nil {
		return 0, errReady
	}
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Config{}).
		Where("provider_id = ?", providerID).Count(&count).Error; errCount != nil {
		return 0, storeErr("count configs", errCount)
	}
	return count, nil
}

// ClearDefaults unsets the default flag on sibling configs of a provider.
func (s *GormStore) ClearDefaults(ctx context.Context, providerID, exceptID string, updatedAt time.Time) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	q := s.db.WithContext(ctx).Model(&models.Config{}).
		Where("provider_id = ? AND is_default = ?", providerID, true)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var siblings []models.Config
	if errFind := q.Find(&siblings).Error; errFind != nil {
		return storeErr("clear defaults", errFind)
	}
	// updated_at never moves backwards for a row, even if updatedAt is older than its last write.
	for i := range siblings {
		stamp := updatedAt.UTC()
		if siblings[i].UpdatedAt.After(stamp) {
			stamp = siblings[i].UpdatedAt
		}
		if errClear := s.db.WithContext(ctx).Model(&models.Config{}).
			Where("seq = ?", siblings[i].Seq).
			Updates(map[string]any{"is_default": false, "updated_at": stamp}).Error; errClear != nil {
			return storeErr("clear defaults", errClear)
		}
	}
	return nil
}

// GetGlobalProxy loads the singleton global proxy, creating it with defaults on first access.
func (s *GormStore) GetGlobalProxy(ctx context.Context) (models.GlobalProxy, error) {
	if errReady := s.ready(); errReady != nil {
		return models.GlobalProxy{}, errReady
	}
	var row models.GlobalProxy
	errFind := s.db.WithContext(ctx).First(&row, settings.GlobalProxyRowID).Error
	if errFind == nil {
		return row, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.GlobalProxy{}, storeErr("get global proxy", errFind)
	}

	row = dbutil.DefaultGlobalProxy(time.Now())
	if errCreate := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; errCreate != nil {
		return models.GlobalProxy{}, storeErr("seed global proxy", errCreate)
	}
	if errReload := s.db.WithContext(ctx).First(&row, settings.GlobalProxyRowID).Error; errReload != nil {
		return models.GlobalProxy{}, storeErr("get global proxy", errReload)
	}
	return row, nil
}

// PutGlobalProxy overwrites the singleton global proxy in place.
func (s *GormStore) PutGlobalProxy(ctx context.Context, row *models.GlobalProxy) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	if row == nil {
		return fmt.Errorf("gorm store: put global proxy: nil row: %w", ErrStore)
	}
	row.ID = settings.GlobalProxyRowID
	if errSave := s.db.WithContext(ctx).Save(row).Error; errSave != nil {
		return storeErr("save global proxy", errSave)
	}
	return nil
}

// Transaction runs fn inside a database transaction; any error rolls it back.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	sqlDB, errDB := s.db.DB()
	if errDB != nil {
		return storeErr("ping", errDB)
	}
	if errPing := sqlDB.PingContext(ctx); errPing != nil {
		return storeErr("ping", errPing)
	}
	return nil
}
