package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/settings"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Config{},
		&models.GlobalProxy{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := EnsureGlobalProxy(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// DefaultGlobalProxy returns the seed row for the singleton global proxy.
func DefaultGlobalProxy(now time.Time) models.GlobalProxy {
	return models.GlobalProxy{
		ID:        settings.GlobalProxyRowID,
		Enabled:   false,
		Protocol:  settings.DefaultProxyProtocol,
		Host:      settings.DefaultGlobalProxyHost,
		Port:      settings.DefaultGlobalProxyPort,
		TimeoutMs: settings.DefaultProxyTimeoutMs,
		Retries:   settings.DefaultProxyRetries,
		UpdatedAt: now.UTC(),
	}
}

// EnsureGlobalProxy inserts the singleton global proxy row when missing.
func EnsureGlobalProxy(conn *gorm.DB) error {
	var existing models.GlobalProxy
	errFind := conn.First(&existing, settings.GlobalProxyRowID).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: find global proxy: %w", errFind)
	}
	row := DefaultGlobalProxy(time.Now())
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		return fmt.Errorf("db: seed global proxy: %w", errCreate)
	}
	return nil
}
