package app

import (
	"fmt"

	"github.com/router-for-me/LLMConfigService/internal/models"
	"gorm.io/gorm"
)

// SchemaReady reports whether the config tables exist and the global proxy row is seeded.
func SchemaReady(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	migrator := conn.Migrator()
	if !migrator.HasTable(&models.Config{}) || !migrator.HasTable(&models.GlobalProxy{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.GlobalProxy{}).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}
