package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Config stores a named LLM provider configuration.
type Config struct {
	Seq uint64 `gorm:"primaryKey;autoIncrement"` // Insertion order key.

	ID         string `gorm:"type:varchar(64);not null;uniqueIndex"` // Opaque public identifier.
	ProviderID string `gorm:"type:varchar(64);not null;index"`       // Canonical provider identifier.
	Name       string `gorm:"type:text;not null"`                    // Display name.
	ModelID    string `gorm:"type:text"`                             // Vendor model selector.
	ModelName  string `gorm:"type:text"`                             // Model display name.
	APIKey     string `gorm:"type:text"`                             // Provider API key.
	BaseURL    string `gorm:"type:text"`                             // Base URL override.
	IsDefault  bool   `gorm:"not null;default:false;index"`          // Marks the provider default.

	Proxy datatypes.JSON `gorm:"type:jsonb"` // Embedded per-config proxy, null when absent.

	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"` // Last update timestamp.
}

// ProxyAuth holds proxy credentials.
type ProxyAuth struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ProxyConfig describes a proxy attached to a single Config or the global fallback.
type ProxyConfig struct {
	Enabled  bool       `json:"enabled"`
	Protocol string     `json:"protocol"`
	Host     string     `json:"host"`
	Port     int        `json:"port"`
	Auth     *ProxyAuth `json:"auth,omitempty"`
	Timeout  int        `json:"timeout"` // Milliseconds.
	Retries  int        `json:"retries"`
}

// DecodeProxy returns the embedded proxy, or nil when none is attached.
func (c *Config) DecodeProxy() (*ProxyConfig, error) {
	if c == nil || len(c.Proxy) == 0 || string(c.Proxy) == "null" {
		return nil, nil
	}
	var out ProxyConfig
	if errUnmarshal := json.Unmarshal(c.Proxy, &out); errUnmarshal != nil {
		return nil, fmt.Errorf("config proxy decode: %w", errUnmarshal)
	}
	return &out, nil
}

// EncodeProxy replaces the embedded proxy; nil detaches it.
func (c *Config) EncodeProxy(proxy *ProxyConfig) error {
	if c == nil {
		return fmt.Errorf("config proxy encode: nil config")
	}
	if proxy == nil {
		c.Proxy = nil
		return nil
	}
	data, errMarshal := json.Marshal(proxy)
	if errMarshal != nil {
		return fmt.Errorf("config proxy encode: %w", errMarshal)
	}
	c.Proxy = datatypes.JSON(data)
	return nil
}
