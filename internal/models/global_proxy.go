package models

import "time"

// GlobalProxy is the singleton fallback proxy row.
type GlobalProxy struct {
	ID uint64 `gorm:"primaryKey"` // Fixed singleton key.

	Enabled   bool   `gorm:"not null;default:false"` // Fallback toggle.
	Protocol  string `gorm:"type:varchar(16);not null"`
	Host      string `gorm:"type:text;not null"`
	Port      int    `gorm:"not null"`
	Username  string `gorm:"type:text"`
	Password  string `gorm:"type:text"`
	TimeoutMs int    `gorm:"not null"`
	Retries   int    `gorm:"not null"`

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"` // Last update timestamp.
}

// ProxyConfig converts the row into a ProxyConfig value.
func (g *GlobalProxy) ProxyConfig() ProxyConfig {
	if g == nil {
		return ProxyConfig{}
	}
	out := ProxyConfig{
		Enabled:  g.Enabled,
		Protocol: g.Protocol,
		Host:     g.Host,
		Port:     g.Port,
		Timeout:  g.TimeoutMs,
		Retries:  g.Retries,
	}
	if g.Username != "" || g.Password != "" {
		out.Auth = &ProxyAuth{Username: g.Username, Password: g.Password}
	}
	return out
}

// ApplyProxyConfig copies a ProxyConfig value onto the row.
func (g *GlobalProxy) ApplyProxyConfig(p ProxyConfig) {
	if g == nil {
		return
	}
	g.Enabled = p.Enabled
	g.Protocol = p.Protocol
	g.Host = p.Host
	g.Port = p.Port
	g.TimeoutMs = p.Timeout
	g.Retries = p.Retries
	g.Username = ""
	g.Password = ""
	if p.Auth != nil {
		g.Username = p.Auth.Username
		g.Password = p.Auth.Password
	}
}
