package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/settings"
)

// ErrInvalidProxy is wrapped by every proxy validation failure.
var ErrInvalidProxy = errors.New("invalid proxy")

// Supported proxy protocols.
const (
	ProtocolHTTP   = "http"
	ProtocolHTTPS  = "https"
	ProtocolSOCKS4 = "socks4"
	ProtocolSOCKS5 = "socks5"
)

var protocols = map[string]struct{}{
	ProtocolHTTP:   {},
	ProtocolHTTPS:  {},
	ProtocolSOCKS4: {},
	ProtocolSOCKS5: {},
}

// Normalize trims inputs and fills protocol and timeout defaults.
// Retries are taken as given; callers apply the retry default when the field was omitted.
func Normalize(p models.ProxyConfig) models.ProxyConfig {
	p.Protocol = strings.ToLower(strings.TrimSpace(p.Protocol))
	if p.Protocol == "" {
		p.Protocol = settings.DefaultProxyProtocol
	}
	p.Host = strings.TrimSpace(p.Host)
	if p.Timeout == 0 {
		p.Timeout = settings.DefaultProxyTimeoutMs
	}
	if p.Auth != nil {
		auth := *p.Auth
		auth.Username = strings.TrimSpace(auth.Username)
		if auth.Username == "" && auth.Password == "" {
			p.Auth = nil
		} else {
			p.Auth = &auth
		}
	}
	return p
}

// Validate checks structural constraints. It is applied when a proxy is written.
func Validate(p models.ProxyConfig) error {
	if _, ok := protocols[p.Protocol]; !ok {
		return fmt.Errorf("%w: unsupported protocol %q", ErrInvalidProxy, p.Protocol)
	}
	if p.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidProxy)
	}
	if strings.Contains(p.Host, "://") || strings.ContainsAny(p.Host, " \t\r\n/") {
		return fmt.Errorf("%w: host must be a bare hostname or address", ErrInvalidProxy)
	}
	if p.Port < settings.MinProxyPort || p.Port > settings.MaxProxyPort {
		return fmt.Errorf("%w: port must be between %d and %d", ErrInvalidProxy, settings.MinProxyPort, settings.MaxProxyPort)
	}
	if p.Timeout < settings.MinProxyTimeoutMs || p.Timeout > settings.MaxProxyTimeoutMs {
		return fmt.Errorf("%w: timeout must be between %d and %d ms", ErrInvalidProxy, settings.MinProxyTimeoutMs, settings.MaxProxyTimeoutMs)
	}
	if p.Retries < 0 || p.Retries > settings.MaxProxyRetries {
		return fmt.Errorf("%w: retries must be between 0 and %d", ErrInvalidProxy, settings.MaxProxyRetries)
	}
	if p.Auth != nil && p.Auth.Username == "" {
		return fmt.Errorf("%w: auth username is required", ErrInvalidProxy)
	}
	return nil
}

// URL renders scheme://[user:pass@]host:port for a proxy.
func URL(p *models.ProxyConfig) string {
	if p == nil || p.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme: p.Protocol,
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
	}
	if p.Auth != nil && p.Auth.Username != "" {
		if p.Auth.Password != "" {
			u.User = url.UserPassword(p.Auth.Username, p.Auth.Password)
		} else {
			u.User = url.User(p.Auth.Username)
		}
	}
	return u.String()
}
