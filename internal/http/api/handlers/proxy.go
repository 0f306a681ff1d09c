package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/proxy"
	"github.com/router-for-me/LLMConfigService/internal/settings"
)

// ProxyService is the façade surface used by proxy endpoints.
type ProxyService interface {
	GetGlobalProxy(ctx context.Context) (models.ProxyConfig, error)
	SetGlobalProxy(ctx context.Context, p models.ProxyConfig) error
	SetConfigProxy(ctx context.Context, configID string, p *models.ProxyConfig) error
	GetConfigProxy(ctx context.Context, configID string) (proxy.EffectiveProxy, error)
}

// ProxyHandler manages global and per-config proxy endpoints.
type ProxyHandler struct {
	svc ProxyService
}

// NewProxyHandler constructs a ProxyHandler.
func NewProxyHandler(svc ProxyService) *ProxyHandler {
	return &ProxyHandler{svc: svc}
}

// proxyAuthRequest defines proxy credentials in a request body.
type proxyAuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// proxyRequest defines the request body for a proxy. Omitted retries fall back to the default.
type proxyRequest struct {
	Enabled  bool              `json:"enabled"`
	Protocol string            `json:"protocol"`
	Host     string            `json:"host"`
	Port     int               `json:"port"`
	Auth     *proxyAuthRequest `json:"auth"`
	Timeout  int               `json:"timeout"`
	Retries  *int              `json:"retries"`
}

func (r proxyRequest) toModel() models.ProxyConfig {
	out := models.ProxyConfig{
		Enabled:  r.Enabled,
		Protocol: r.Protocol,
		Host:     r.Host,
		Port:     r.Port,
		Timeout:  r.Timeout,
		Retries:  settings.DefaultProxyRetries,
	}
	if r.Retries != nil {
		out.Retries = *r.Retries
	}
	if r.Auth != nil {
		out.Auth = &models.ProxyAuth{Username: r.Auth.Username, Password: r.Auth.Password}
	}
	return out
}

// decodeOptionalProxy parses a raw proxy value. JSON null yields nil.
func decodeOptionalProxy(raw []byte) (*models.ProxyConfig, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var body proxyRequest
	if errUnmarshal := json.Unmarshal(trimmed, &body); errUnmarshal != nil {
		return nil, errUnmarshal
	}
	out := body.toModel()
	return &out, nil
}

func formatProxy(p *models.ProxyConfig) gin.H {
	if p == nil {
		return nil
	}
	out := gin.H{
		"enabled":  p.Enabled,
		"protocol": p.Protocol,
		"host":     p.Host,
		"port":     p.Port,
		"timeout":  p.Timeout,
		"retries":  p.Retries,
	}
	if p.Auth != nil {
		out["auth"] = gin.H{"username": p.Auth.Username, "password": p.Auth.Password}
	}
	return out
}

// GetGlobal returns the global proxy.
func (h *ProxyHandler) GetGlobal(c *gin.Context) {
	p, errGet := h.svc.GetGlobalProxy(c.Request.Context())
	if errGet != nil {
		respondError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, formatProxy(&p))
}

// SetGlobal overwrites the global proxy.
func (h *ProxyHandler) SetGlobal(c *gin.Context) {
	var body proxyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondInvalidJSON(c)
		return
	}
	if errSet := h.svc.SetGlobalProxy(c.Request.Context(), body.toModel()); errSet != nil {
		respondError(c, errSet)
		return
	}
	h.GetGlobal(c)
}

// SetForConfig attaches, replaces, or with a null body detaches a config's proxy.
func (h *ProxyHandler) SetForConfig(c *gin.Context) {
	raw, errRead := c.GetRawData()
	if errRead != nil || len(bytes.TrimSpace(raw)) == 0 {
		respondInvalidJSON(c)
		return
	}
	p, errDecode := decodeOptionalProxy(raw)
	if errDecode != nil {
		respondInvalidJSON(c)
		return
	}
	id := c.Param("id")
	if errSet := h.svc.SetConfigProxy(c.Request.Context(), id, p); errSet != nil {
		respondError(c, errSet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetForConfig returns the effective proxy of a config.
func (h *ProxyHandler) GetForConfig(c *gin.Context) {
	effective, errGet := h.svc.GetConfigProxy(c.Request.Context(), c.Param("id"))
	if errGet != nil {
		respondError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source": effective.Source,
		"proxy":  formatProxy(effective.Proxy),
		"url":    effective.URL(),
	})
}
