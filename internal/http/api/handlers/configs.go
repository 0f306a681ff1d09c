package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/provider"
	"github.com/router-for-me/LLMConfigService/internal/registry"
)

// ConfigService is the façade surface used by config endpoints.
type ConfigService interface {
	GetConfigs(ctx context.Context, providerID, keyword string) ([]models.Config, error)
	GetConfig(ctx context.Context, id string) (models.Config, error)
	GetDefaultConfig(ctx context.Context, providerID string) (models.Config, error)
	CreateConfig(ctx context.Context, in registry.CreateInput) (models.Config, error)
	UpdateConfig(ctx context.Context, id string, patch registry.Patch) (models.Config, error)
	DeleteConfig(ctx context.Context, id string) error
	SetDefaultConfig(ctx context.Context, id string) error
}

// ConfigHandler manages config endpoints.
type ConfigHandler struct {
	svc ConfigService
}

// NewConfigHandler constructs a ConfigHandler.
func NewConfigHandler(svc ConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// createConfigRequest defines the request body for config creation.
type createConfigRequest struct {
	ProviderID string          `json:"providerId"`
	Name       string          `json:"name"`
	ModelID    string          `json:"modelId"`
	ModelName  string          `json:"modelName"`
	APIKey     string          `json:"apiKey"`
	BaseURL    string          `json:"baseUrl"`
	Proxy      json.RawMessage `json:"proxy"`
}

// updateConfigRequest defines the request body for config updates.
// Proxy distinguishes absent (keep) from null (detach).
type updateConfigRequest struct {
	ProviderID *string         `json:"providerId"`
	Name       *string         `json:"name"`
	ModelID    *string         `json:"modelId"`
	ModelName  *string         `json:"modelName"`
	APIKey     *string         `json:"apiKey"`
	BaseURL    *string         `json:"baseUrl"`
	Proxy      json.RawMessage `json:"proxy"`
}

func formatConfig(row models.Config) gin.H {
	p, errDecode := row.DecodeProxy()
	if errDecode != nil {
		p = nil
	}
	return gin.H{
		"id":         row.ID,
		"providerId": row.ProviderID,
		"name":       row.Name,
		"modelId":    row.ModelID,
		"modelName":  row.ModelName,
		"apiKey":     row.APIKey,
		"baseUrl":    row.BaseURL,
		"isDefault":  row.IsDefault,
		"proxy":      formatProxy(p),
		"createdAt":  row.CreatedAt,
		"updatedAt":  row.UpdatedAt,
	}
}

// List returns configs in insertion order, optionally filtered by provider and keyword.
func (h *ConfigHandler) List(c *gin.Context) {
	var (
		providerQ = strings.TrimSpace(c.Query("provider"))
		keywordQ  = strings.TrimSpace(c.Query("keyword"))
	)
	rows, errList := h.svc.GetConfigs(c.Request.Context(), providerQ, keywordQ)
	if errList != nil {
		respondError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatConfig(row))
	}
	c.JSON(http.StatusOK, gin.H{"configs": out})
}

// Get returns a config by id.
func (h *ConfigHandler) Get(c *gin.Context) {
	row, errGet := h.svc.GetConfig(c.Request.Context(), c.Param("id"))
	if errGet != nil {
		respondError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, formatConfig(row))
}

// Create creates a config.
func (h *ConfigHandler) Create(c *gin.Context) {
	var body createConfigRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondInvalidJSON(c)
		return
	}
	in := registry.CreateInput{
		ProviderID: body.ProviderID,
		Name:       body.Name,
		ModelID:    body.ModelID,
		ModelName:  body.ModelName,
		APIKey:     body.APIKey,
		BaseURL:    body.BaseURL,
	}
	if len(body.Proxy) > 0 {
		p, errDecode := decodeOptionalProxy(body.Proxy)
		if errDecode != nil {
			respondInvalidJSON(c)
			return
		}
		in.Proxy = p
	}

	row, errCreate := h.svc.CreateConfig(c.Request.Context(), in)
	if errCreate != nil {
		respondError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, formatConfig(row))
}

// Update merges the provided fields into a config.
func (h *ConfigHandler) Update(c *gin.Context) {
	var body updateConfigRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondInvalidJSON(c)
		return
	}
	patch := registry.Patch{
		ProviderID: body.ProviderID,
		Name:       body.Name,
		ModelID:    body.ModelID,
		ModelName:  body.ModelName,
		APIKey:     body.APIKey,
		BaseURL:    body.BaseURL,
	}
	if len(body.Proxy) > 0 {
		p, errDecode := decodeOptionalProxy(body.Proxy)
		if errDecode != nil {
			respondInvalidJSON(c)
			return
		}
		patch.Proxy = &registry.ProxyUpdate{Value: p}
	}

	row, errUpdate := h.svc.UpdateConfig(c.Request.Context(), c.Param("id"), patch)
	if errUpdate != nil {
		respondError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, formatConfig(row))
}

// Delete removes a config.
func (h *ConfigHandler) Delete(c *gin.Context) {
	if errDelete := h.svc.DeleteConfig(c.Request.Context(), c.Param("id")); errDelete != nil {
		respondError(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetDefault marks a config as its provider's default.
func (h *ConfigHandler) SetDefault(c *gin.Context) {
	if errSet := h.svc.SetDefaultConfig(c.Request.Context(), c.Param("id")); errSet != nil {
		respondError(c, errSet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetDefault returns the default config of a provider.
func (h *ConfigHandler) GetDefault(c *gin.Context) {
	row, errGet := h.svc.GetDefaultConfig(c.Request.Context(), c.Param("provider"))
	if errGet != nil {
		respondError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, formatConfig(row))
}

// ListProviders returns the supported provider identifiers.
func (h *ConfigHandler) ListProviders(c *gin.Context) {
	ids := provider.All()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}
