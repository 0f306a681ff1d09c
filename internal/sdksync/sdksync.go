// Package sdksync mirrors each provider's default config into a CLIProxyAPI config file.
package sdksync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	sdkconfig "github.com/router-for-me/CLIProxyAPI/v6/sdk/config"
	"github.com/router-for-me/LLMConfigService/internal/models"
	"github.com/router-for-me/LLMConfigService/internal/provider"
	"github.com/router-for-me/LLMConfigService/internal/proxy"
	log "github.com/sirupsen/logrus"
)

// Base URLs used for OpenAI-compatible providers when a config leaves BaseURL empty.
var defaultBaseURLs = map[provider.ID]string{
	provider.OpenAI:     "https://api.openai.com/v1",
	provider.DeepSeek:   "https://api.deepseek.com/v1",
	provider.OpenRouter: "https://openrouter.ai/api/v1",
	provider.Ollama:     "http://127.0.0.1:11434/v1",
}

type modelEntry struct {
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

// Syncer writes provider sections into the SDK config file at path.
type Syncer struct {
	path string
	mu   sync.Mutex
}

// NewSyncer returns a Syncer for path. An empty path disables syncing.
func NewSyncer(path string) *Syncer {
	return &Syncer{path: strings.TrimSpace(path)}
}

// Sync rewrites the provider sections of the SDK config. A missing file is skipped.
// load runs under the syncer lock, so the last sync to take the lock also reads the newest state.
func (s *Syncer) Sync(ctx context.Context, load func(ctx context.Context) ([]models.Config, models.GlobalProxy, error)) error {
	if s == nil || s.path == "" || load == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, errStat := os.Stat(s.path); errStat != nil {
		if os.IsNotExist(errStat) {
			log.WithField("path", s.path).Debug("sdk sync: config file not found, skipping")
			return nil
		}
		return fmt.Errorf("sdk sync: stat %s: %w", s.path, errStat)
	}
	configs, global, errLoad := load(ctx)
	if errLoad != nil {
		return errLoad
	}
	cfg, errConfig := sdkconfig.LoadConfig(s.path)
	if errConfig != nil {
		return fmt.Errorf("sdk sync: load config: %w", errConfig)
	}
	ApplyToConfig(cfg, configs, global)
	if errSave := sdkconfig.SaveConfigPreserveComments(s.path, cfg); errSave != nil {
		return fmt.Errorf("sdk sync: save config: %w", errSave)
	}
	return nil
}

// ApplyToConfig replaces the provider key sections of cfg with one entry per provider default.
// Each entry carries the proxy URL that resolution would pick for that config.
func ApplyToConfig(cfg *sdkconfig.Config, configs []models.Config, global models.GlobalProxy) {
	if cfg == nil {
		return
	}

	geminiKeys := make([]sdkconfig.GeminiKey, 0)
	claudeKeys := make([]sdkconfig.ClaudeKey, 0)
	openAIProviders := make([]sdkconfig.OpenAICompatibility, 0)
	globalProxy := global.ProxyConfig()

	for i := range configs {
		row := &configs[i]
		if !row.IsDefault {
			continue
		}
		id, ok := provider.Normalize(row.ProviderID)
		if !ok {
			continue
		}
		apiKey := strings.TrimSpace(row.APIKey)
		proxyURL := effectiveProxyURL(row, globalProxy)
		modelsJSON := modelsFor(row)

		switch id {
		case provider.Gemini:
			entry := sdkconfig.GeminiKey{
				APIKey:   apiKey,
				BaseURL:  strings.TrimSpace(row.BaseURL),
				ProxyURL: proxyURL,
			}
			applyJSON(modelsJSON, &entry.Models)
			if entry.APIKey != "" {
				geminiKeys = append(geminiKeys, entry)
			}
		case provider.Anthropic:
			entry := sdkconfig.ClaudeKey{
				APIKey:   apiKey,
				BaseURL:  strings.TrimSpace(row.BaseURL),
				ProxyURL: proxyURL,
			}
			applyJSON(modelsJSON, &entry.Models)
			if entry.APIKey != "" {
				claudeKeys = append(claudeKeys, entry)
			}
		default:
			baseURL := strings.TrimSpace(row.BaseURL)
			if baseURL == "" {
				baseURL = defaultBaseURLs[id]
			}
			entry := sdkconfig.OpenAICompatibility{
				Name:    id.String(),
				BaseURL: baseURL,
			}
			if apiKey != "" || proxyURL != "" {
				entry.APIKeyEntries = []sdkconfig.OpenAICompatibilityAPIKey{{APIKey: apiKey, ProxyURL: proxyURL}}
			}
			applyJSON(modelsJSON, &entry.Models)
			if entry.BaseURL != "" {
				openAIProviders = append(openAIProviders, entry)
			}
		}
	}

	cfg.GeminiKey = geminiKeys
	cfg.ClaudeKey = claudeKeys
	cfg.OpenAICompatibility = openAIProviders

	cfg.SanitizeGeminiKeys()
	cfg.SanitizeClaudeKeys()
	cfg.SanitizeOpenAICompatibility()
}

func effectiveProxyURL(row *models.Config, global models.ProxyConfig) string {
	perConfig, errDecode := row.DecodeProxy()
	if errDecode != nil {
		log.WithError(errDecode).WithField("config_id", row.ID).Warn("sdk sync: invalid stored proxy")
		perConfig = nil
	}
	return proxy.Select(perConfig, global).URL()
}

func modelsFor(row *models.Config) []byte {
	name := strings.TrimSpace(row.ModelID)
	if name == "" {
		return nil
	}
	alias := strings.TrimSpace(row.ModelName)
	if alias == "" {
		alias = name
	}
	data, errMarshal := json.Marshal([]modelEntry{{Name: name, Alias: alias}})
	if errMarshal != nil {
		return nil
	}
	return data
}

func applyJSON(value []byte, target interface{}) {
	if len(value) == 0 || target == nil {
		return
	}
	_ = json.Unmarshal(value, target)
}
