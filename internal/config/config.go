package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/router-for-me/LLMConfigService/internal/settings"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath    = "CONFIG_PATH"
	EnvDBConnection  = "DB_CONNECTION"
	EnvAuthSecret    = "AUTH_SECRET"
	EnvLockRedisAddr = "LOCK_REDIS_ADDR"
	EnvLogLevel      = "LOG_LEVEL"
	EnvListen        = "LISTEN"
)

// ErrInvalidListen indicates the listen address has no usable port.
var ErrInvalidListen = errors.New("invalid listen address")

// DatabaseConfig selects the backing database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig enables bearer token auth on the HTTP boundary when Secret is set.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// LockConfig configures the optional Redis lock for multi-process deployments.
type LockConfig struct {
	RedisAddr     string        `yaml:"redis-addr"`
	RedisPassword string        `yaml:"redis-password"`
	RedisDB       int           `yaml:"redis-db"`
	RedisPrefix   string        `yaml:"redis-prefix"`
	TTL           time.Duration `yaml:"ttl"`
}

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath    string         `yaml:"-"`
	Listen        string         `yaml:"listen"`
	Database      DatabaseConfig `yaml:"database"`
	Log           LogConfig      `yaml:"log"`
	Auth          AuthConfig     `yaml:"auth"`
	Lock          LockConfig     `yaml:"lock"`
	SDKConfigPath string         `yaml:"sdk-config-path"`
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	return AppConfig{
		Listen:   settings.DefaultListenAddr,
		Database: DatabaseConfig{DSN: "file:" + settings.DefaultSQLitePath},
		Log:      LogConfig{Level: "info", Format: "text"},
		Lock: LockConfig{
			RedisPrefix: settings.DefaultLockRedisPrefix,
			TTL:         settings.DefaultLockTTL,
		},
	}
}

// LoadFromEnv loads app config from the file named by CONFIG_PATH.
func LoadFromEnv() (AppConfig, error) {
	return Load(os.Getenv(EnvConfigPath))
}

// Load reads the YAML file at path, applies environment overrides and fills defaults.
// A missing file is not an error.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	cfg.ConfigPath = ResolveConfigPath(path)

	data, errRead := os.ReadFile(cfg.ConfigPath)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return AppConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return AppConfig{}, fmt.Errorf("read config file: %w", errRead)
	}

	applyEnv(&cfg)
	cfg.normalize()
	if errValidate := cfg.Validate(); errValidate != nil {
		return AppConfig{}, errValidate
	}
	return cfg, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

func applyEnv(cfg *AppConfig) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvAuthSecret)); secret != "" {
		cfg.Auth.Secret = secret
	}
	if addr := strings.TrimSpace(os.Getenv(EnvLockRedisAddr)); addr != "" {
		cfg.Lock.RedisAddr = addr
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.Log.Level = level
	}
	if listen := strings.TrimSpace(os.Getenv(EnvListen)); listen != "" {
		cfg.Listen = listen
	}
}

func (c *AppConfig) normalize() {
	defaults := Default()
	c.Listen = strings.TrimSpace(c.Listen)
	if c.Listen == "" {
		c.Listen = defaults.Listen
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" {
		c.Database.DSN = defaults.Database.DSN
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	c.Lock.RedisAddr = strings.TrimSpace(c.Lock.RedisAddr)
	c.Lock.RedisPrefix = strings.TrimSpace(c.Lock.RedisPrefix)
	if c.Lock.RedisPrefix == "" {
		c.Lock.RedisPrefix = defaults.Lock.RedisPrefix
	}
	if c.Lock.TTL <= 0 {
		c.Lock.TTL = defaults.Lock.TTL
	}
	c.SDKConfigPath = strings.TrimSpace(c.SDKConfigPath)
}

// Validate reports configuration values that cannot be used.
func (c AppConfig) Validate() error {
	idx := strings.LastIndex(c.Listen, ":")
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrInvalidListen, c.Listen)
	}
	port, errPort := strconv.Atoi(c.Listen[idx+1:])
	if errPort != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidListen, c.Listen)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}
