package locking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/LLMConfigService/internal/settings"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// Locker provides exclusive sections keyed by name.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Settings configures the optional Redis backend.
type Settings struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	TTL           time.Duration
}

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Manager always takes the in-process lock and additionally a Redis lock when configured.
// Redis failures trip a breaker and fall back to in-process locking only.
type Manager struct {
	cfg            Settings
	nowFn          func() time.Time
	memory         *MemoryLocker
	newRedisClient RedisClientFactory
	mu             sync.Mutex
	redisLocker    *RedisLocker
	breakerUntil   time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(cfg Settings, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	cfg.RedisPrefix = strings.TrimSpace(cfg.RedisPrefix)
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = settings.DefaultLockRedisPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = settings.DefaultLockTTL
	}
	if cfg.RedisDB < 0 {
		cfg.RedisDB = 0
	}
	return &Manager{
		cfg:            cfg,
		nowFn:          nowFn,
		memory:         NewMemoryLocker(),
		newRedisClient: newRedisClient,
	}
}

// Lock acquires the exclusive section for key. The returned func releases it.
func (m *Manager) Lock(ctx context.Context, key string) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.TTL)
		defer cancel()
	}

	unlockMemory, errMemory := m.memory.Lock(ctx, key)
	if errMemory != nil {
		return nil, errMemory
	}
	if m.cfg.RedisAddr == "" {
		return unlockMemory, nil
	}

	unlockRedis, errRedis := m.lockRedis(ctx, key)
	if errRedis != nil {
		unlockMemory()
		return nil, errRedis
	}
	if unlockRedis == nil {
		return unlockMemory, nil
	}
	return func() {
		unlockRedis()
		unlockMemory()
	}, nil
}

// lockRedis returns a nil unlock func without error when Redis is unavailable.
// Contention timeouts and caller cancellation are returned as errors.
func (m *Manager) lockRedis(ctx context.Context, key string) (func(), error) {
	now := m.nowFn()
	if m.isBreakerActive(now) {
		return nil, nil
	}
	locker, errEnsure := m.ensureRedis(ctx)
	if errEnsure != nil {
		m.tripBreaker(errEnsure, now)
		return nil, nil
	}
	unlock, errLock := locker.Lock(ctx, key)
	if errLock != nil {
		if errors.Is(errLock, ErrLockTimeout) || ctx.Err() != nil {
			return nil, errLock
		}
		m.tripBreaker(errLock, now)
		return nil, nil
	}
	return unlock, nil
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("provider lock: redis unavailable, falling back to in-process lock")
}

func (m *Manager) ensureRedis(ctx context.Context) (*RedisLocker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redisLocker != nil {
		return m.redisLocker, nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     m.cfg.RedisAddr,
		Password: m.cfg.RedisPassword,
		DB:       m.cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redisLocker = NewRedisLocker(client, m.cfg.RedisPrefix, m.cfg.TTL)
	return m.redisLocker, nil
}

// Close releases the Redis client if one was opened.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisLocker == nil {
		return nil
	}
	errClose := m.redisLocker.client.Close()
	m.redisLocker = nil
	return errClose
}
