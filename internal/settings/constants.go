package settings

import "time"

// Proxy defaults and accepted ranges.
const (
	// DefaultProxyProtocol is applied when a proxy omits its protocol.
	DefaultProxyProtocol = "http"
	// DefaultProxyTimeoutMs is the downstream client timeout in milliseconds.
	DefaultProxyTimeoutMs = 30000
	// MinProxyTimeoutMs is the lowest accepted proxy timeout.
	MinProxyTimeoutMs = 1000
	// MaxProxyTimeoutMs is the highest accepted proxy timeout.
	MaxProxyTimeoutMs = 120000
	// DefaultProxyRetries is the downstream client retry count.
	DefaultProxyRetries = 3
	// MaxProxyRetries is the highest accepted retry count.
	MaxProxyRetries = 10
	// MinProxyPort is the lowest valid TCP port.
	MinProxyPort = 1
	// MaxProxyPort is the highest valid TCP port.
	MaxProxyPort = 65535
)

// Global proxy seed values used when the singleton row is first created.
const (
	// DefaultGlobalProxyHost is the seeded global proxy host.
	DefaultGlobalProxyHost = "127.0.0.1"
	// DefaultGlobalProxyPort is the seeded global proxy port.
	DefaultGlobalProxyPort = 7890
	// GlobalProxyRowID is the fixed primary key of the singleton row.
	GlobalProxyRowID = 1
)

// Lock backend defaults.
const (
	// DefaultLockRedisPrefix is the fallback Redis key prefix for provider locks.
	DefaultLockRedisPrefix = "llmcfg:lock"
	// DefaultLockTTL bounds how long a Redis provider lock may be held.
	DefaultLockTTL = 10 * time.Second
	// DefaultListenAddr is the fallback HTTP listen address.
	DefaultListenAddr = ":8320"
	// DefaultSQLitePath is the default SQLite database file name.
	DefaultSQLitePath = "llmconfig.db"
)
