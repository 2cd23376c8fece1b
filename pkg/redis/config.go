package redis

import "time"

// Config configures the Redis client shared by the status cache, the
// webhook deduplicator and the rate limiter.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	PoolSize       int           `env:"REDIS_POOL_SIZE"`
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"tradedesk:"`
}
