package redis

import "time"

// Config describes the connection to the Redis instance backing the shared
// rate-limit store. ConnectionURL uses the standard redis URL form,
// "redis://:password@host:6379/0".
type Config struct {
	ConnectionURL  string        `env:"RATELIMIT_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"RATELIMIT_REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"RATELIMIT_REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"RATELIMIT_REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}
