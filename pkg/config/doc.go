// Package config provides a type-safe, generic and cached way to load
// service configuration from environment variables.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`:
// the default `.env` file is loaded once per process, then environment
// variables are parsed into annotated structs. Each configuration type is
// parsed at most once and served from an in-memory cache afterwards, so
// every component can call Load for its own Config without coordination.
//
// # Usage
//
// Annotate a struct with `env` tags:
//
//	type QueueConfig struct {
//	    TTL       time.Duration `env:"REALTIME_QUEUE_TTL" envDefault:"1h"`
//	    Limit     int           `env:"REALTIME_QUEUE_LIMIT" envDefault:"100"`
//	    RedisURL  string        `env:"REDIS_URL,required"`
//	}
//
// Then populate it:
//
//	var cfg QueueConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatalf("parsing env: %v", err)
//	}
//
// Subsequent calls to `config.Load(&cfg)` for the same type are served from
// the cache without re-parsing.
//
// # Error Handling
//
// Sentinel errors comparable with `errors.Is`:
//
//   - ErrParsingConfig: failed to parse env vars into the struct.
//   - ErrConfigNotLoaded: requested type has not been loaded yet.
//   - ErrNilPointer: nil pointer passed to Load/MustLoad.
//   - ErrLoadingEnvFile: a .env file passed to LoadEnv could not be read.
//
// # Testing Helpers
//
// ResetCache clears the global cache between tests; ForceReloadConfig
// re-parses one struct after the process environment changes. LoadEnv
// loads additional .env files before parsing.
package config
