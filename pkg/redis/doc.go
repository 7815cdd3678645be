// Package redis provides helpers for connecting to the Redis server that
// backs the shared rate-limit store.
//
// Connect retries the initial connection using the supplied configuration,
// Healthcheck returns a check function suitable for liveness endpoints.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	store, err := ratelimit.NewRedisStore(client)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	limiter, err := ratelimit.NewChannelLimiter(store, ratelimit.DefaultConfig())
//
// Errors are sentinel values comparable with errors.Is:
// ErrFailedToParseRedisConnString, ErrRedisNotReady, ErrHealthcheckFailed.
package redis
