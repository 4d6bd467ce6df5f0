// Package redis provides helpers for connecting the session store to a
// Redis server.
//
// Connect retries the connection using the supplied configuration and
// returns a ready *redis.Client; Healthcheck integrates the connection into
// liveness and readiness probes. Config fields can be populated from
// environment variables via the config package.
//
//	cfg := redis.Config{
//	    ConnectionURL:  "redis://localhost:6379/0",
//	    RetryAttempts:  3,
//	    RetryInterval:  5 * time.Second,
//	    ConnectTimeout: 30 * time.Second,
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    // terminate: sessions cannot be stored
//	}
//	store := session.NewRedisStore(client)
package redis
