package config

import (
    "context"
    "crypto/tls"
    "os"
    "strconv"
    "time"

    "github.com/redis/go-redis/v9"
)

// Redis backs four optional concerns: snapshot fan-out between
// processes, the stale-read availability cache, the reserve rate limit
// and presence tracking.  None of them is required for correctness, so
// an unreachable Redis yields a nil client and every caller degrades
// instead of failing startup.
//
// Environment:
//
//	REDIS_ADDR       host:port (default localhost:6379)
//	REDIS_HOST/PORT  split form, wins over REDIS_ADDR when both are set
//	REDIS_PASSWORD   optional
//	REDIS_DB         database number, default 0
//	REDIS_TLS        "1" or "true" enables TLS
func NewRedisClient() *redis.Client {
    opts := &redis.Options{
        Addr:     redisAddr(),
        Password: os.Getenv("REDIS_PASSWORD"),
    }
    if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
        opts.DB = n
    }
    switch os.Getenv("REDIS_TLS") {
    case "1", "true", "TRUE", "True":
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }

    client := redis.NewClient(opts)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}

func redisAddr() string {
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        return host + ":" + port
    }
    if addr := os.Getenv("REDIS_ADDR"); addr != "" {
        return addr
    }
    return "localhost:6379"
}
