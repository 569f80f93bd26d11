package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time provides duration types for hold and sweep policy
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Policy defaults (hold TTL, reclaim interval,
// high-demand threshold) are applied when the variable is unset.
type Config struct {
    Env                 string        // application environment (e.g. "dev", "prod")
    Port                string        // HTTP port to listen on
    DBUser              string        // database username
    DBPass              string        // database password (optional)
    DBHost              string        // database host address
    DBPort              string        // database port number
    DBName              string        // database name
    JWTSecret           string        // secret used to verify bearer tokens
    HoldTTL             time.Duration // how long a reservation hold stays valid
    ReclaimInterval     time.Duration // how often the expiry reclaimer sweeps
    ReclaimBatchSize    int           // max holds released per sweep
    HighDemandThreshold float64       // usage ratio that triggers the high-demand signal
    RateLimitPerMinute  int           // reserve requests allowed per client per minute
    LogLevel            string        // zap log level (debug/info/warn/error)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:                 must("APP_ENV"),      // environment (dev/test/prod)
        Port:                must("APP_PORT"),     // port to bind the HTTP server
        DBUser:              must("DB_USER"),      // database user
        DBPass:              os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:              must("DB_HOST"),      // database host
        DBPort:              must("DB_PORT"),      // database port
        DBName:              must("DB_NAME"),      // database name
        JWTSecret:           must("JWT_SECRET"),   // secret used to verify JWTs
        HoldTTL:             minutes("HOLD_TTL_MIN", 15),            // hold duration, default 15 minutes
        ReclaimInterval:     seconds("RECLAIM_INTERVAL_SEC", 60),    // sweep interval, default one minute
        ReclaimBatchSize:    intDefault("RECLAIM_BATCH_SIZE", 200),  // bound work per sweep
        HighDemandThreshold: floatDefault("HIGH_DEMAND_THRESHOLD", 0.8), // 80% usage by default
        RateLimitPerMinute:  intDefault("RESERVE_RATE_PER_MIN", 30), // per-client reserve budget
        LogLevel:            getenv("LOG_LEVEL", "info"),            // zap level
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// getenv returns the variable's value or def when unset.
func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

// intDefault parses an optional integer variable, falling back to def on
// absence or parse failure.
func intDefault(key string, def int) int {
    if s := os.Getenv(key); s != "" {
        if n, err := strconv.Atoi(s); err == nil && n > 0 {
            return n
        }
        log.Printf("config: invalid int for %s: %q, using %d", key, os.Getenv(key), def)
    }
    return def
}

// floatDefault parses an optional float variable in (0, 1], falling back
// to def otherwise.
func floatDefault(key string, def float64) float64 {
    if s := os.Getenv(key); s != "" {
        if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
            return f
        }
        log.Printf("config: invalid ratio for %s: %q, using %v", key, os.Getenv(key), def)
    }
    return def
}

// minutes reads an optional integer variable expressed in minutes.
func minutes(key string, def int) time.Duration {
    return time.Duration(intDefault(key, def)) * time.Minute
}

// seconds reads an optional integer variable expressed in seconds.
func seconds(key string, def int) time.Duration {
    return time.Duration(intDefault(key, def)) * time.Second
}
