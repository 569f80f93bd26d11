// Package database opens the MySQL pool backing the capacity counters
// and the reservation ledger.
package database

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    _ "github.com/go-sql-driver/mysql" // MySQL driver, registered via side effect
)

// Pool sizing reflects the write pattern: a reserve for quantity n issues
// n small conditional updates concurrently, so short bursts of many tiny
// statements are the norm rather than long-running queries.
const (
    maxOpenConns    = 50
    maxIdleConns    = 25
    connMaxLifetime = 30 * time.Minute
    pingTimeout     = 5 * time.Second
)

// Open connects to MySQL and verifies the connection before returning.
// parseTime maps DATETIME columns onto time.Time and loc=UTC keeps every
// expiry comparison in one zone.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
    dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
        user, pass, host, port, name)
    if pass == "" {
        dsn = fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
            user, host, port, name)
    }

    db, err := sql.Open("mysql", dsn)
    if err != nil {
        return nil, fmt.Errorf("open mysql: %w", err)
    }
    db.SetMaxOpenConns(maxOpenConns)
    db.SetMaxIdleConns(maxIdleConns)
    db.SetConnMaxLifetime(connMaxLifetime)

    ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        db.Close()
        return nil, fmt.Errorf("ping mysql: %w", err)
    }
    return db, nil
}
