// Package database opens the PostgreSQL pool behind the user, points and
// route-history stores and owns their schema.
package database

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the connection and pool configuration, filled from config.Config.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectTimeout bounds the startup ping retries; 0 means 30s.
	ConnectTimeout time.Duration
}

const defaultConnectTimeout = 30 * time.Second

// ConnectionString returns the postgres:// URL with credentials escaped.
func (c Config) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// PoolConfig parses the connection string and applies the pool limits. Idle
// connections are kept warm up to MaxOpenConns.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if c.MaxOpenConns > 0 {
		pc.MaxConns = int32(c.MaxOpenConns) //nolint:gosec // validated by config
	}
	if idle := min(c.MaxIdleConns, int(pc.MaxConns)); idle > 0 {
		pc.MinConns = int32(idle) //nolint:gosec // bounded by MaxConns
	}
	if c.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = c.ConnMaxLifetime
	}
	return pc, nil
}

// Connect opens the pool and pings until the database answers or
// ConnectTimeout passes, so the API can start alongside its database.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = timeout

	if err := backoff.Retry(func() error { return pool.Ping(ctx) }, backoff.WithContext(bo, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
