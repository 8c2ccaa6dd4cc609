package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Config holds database connection configuration
type Config struct {
	DSN            string
	ConnectTimeout time.Duration
}

// Connector opens a fresh connection for every store operation. Nothing is
// shared between calls, so a broken connection cannot leak into the next one.
type Connector struct {
	connConfig *pgx.ConnConfig
}

// NewConnector parses the DSN once; connections are opened lazily by Do.
func NewConnector(cfg Config) (*Connector, error) {
	connConfig, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, domain.Wrap(domain.ErrMissingConfig, fmt.Errorf("failed to parse database config: %w", err))
	}

	if cfg.ConnectTimeout > 0 {
		connConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	return &Connector{connConfig: connConfig}, nil
}

// Do opens a connection, runs fn and closes the connection.
func (c *Connector) Do(ctx context.Context, fn func(conn *pgx.Conn) error) error {
	conn, err := pgx.ConnectConfig(ctx, c.connConfig.Copy())
	if err != nil {
		return domain.Wrap(domain.ErrStoreConnect, err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	return fn(conn)
}

// Ping verifies the database is reachable.
func (c *Connector) Ping(ctx context.Context) error {
	return c.Do(ctx, func(conn *pgx.Conn) error {
		return conn.Ping(ctx)
	})
}
