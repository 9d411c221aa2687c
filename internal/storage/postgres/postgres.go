// Package postgres reads the core node tables (history, names, accounts) from PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// applicationName tags explorer sessions in pg_stat_activity on the core database.
const applicationName = "stacks-explorer-api"

// pingTimeout bounds the startup check so a dead core database fails fast.
const pingTimeout = 10 * time.Second

// Pool is the connection pool shared by the core stores.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to the core database named by dsn. An application_name already
// present in dsn is kept.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse core database dsn: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	inner, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open core database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := inner.Ping(pingCtx); err != nil {
		inner.Close()
		return nil, fmt.Errorf("reach core database %s: %w", cfg.ConnConfig.Host, err)
	}
	return &Pool{Pool: inner}, nil
}

// Close releases every pooled connection.
func (p *Pool) Close() {
	p.Pool.Close()
}

// noRows reports whether a QueryRow scan found nothing.
func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
