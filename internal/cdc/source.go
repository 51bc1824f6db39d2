package cdc

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRows is returned by Row.Scan when a query produced no rows.
var ErrNoRows = errors.New("cdc: no rows in result set")

// Row is a single query result.
type Row interface {
	Scan(dest ...any) error
}

// Conn is one acquired connection to a source.
type Conn interface {
	QueryRow(ctx context.Context, query string, args ...any) Row
	Exec(ctx context.Context, query string, args ...any) error
}

// Source hands out connections. Every successful Acquire must be paired
// with exactly one call to release.
type Source interface {
	Acquire(ctx context.Context) (conn Conn, release func(), err error)
}

// PgxSource adapts a pgx connection pool.
type PgxSource struct {
	Pool *pgxpool.Pool
}

// Acquire implements Source.
func (s PgxSource) Acquire(ctx context.Context) (Conn, func(), error) {
	c, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pgxConn{c}, c.Release, nil
}

type pgxConn struct {
	c *pgxpool.Conn
}

func (p pgxConn) QueryRow(ctx context.Context, query string, args ...any) Row {
	return pgxRow{p.c.QueryRow(ctx, query, args...)}
}

func (p pgxConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := p.c.Exec(ctx, query, args...)
	return err
}

type pgxRow struct {
	row pgx.Row
}

func (r pgxRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	return err
}

// SQLSource adapts a database/sql handle, typically opened with the
// lib/pq "postgres" driver.
type SQLSource struct {
	DB *sql.DB
}

// Acquire implements Source.
func (s SQLSource) Acquire(ctx context.Context) (Conn, func(), error) {
	c, err := s.DB.Conn(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sqlConn{c}, func() { _ = c.Close() }, nil
}

type sqlConn struct {
	c *sql.Conn
}

func (s sqlConn) QueryRow(ctx context.Context, query string, args ...any) Row {
	return sqlRow{s.c.QueryRowContext(ctx, query, args...)}
}

func (s sqlConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.c.ExecContext(ctx, query, args...)
	return err
}

type sqlRow struct {
	row *sql.Row
}

func (r sqlRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	return err
}
