// Package datasource keeps the named physical data sources a process talks
// to, together with their logical-to-actual schema mapping.
//
// A Registry is an explicit object passed to whatever needs a connection;
// there is no process-wide instance.
package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/roach88/sluice/internal/cdc"
)

// Supported drivers.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// connectTimeout bounds pool creation and the initial ping.
const connectTimeout = 5 * time.Second

// Config describes one data source.
type Config struct {
	Name   string
	Driver string
	DSN    string
	// Schemas maps logical schema names to the source's actual names.
	Schemas  map[string]string
	MaxConns int32
}

type entry struct {
	source  cdc.Source
	schemas map[string]string
	close   func() error
}

// Registry holds named data sources. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*entry
	logger  *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{sources: make(map[string]*entry), logger: logger}
}

// Register adds an already-connected source. closer may be nil.
func (r *Registry) Register(name string, src cdc.Source, schemas map[string]string, closer func() error) error {
	if name == "" {
		return errors.New("datasource: empty name")
	}
	if src == nil {
		return fmt.Errorf("datasource %s: nil source", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sources[name]; dup {
		return fmt.Errorf("datasource %s: already registered", name)
	}
	m := make(map[string]string, len(schemas))
	for k, v := range schemas {
		m[k] = v
	}
	r.sources[name] = &entry{source: src, schemas: m, close: closer}
	return nil
}

// Open connects cfg with its driver and registers the result.
func (r *Registry) Open(ctx context.Context, cfg Config) error {
	src, closer, err := connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("datasource %s: %w", cfg.Name, err)
	}
	if err := r.Register(cfg.Name, src, cfg.Schemas, closer); err != nil {
		_ = closer()
		return err
	}
	r.logger.Info("opened data source", "name", cfg.Name, "driver", cfg.Driver)
	return nil
}

func connect(ctx context.Context, cfg Config) (cdc.Source, func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Driver {
	case DriverPgx, "":
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("parse config: %w", err)
		}
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return nil, nil, fmt.Errorf("create pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping: %w", err)
		}
		return cdc.PgxSource{Pool: pool}, func() error { pool.Close(); return nil }, nil

	case DriverPostgres:
		db, err := sql.Open(DriverPostgres, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open: %w", err)
		}
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(int(cfg.MaxConns))
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping: %w", err)
		}
		return cdc.SQLSource{DB: db}, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// Source returns the named source.
func (r *Registry) Source(name string) (cdc.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("datasource %s: not registered", name)
	}
	return e.source, nil
}

// ActualSchema maps a logical schema name to the source's name for it.
// Unmapped schemas keep their logical name.
func (r *Registry) ActualSchema(name, logical string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sources[name]; ok {
		if actual, ok := e.schemas[logical]; ok {
			return actual
		}
	}
	return logical
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for name := range r.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every source and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, e := range r.sources {
		if e.close != nil {
			if err := e.close(); err != nil {
				errs = append(errs, fmt.Errorf("datasource %s: %w", name, err))
			}
		}
	}
	r.sources = make(map[string]*entry)
	return errors.Join(errs...)
}
