package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/sluice/internal/cdc"
	"github.com/roach88/sluice/internal/config"
	"github.com/roach88/sluice/internal/coordinator"
	"github.com/roach88/sluice/internal/datasource"
	"github.com/roach88/sluice/internal/migration"
	"github.com/roach88/sluice/internal/rule"
	"github.com/roach88/sluice/internal/store"
)

// environment holds the process dependencies commands reach for.
type environment struct {
	// openSources resolves data-source names for cdc commands. The returned
	// function closes every source opened.
	openSources func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (migration.Sources, func() error, error)
}

func defaultEnvironment() *environment {
	return &environment{openSources: openRegistry}
}

// openRegistry connects data sources lazily: every name resolves to the one
// configured DSN, opened on first use.
func openRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (migration.Sources, func() error, error) {
	reg := datasource.NewRegistry(logger)
	return &lazySources{ctx: ctx, cfg: cfg, reg: reg}, reg.Close, nil
}

type lazySources struct {
	ctx context.Context
	cfg *config.Config
	reg *datasource.Registry
	mu  sync.Mutex
}

func (l *lazySources) Source(name string) (cdc.Source, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if src, err := l.reg.Source(name); err == nil {
		return src, nil
	}
	if l.cfg.Source.DSN == "" {
		return nil, fmt.Errorf("data source %s: no DSN configured (set --dsn or SLUICE_SOURCE_DSN)", name)
	}
	if err := l.reg.Open(l.ctx, l.cfg.DataSource(name)); err != nil {
		return nil, err
	}
	return l.reg.Source(name)
}

// loadConfig resolves configuration from --config, the environment and the
// command's flags.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.Options{File: o.ConfigFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// coordinator builds a coordinator from the configured rule file.
func (o *RootOptions) coordinator(cmd *cobra.Command) (*coordinator.Coordinator, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Rules == "" {
		return nil, NewExitError(ExitCommandError, "no rule file configured (set --rules or SLUICE_RULES)")
	}
	c, err := rule.BuildFile(cfg.Rules,
		coordinator.WithLogger(o.logger()),
		coordinator.WithMetrics(o.instruments()),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load rules", err)
	}
	o.logger().Debug("loaded rules", "path", cfg.Rules, "tables", len(c.Tables()))
	return c, nil
}

// session is an open store plus migration manager for cdc commands.
type session struct {
	manager *migration.Manager
	close   func()
}

func (o *RootOptions) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := o.logger()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	sources, closeSources, err := o.env.openSources(cmd.Context(), cfg, logger)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to configure sources", err)
	}

	tracker := cdc.NewPostgresTracker(logger)
	tracker.SlotPrefix = cfg.SlotPrefix

	mgr := migration.New(st, tracker, sources,
		migration.WithLogger(logger),
		migration.WithMetrics(o.instruments()),
		migration.WithConcurrency(cfg.Concurrency),
	)
	return &session{
		manager: mgr,
		close: func() {
			if err := closeSources(); err != nil {
				logger.Warn("closing sources", "error", err)
			}
			if err := st.Close(); err != nil {
				logger.Warn("closing store", "error", err)
			}
		},
	}, nil
}
