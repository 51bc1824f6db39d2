package cdc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pglogrepl"

	"github.com/roach88/sluice/internal/ir"
)

const (
	// DefaultSlotPrefix prefixes every slot the tracker creates.
	DefaultSlotPrefix = "sluice"
	// DefaultPlugin is the logical decoding output plugin.
	DefaultPlugin = "test_decoding"
)

// Tracker manages the replication resources of migration scopes.
type Tracker interface {
	// Initialize ensures the scope's slot exists and returns the current
	// position of the source.
	Initialize(ctx context.Context, src Source, scope string) (Position, error)
	// InitializeFromSerialized restores a position written by MarshalBinary.
	InitializeFromSerialized(data []byte) (Position, error)
	// Destroy drops the scope's slot if it exists.
	Destroy(ctx context.Context, src Source, scope string) error
}

// SlotStatus describes a replication slot on the source.
type SlotStatus struct {
	Name       string
	Exists     bool
	Plugin     string
	Active     bool
	RestartLSN Position
}

// PostgresTracker is the Tracker for PostgreSQL 9.6 and later.
type PostgresTracker struct {
	SlotPrefix string
	Plugin     string
	Logger     *slog.Logger
}

var _ Tracker = (*PostgresTracker)(nil)

// NewPostgresTracker returns a tracker with default prefix and plugin.
func NewPostgresTracker(logger *slog.Logger) *PostgresTracker {
	return &PostgresTracker{SlotPrefix: DefaultSlotPrefix, Plugin: DefaultPlugin, Logger: logger}
}

func (t *PostgresTracker) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}

func (t *PostgresTracker) prefix() string {
	if t.SlotPrefix == "" {
		return DefaultSlotPrefix
	}
	return t.SlotPrefix
}

func (t *PostgresTracker) plugin() string {
	if t.Plugin == "" {
		return DefaultPlugin
	}
	return t.Plugin
}

// Initialize implements Tracker. The server version is checked before any
// slot is touched, so an unsupported source is left unchanged.
func (t *PostgresTracker) Initialize(ctx context.Context, src Source, scope string) (Position, error) {
	conn, release, err := src.Acquire(ctx)
	if err != nil {
		return Position{}, ir.NewReplicationError(err, "acquire connection")
	}
	defer release()

	dialect, err := t.dialect(ctx, conn)
	if err != nil {
		return Position{}, err
	}
	slot, err := t.slotName(ctx, conn, scope)
	if err != nil {
		return Position{}, err
	}

	plugin, err := t.slotPlugin(ctx, conn, slot)
	if err != nil {
		return Position{}, err
	}
	if plugin == "" {
		if err := t.createSlot(ctx, conn, slot); err != nil {
			return Position{}, err
		}
	} else if err := t.checkPlugin(slot, plugin); err != nil {
		return Position{}, err
	} else {
		t.logger().Info("reusing replication slot", "slot", slot, "scope", scope)
	}

	var text string
	if err := conn.QueryRow(ctx, dialect.CurrentLSN).Scan(&text); err != nil {
		return Position{}, ir.NewReplicationError(err, "read current WAL position")
	}
	lsn, err := pglogrepl.ParseLSN(text)
	if err != nil {
		return Position{}, ir.NewReplicationError(err, "parse WAL position %q", text)
	}

	pos := NewPosition(lsn)
	t.logger().Debug("initialized position", "slot", slot, "dialect", dialect.Name, "position", pos.String())
	return pos, nil
}

// InitializeFromSerialized implements Tracker.
func (t *PostgresTracker) InitializeFromSerialized(data []byte) (Position, error) {
	return UnmarshalPosition(data)
}

// Destroy implements Tracker. A missing slot is not an error, including one
// dropped by someone else between lookup and drop. The slot is matched by
// name whatever its plugin.
func (t *PostgresTracker) Destroy(ctx context.Context, src Source, scope string) error {
	conn, release, err := src.Acquire(ctx)
	if err != nil {
		return ir.NewReplicationError(err, "acquire connection")
	}
	defer release()

	slot, err := t.slotName(ctx, conn, scope)
	if err != nil {
		return err
	}
	plugin, err := t.slotPlugin(ctx, conn, slot)
	if err != nil {
		return err
	}
	if plugin == "" {
		t.logger().Debug("replication slot already absent", "slot", slot)
		return nil
	}
	err = conn.Exec(ctx, "SELECT pg_drop_replication_slot($1)", slot)
	switch {
	case isUndefinedObject(err):
		t.logger().Info("replication slot dropped concurrently", "slot", slot)
		return nil
	case err != nil:
		return ir.NewReplicationError(err, "drop replication slot %s", slot)
	}
	t.logger().Info("dropped replication slot", "slot", slot, "scope", scope)
	return nil
}

// Status reports the scope's slot as the source sees it.
func (t *PostgresTracker) Status(ctx context.Context, src Source, scope string) (SlotStatus, error) {
	conn, release, err := src.Acquire(ctx)
	if err != nil {
		return SlotStatus{}, ir.NewReplicationError(err, "acquire connection")
	}
	defer release()

	slot, err := t.slotName(ctx, conn, scope)
	if err != nil {
		return SlotStatus{}, err
	}
	st := SlotStatus{Name: slot}
	var restart string
	err = conn.QueryRow(ctx,
		"SELECT plugin, active, COALESCE(restart_lsn::text, '') FROM pg_replication_slots WHERE slot_name = $1",
		slot).Scan(&st.Plugin, &st.Active, &restart)
	if errors.Is(err, ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return SlotStatus{}, ir.NewReplicationError(err, "inspect replication slot %s", slot)
	}
	st.Exists = true
	if restart != "" {
		lsn, err := pglogrepl.ParseLSN(restart)
		if err != nil {
			return SlotStatus{}, ir.NewReplicationError(err, "parse restart position %q", restart)
		}
		st.RestartLSN = NewPosition(lsn)
	}
	return st, nil
}

func (t *PostgresTracker) dialect(ctx context.Context, conn Conn) (Dialect, error) {
	var raw string
	if err := conn.QueryRow(ctx, "SHOW server_version_num").Scan(&raw); err != nil {
		return Dialect{}, ir.NewReplicationError(err, "read server version")
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return Dialect{}, &ir.Error{
			Kind:    ir.KindUnsupportedSourceVersion,
			Message: fmt.Sprintf("unrecognized server_version_num %q", raw),
			Err:     err,
		}
	}
	return DialectFor(n)
}

func (t *PostgresTracker) slotName(ctx context.Context, conn Conn, scope string) (string, error) {
	var catalog string
	if err := conn.QueryRow(ctx, "SELECT current_database()").Scan(&catalog); err != nil {
		return "", ir.NewReplicationError(err, "read current database")
	}
	return SlotName(t.prefix(), catalog, scope), nil
}

// slotPlugin returns the output plugin of slot, or "" when it does not exist.
func (t *PostgresTracker) slotPlugin(ctx context.Context, conn Conn, slot string) (string, error) {
	var plugin string
	err := conn.QueryRow(ctx,
		"SELECT COALESCE((SELECT plugin FROM pg_replication_slots WHERE slot_name = $1), '')",
		slot).Scan(&plugin)
	if err != nil {
		return "", ir.NewReplicationError(err, "look up replication slot %s", slot)
	}
	return plugin, nil
}

// checkPlugin rejects a slot that decodes with a plugin other than ours.
func (t *PostgresTracker) checkPlugin(slot, plugin string) error {
	if plugin == "" || plugin == t.plugin() {
		return nil
	}
	return ir.NewReplicationError(nil, "replication slot %s uses plugin %s, want %s", slot, plugin, t.plugin())
}

func (t *PostgresTracker) createSlot(ctx context.Context, conn Conn, slot string) error {
	var created string
	err := conn.QueryRow(ctx,
		"SELECT slot_name FROM pg_create_logical_replication_slot($1, $2)",
		slot, t.plugin()).Scan(&created)
	switch {
	case err == nil:
		t.logger().Info("created replication slot", "slot", slot, "plugin", t.plugin())
		return nil
	case isDuplicateObject(err):
		t.logger().Info("replication slot created concurrently", "slot", slot)
		plugin, err := t.slotPlugin(ctx, conn, slot)
		if err != nil {
			return err
		}
		return t.checkPlugin(slot, plugin)
	default:
		return ir.NewReplicationError(err, "create replication slot %s", slot)
	}
}
