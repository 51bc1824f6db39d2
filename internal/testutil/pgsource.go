package testutil

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roach88/sluice/internal/cdc"
)

// Slot is a replication slot held by a FakeSource.
type Slot struct {
	Plugin string
	Active bool
}

// FakeSource is an in-memory PostgreSQL source that answers exactly the
// queries cdc.PostgresTracker issues.
//
// It checks the WAL function against VersionNum, so a tracker that picks the
// wrong dialect fails just as it would against a real server.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeSource struct {
	VersionNum int
	Database   string
	Clock      *LSNClock

	// RaceOnCreate makes the next slot creation find the slot already
	// present, as if another process created it between check and create.
	RaceOnCreate bool
	// RaceOnDrop makes the next slot drop find the slot already gone, as
	// if another process dropped it between lookup and drop.
	RaceOnDrop bool
	// AcquireErr fails every Acquire.
	AcquireErr error
	// Failures injects an error into any query containing the key.
	Failures map[string]error

	mu       sync.Mutex
	slots    map[string]Slot
	queries  []string
	acquired int
	released int
}

// NewFakeSource returns a PostgreSQL 16 source for database "demo".
func NewFakeSource() *FakeSource {
	return &FakeSource{
		VersionNum: 160002,
		Database:   "demo",
		Clock:      NewLSNClock(0x16B3740, 0x100),
		slots:      make(map[string]Slot),
	}
}

// Acquire implements cdc.Source.
func (f *FakeSource) Acquire(ctx context.Context) (cdc.Conn, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AcquireErr != nil {
		return nil, nil, f.AcquireErr
	}
	f.acquired++
	var once sync.Once
	release := func() {
		once.Do(func() {
			f.mu.Lock()
			f.released++
			f.mu.Unlock()
		})
	}
	return &fakeConn{src: f}, release, nil
}

// Slots returns a copy of the slots currently defined.
func (f *FakeSource) Slots() map[string]Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]Slot, len(f.slots))
	for k, v := range f.slots {
		out[k] = v
	}
	return out
}

// AddSlot defines a slot as if created out of band.
func (f *FakeSource) AddSlot(name, plugin string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensure()
	f.slots[name] = Slot{Plugin: plugin}
}

// Queries returns every statement issued so far, in order.
func (f *FakeSource) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// Balanced reports whether every acquired connection was released.
func (f *FakeSource) Balanced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired == f.released
}

// Acquired returns the number of connections handed out.
func (f *FakeSource) Acquired() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired
}

func (f *FakeSource) ensure() {
	if f.slots == nil {
		f.slots = make(map[string]Slot)
	}
}

type fakeConn struct {
	src *FakeSource
}

func (c *fakeConn) QueryRow(ctx context.Context, query string, args ...any) cdc.Row {
	if err := ctx.Err(); err != nil {
		return fakeRow{err: err}
	}
	vals, err := c.src.query(query, args)
	return fakeRow{vals: vals, err: err}
}

func (c *fakeConn) Exec(ctx context.Context, query string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.src.query(query, args)
	return err
}

func (f *FakeSource) query(q string, args []any) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensure()
	f.queries = append(f.queries, q)

	for key, err := range f.Failures {
		if strings.Contains(q, key) {
			return nil, err
		}
	}

	switch {
	case q == "SHOW server_version_num":
		return []any{strconv.Itoa(f.VersionNum)}, nil

	case strings.Contains(q, "current_database()"):
		return []any{f.Database}, nil

	case strings.Contains(q, "COALESCE((SELECT plugin FROM pg_replication_slots"):
		return []any{f.slots[arg(args, 0)].Plugin}, nil

	case strings.Contains(q, "pg_create_logical_replication_slot"):
		name := arg(args, 0)
		if f.RaceOnCreate {
			f.RaceOnCreate = false
			f.slots[name] = Slot{Plugin: arg(args, 1)}
		}
		if _, ok := f.slots[name]; ok {
			return nil, &pgconn.PgError{Code: "42710", Message: fmt.Sprintf("replication slot %q already exists", name)}
		}
		f.slots[name] = Slot{Plugin: arg(args, 1)}
		return []any{name}, nil

	case strings.Contains(q, "pg_drop_replication_slot"):
		name := arg(args, 0)
		if f.RaceOnDrop {
			f.RaceOnDrop = false
			delete(f.slots, name)
		}
		if _, ok := f.slots[name]; !ok {
			return nil, &pgconn.PgError{Code: "42704", Message: fmt.Sprintf("replication slot %q does not exist", name)}
		}
		delete(f.slots, name)
		return nil, nil

	case strings.Contains(q, "FROM pg_replication_slots WHERE slot_name"):
		s, ok := f.slots[arg(args, 0)]
		if !ok {
			return nil, cdc.ErrNoRows
		}
		return []any{s.Plugin, s.Active, f.Clock.Current().String()}, nil

	case strings.Contains(q, "pg_current_wal_lsn()"):
		if f.VersionNum < 100000 {
			return nil, &pgconn.PgError{Code: "42883", Message: "function pg_current_wal_lsn() does not exist"}
		}
		return []any{f.Clock.Next().String()}, nil

	case strings.Contains(q, "pg_current_xlog_location()"):
		if f.VersionNum >= 100000 {
			return nil, &pgconn.PgError{Code: "42883", Message: "function pg_current_xlog_location() does not exist"}
		}
		return []any{f.Clock.Next().String()}, nil
	}
	return nil, fmt.Errorf("fake source: unexpected query %q", q)
}

func arg(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("fake source: scan of %d columns into %d targets", len(r.vals), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			s, ok := r.vals[i].(string)
			if !ok {
				return fmt.Errorf("fake source: column %d is %T, not string", i, r.vals[i])
			}
			*p = s
		case *bool:
			b, ok := r.vals[i].(bool)
			if !ok {
				return fmt.Errorf("fake source: column %d is %T, not bool", i, r.vals[i])
			}
			*p = b
		default:
			return errors.New("fake source: unsupported scan target")
		}
	}
	return nil
}
