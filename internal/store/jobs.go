package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sluice/internal/cdc"
	"github.com/roach88/sluice/internal/ir"
)

// State is the lifecycle state of a migration job.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateInitialized   State = "INITIALIZED"
	StateDestroyed     State = "DESTROYED"
)

// Event kinds recorded in job_events.
const (
	EventCreated     = "created"
	EventInitialized = "initialized"
	EventCheckpoint  = "checkpoint"
	EventDestroyed   = "destroyed"
)

var (
	// ErrNotFound is returned when a scope has no job.
	ErrNotFound = errors.New("store: job not found")
	// ErrCheckpointRegression is returned when a checkpoint would move a
	// scope's position backwards.
	ErrCheckpointRegression = errors.New("store: checkpoint moves position backwards")
	// ErrInvalidState is returned for a transition the job's state forbids.
	ErrInvalidState = errors.New("store: invalid job state")
)

// Job is one migration scope.
type Job struct {
	Scope      string
	JobID      string
	DataSource string
	State      State
	Position   cdc.Position
	Seq        int64
}

// Event is one entry of a job's append-only history.
type Event struct {
	Seq      int64
	Scope    string
	Kind     string
	Position cdc.Position
	Detail   ir.IRObject
}

// CreateJob inserts a job in state UNINITIALIZED. Creating a scope that
// already exists is a no-op and returns the stored job.
func (s *Store) CreateJob(ctx context.Context, scope, jobID, dataSource string) (Job, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE scope = ?)`, scope).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		seq, err := nextSeq(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (scope, job_id, data_source, state, position, seq)
			VALUES (?, ?, ?, ?, NULL, ?)
		`, scope, jobID, dataSource, string(StateUninitialized), seq); err != nil {
			return err
		}
		return appendEvent(ctx, tx, seq, scope, EventCreated, cdc.Position{},
			ir.IRObject{"job_id": ir.IRString(jobID), "data_source": ir.IRString(dataSource)})
	})
	if err != nil {
		return Job{}, fmt.Errorf("create job %s: %w", scope, err)
	}
	return s.Job(ctx, scope)
}

// MarkInitialized records the position a tracker returned for scope.
func (s *Store) MarkInitialized(ctx context.Context, scope string, pos cdc.Position) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		job, err := jobTx(ctx, tx, scope)
		if err != nil {
			return err
		}
		if job.State == StateDestroyed {
			return fmt.Errorf("%w: %s is %s", ErrInvalidState, scope, job.State)
		}
		if job.State == StateInitialized && pos.Compare(job.Position) < 0 {
			return fmt.Errorf("%w: %s < %s", ErrCheckpointRegression, pos, job.Position)
		}
		return transition(ctx, tx, scope, StateInitialized, pos, EventInitialized)
	})
	if err != nil {
		return fmt.Errorf("mark initialized %s: %w", scope, err)
	}
	return nil
}

// Checkpoint advances scope's durable position. Positions never move
// backwards; repeating the current position changes nothing.
func (s *Store) Checkpoint(ctx context.Context, scope string, pos cdc.Position) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		job, err := jobTx(ctx, tx, scope)
		if err != nil {
			return err
		}
		if job.State != StateInitialized {
			return fmt.Errorf("%w: %s is %s", ErrInvalidState, scope, job.State)
		}
		switch c := pos.Compare(job.Position); {
		case c < 0:
			return fmt.Errorf("%w: %s < %s", ErrCheckpointRegression, pos, job.Position)
		case c == 0:
			return nil
		}
		return transition(ctx, tx, scope, StateInitialized, pos, EventCheckpoint)
	})
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", scope, err)
	}
	return nil
}

// MarkDestroyed records that scope's replication resources are gone. The
// last position is kept for auditing.
func (s *Store) MarkDestroyed(ctx context.Context, scope string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		job, err := jobTx(ctx, tx, scope)
		if err != nil {
			return err
		}
		if job.State == StateDestroyed {
			return nil
		}
		return transition(ctx, tx, scope, StateDestroyed, job.Position, EventDestroyed)
	})
	if err != nil {
		return fmt.Errorf("mark destroyed %s: %w", scope, err)
	}
	return nil
}

// Job returns the job for scope, or ErrNotFound.
func (s *Store) Job(ctx context.Context, scope string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT scope, job_id, data_source, state, position, seq
		FROM jobs WHERE scope = ?
	`, scope)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, scope)
	}
	return job, err
}

// Jobs returns every job ordered by scope.
//
// Returns an empty slice (not nil) when there are none.
func (s *Store) Jobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, job_id, data_source, state, position, seq
		FROM jobs
		ORDER BY scope COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Events returns scope's history in seq order.
func (s *Store) Events(ctx context.Context, scope string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, scope, kind, position, detail
		FROM job_events
		WHERE scope = ?
		ORDER BY seq ASC
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			ev     Event
			pos    []byte
			detail string
		)
		if err := rows.Scan(&ev.Seq, &ev.Scope, &ev.Kind, &pos, &detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Position, err = unmarshalPosition(pos); err != nil {
			return nil, err
		}
		if ev.Detail, err = unmarshalDetail(detail); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (Job, error) {
	var (
		job   Job
		state string
		pos   []byte
	)
	if err := row.Scan(&job.Scope, &job.JobID, &job.DataSource, &state, &pos, &job.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, err
		}
		return Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.State = State(state)
	p, err := unmarshalPosition(pos)
	if err != nil {
		return Job{}, err
	}
	job.Position = p
	return job, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func jobTx(ctx context.Context, tx *sql.Tx, scope string) (Job, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT scope, job_id, data_source, state, position, seq
		FROM jobs WHERE scope = ?
	`, scope)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, scope)
	}
	return job, err
}

// nextSeq returns the next value of the store's logical clock.
func nextSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM job_events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

func transition(ctx context.Context, tx *sql.Tx, scope string, state State, pos cdc.Position, kind string) error {
	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return err
	}
	blob, err := marshalPosition(pos)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = ?, position = ?, seq = ? WHERE scope = ?
	`, string(state), blob, seq, scope); err != nil {
		return err
	}
	return appendEvent(ctx, tx, seq, scope, kind, pos, nil)
}

func appendEvent(ctx context.Context, tx *sql.Tx, seq int64, scope, kind string, pos cdc.Position, detail ir.IRObject) error {
	blob, err := marshalPosition(pos)
	if err != nil {
		return err
	}
	text, err := marshalDetail(detail)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_events (seq, scope, kind, position, detail)
		VALUES (?, ?, ?, ?, ?)
	`, seq, scope, kind, blob, text)
	return err
}
