// Package store provides SQLite-backed durable storage for migration jobs
// and their replication checkpoints.
//
// The store keeps two tables:
//   - jobs: one row per migration scope with its state and last position
//   - job_events: an append-only log of every state transition
//
// # Invariants
//
// Logical ordering: every event carries a seq INTEGER from a per-store
// logical clock. Wall-clock time is never used for ordering.
//
// Monotonic checkpoints: a scope's stored position never moves backwards.
// Checkpoint rejects a regression with ErrCheckpointRegression and treats
// an equal position as a no-op.
//
// Deterministic reads: every query orders by seq ASC or scope COLLATE BINARY.
//
// # Connection Settings
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Transactions take the write lock at BEGIN
//
// The schema version lives in PRAGMA user_version. Open refuses a
// database whose version is newer than this release understands.
//
// Positions are stored in the nine-byte cdc.Position binary form; event
// details are RFC 8785 canonical JSON.
package store
