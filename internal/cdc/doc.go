// Package cdc tracks change-data-capture positions on PostgreSQL sources.
//
// A Tracker prepares a source for ingestion by ensuring a logical replication
// slot exists for a migration scope, then reports the current WAL position
// as an opaque Position. Positions serialize to a fixed nine-byte form so a
// checkpoint written by one process can be resumed by another.
//
// Slot creation and removal are idempotent. The tracker never retries; a
// failed call leaves the decision to the caller.
package cdc
