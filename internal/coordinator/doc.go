// Package coordinator turns statement facts into an execution plan.
//
// A Coordinator holds a frozen rule set: sharded tables with their data nodes
// and strategies, encrypted columns with their algorithms, and the homes of
// unsharded tables. For each statement it resolves physical targets
// (database strategy first, then table strategy, restricted to configured
// data nodes), encrypts literals bound for encrypted columns and marks result
// columns for decryption. Any failure aborts the whole statement; callers
// never receive a partially routed or partially rewritten plan.
//
// A Coordinator is immutable after New and safe for concurrent use.
package coordinator
