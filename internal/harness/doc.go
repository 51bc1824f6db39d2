// Package harness runs routing conformance scenarios.
//
// A scenario names a rule file and a list of steps. Each step hands
// statement facts (or a result row) to a coordinator built from the rules
// and records what came back as a trace event:
//
//	name: order-routing
//	description: orders fan out by user and order id
//	rules: ../rules.yaml
//	steps:
//	  - op: route
//	    facts:
//	      table: t_order
//	      sharding_values:
//	        - {column: user_id, value: 1}
//	        - {column: order_id, value: 4}
//	    expect:
//	      units: [ds_1.t_order_0]
//	assertions:
//	  - type: trace_count
//	    op: route
//	    count: 1
//
// Steps are checked against their expect clause as they run; assertions are
// evaluated over the whole trace afterwards. Traces serialize to canonical
// JSON, so golden files are byte-stable across runs and platforms.
//
// # Operations
//
//   - route: Coordinator.Route; expect units (in order) or error
//   - write: Coordinator.RewriteForWrite; expect columns and values
//   - plan: Coordinator.Plan; expect units, columns and values
//   - read: Coordinator.RewriteForRead on one row; expect values
//
// An expected error is an error kind ("ENCRYPTION") or a routing reason
// ("NO_TARGET").
package harness
