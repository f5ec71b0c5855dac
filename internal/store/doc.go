// Package store is the SQLite run ledger.
//
// It records what happened in each run, not the data the run produced:
//   - runs: one row per run with its pipeline hash and final status
//   - node_events: every node state transition, in logical-clock order
//   - validation_failures: the nodes that failed static validation
//
// # Invariants
//
// All ordering uses seq INTEGER (the engine's logical clock), never
// timestamps, so a recorded trace reads back identically every time.
//
// Writes are idempotent: a node reaches each state at most once per run,
// enforced by UNIQUE(run_id, node_id, state) with ON CONFLICT DO NOTHING.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// *Store implements engine.Recorder, so passing it to engine.WithRecorder
// is all it takes to keep a ledger.
package store
