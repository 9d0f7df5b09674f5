// Package store provides SQLite-backed history of version decisions.
//
// Every run appends one decisions row plus one tactic_outcomes row per
// tactic considered, giving an audit trail of how each reference point and
// bump was reached. Nothing in a run ever reads history back; it exists for
// the history command and for humans.
//
// # Ordering
//
// Rows are ordered by seq, an autoincrement column, never by created_at:
// wall clocks on CI runners are not trusted to be monotonic.
//
// # Migrations
//
// schema.sql creates the base tables; numbered steps on top of it are
// tracked in PRAGMA user_version. Version 2 installs triggers that abort any
// UPDATE or DELETE of recorded decisions, so the append-only rule holds for
// every writer, not only this package. A database from a newer release is
// refused.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
