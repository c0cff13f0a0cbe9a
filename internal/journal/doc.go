// Package journal provides SQLite-backed durable storage for the boot
// journal: an append-only record of boot cycles, lifecycle state
// transitions, and notable boot events (degraded inits, script faults,
// filesystem fallbacks).
//
// All ordering uses seq INTEGER (the controller's logical clock), never
// wall-clock timestamps; the at column is informational only. Queries
// order by seq ASC, id ASC so dumps are deterministic.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// Remote script sources are identified by NFC-normalized SHA-256; see
// ScriptHash.
package journal
