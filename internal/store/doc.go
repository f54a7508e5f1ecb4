// Package store provides SQLite-backed durable checkpoints of slim
// expressions.
//
// The store keeps two tables:
//   - Payloads: serialized expressions (slim.Marshal), content-addressed by
//     slim.HashPayload and written once
//   - Checkpoints: one row per saved state of a key, pointing at a payload
//
// # Identity and Ordering
//
// Checkpoint IDs are UUIDv7. Ordering within a key uses seq, a logical
// clock assigned on save, never timestamps. All listings are ordered by
// seq ASC, id ASC COLLATE BINARY.
//
// Payloads are verified against their hash when read; a mismatch is
// reported as ErrCorrupt.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
