// Package ir provides the typed value layer shared by every pscs package.
//
// Node parameters are bound as ir.Value after coercion, and pipeline
// definitions are hashed through the canonical JSON encoder here. ir imports
// nothing internal so that every other package can depend on it.
//
// Key constraints:
//   - Values are immutable once constructed
//   - Canonical JSON (RFC 8785 ordering, NFC strings) is the only input to hashing
//   - All JSON tags use snake_case
//   - Logical sequence numbers only, never wall-clock timestamps
package ir
