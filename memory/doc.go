// Package memory writes session and breakout transcripts to external
// storage at checkpoints and on session end.
//
// The Relay wraps a core.Storage with idempotent, schema-versioned
// writebacks keyed by (entity, round): a retried writeback after a crash
// overwrites the same record instead of duplicating history. An in-memory
// Storage implementation is included for tests and ephemeral setups; see
// the vault package for the durable BadgerDB-backed one.
package memory
