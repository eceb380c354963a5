// Package store provides SQLite-backed durable storage for subvote.
//
// The store holds four tables:
//   - users: accounts, roles and chat bindings
//   - dns_records: records currently materialized at the DNS provider
//   - applications: create/update requests and their lifecycle status
//   - application_votes: one row per (application, voter)
//
// # Critical Patterns
//
// Exclusive resolution
//   - ClaimApplication is a single UPDATE ... WHERE status = 'pending'
//   - RowsAffected() == 1 means the caller owns the resolution; 0 means
//     another trigger already resolved it
//
// Guarded vote writes
//   - UpsertVote inserts through INSERT ... SELECT ... WHERE the application
//     is still pending and open, so a vote can never land on a resolved row
//   - UNIQUE(application_id, voter_id) with ON CONFLICT DO UPDATE replaces a
//     voter's earlier stance
//
// Deterministic reads
//   - List queries order by id ASC
//   - Timestamps are unix milliseconds; deadline checks are integer compares
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity (user delete cascades)
package store
