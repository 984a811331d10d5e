// Package migrasi tracks database migration files per project: who created
// them, the order they were created in, and whether they have been applied.
//
// The package does not execute SQL against a target schema. It manages
// filenames, monotonically increasing sequence numbers, and applied/unapplied
// bookkeeping, and gates every mutation through project-membership
// authorization backed by per-user sessions.
//
// Authentication:
//   - Two channels (web and CLI) carry independent signing secrets, session
//     slots, and expiries. A token minted for one channel is cryptographically
//     rejected by the other.
//   - Sessions live in the database; at most one session exists per
//     (user, channel). A new login supersedes the previous session.
//
// Sequencing:
//   - Sequence numbers are allocated inside a single transaction holding a
//     row lock over the project's highest migration, so concurrent creations
//     across process instances never collide. Numbers are never reused, even
//     after a migration is soft-deleted.
//
// Lifecycle:
//   - A migration starts unmigrated, may be renamed or soft-deleted while
//     unmigrated, and becomes migrated through a batched, forward-only toggle.
//     Nothing leaves the migrated or deleted states.
package migrasi
