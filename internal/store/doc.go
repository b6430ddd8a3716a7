// Package store provides the SQLite-backed Record Store for submissions and
// activity events.
//
// The store holds three tables:
//   - submissions: one row per finished wizard run, keyed by a server id and
//     unique by the client survey id; answers are a canonical JSON document
//   - events: append-only activity telemetry
//   - operator_credentials: bcrypt hashes for dashboard operators
//
// # Guarantees
//
// Inserts are idempotent on survey_id: retrying a submission after an
// ambiguous failure returns the already-stored record.
//
// Identity linking is a single conditional UPDATE. A record is written only
// if it is unlinked, or already linked to the same email (phone when no
// email is given). Any other linked record is rejected with
// ErrAlreadyLinked, so two racing contacts cannot both claim it.
//
// Every read orders deterministically: submissions by submitted_at DESC,
// id ASC; events by timestamp DESC, id DESC.
//
// # Live feeds
//
// SubscribeSubmissions and SubscribeEvents return a Subscription that
// delivers an initial snapshot, then a fresh snapshot after each local write
// (via Notifier) and on every poll tick, which picks up writes from other
// processes. Delivery coalesces: a slow reader only ever sees the newest
// snapshot.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
