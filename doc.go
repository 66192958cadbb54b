// Package flareauth provides an embeddable authentication engine with
// credential sign-up and sign-in, purpose-bound JWT issuance, device-trust
// evaluation, step-up challenges over email, SMS and authenticator TOTP, and
// Redis-backed, idempotent notification dispatch.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// flareauth is the public surface. It exposes [Engine], [Builder], [Config],
// the [UserStore] contract and value types (SignInResult, AuditEvent,
// MetricsSnapshot). User persistence stays with the host behind UserStore;
// the engine owns only its own Redis state: challenges, device contexts and
// the notification queue.
//
// # What this package must NOT do
//
//   - Persist or delete user records; it reads and writes them only through
//     the caller-supplied UserStore.
//   - Deliver notifications inline. Flows enqueue; delivery happens in
//     workers from the notify package.
//   - Reveal whether an identifier exists through reset-flow outcomes or
//     timing shortcuts.
package flareauth
