// Package notify implements the durable, idempotent notification queue that
// carries verification codes and tokens out of band.
//
// The orchestrator enqueues; delivery workers consume. Enqueue is
// non-blocking with respect to delivery: a flow is considered started once
// its task is durably queued, never once it is delivered. Consumption is
// at-least-once, so effective delivery is deduplicated twice: once at
// enqueue (tasks sharing an idempotency key collapse to one queued task
// inside the dedup window) and once at send (a guard key makes redelivered
// tasks no-ops at the transport adapter).
//
// A task that exhausts its retry budget moves to a per-channel dead-letter
// list and is surfaced through Queue.DeadLetters and the worker stats; it is
// never retried indefinitely.
package notify
