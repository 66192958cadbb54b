package flareauth

import (
	"context"
	"time"

	"github.com/flareauth/flareauth/notify"
	"github.com/flareauth/flareauth/password"
	"github.com/flareauth/flareauth/token"
)

// Engine is the embeddable authentication engine. Build one with [Builder]
// and share it across goroutines; all exported methods are safe for
// concurrent use once Build returns.
type Engine struct {
	config       Config
	userStore    UserStore
	challenges   *challengeStore
	devices      *deviceContextStore
	deviceTrust  *deviceTrustEvaluator
	totp         *totpManager
	passwordHash *password.Hasher
	tokens       *token.Manager
	queue        *notify.Queue
	audit        *auditDispatcher
	metrics      *Metrics
}

// Close drains and stops the audit dispatcher. Idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Queue exposes the notification queue so hosts can run delivery workers
// against the same Redis keys the engine enqueues to.
func (e *Engine) Queue() *notify.Queue {
	if e == nil {
		return nil
	}
	return e.queue
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	challengeID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		UserID:      userID,
		ChallengeID: challengeID,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}

	e.audit.Emit(ctx, event)
}
