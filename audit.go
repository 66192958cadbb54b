package flareauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent records one flow outcome. Events are emitted asynchronously;
// sinks must tolerate delivery after the originating call returned.
type AuditEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	EventType   string            `json:"event_type"`
	UserID      string            `json:"user_id,omitempty"`
	ChallengeID string            `json:"challenge_id,omitempty"`
	IP          string            `json:"ip,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

const (
	auditEventSignUpSuccess   = "signup_success"
	auditEventSignUpDuplicate = "signup_duplicate"
	auditEventSignUpFailure   = "signup_failure"

	auditEventSignInSuccess = "signin_success"
	auditEventSignInFailure = "signin_failure"
	auditEventStepUpRequired  = "stepup_required"
	auditEventStepUpSuccess   = "stepup_success"
	auditEventStepUpFailure   = "stepup_failure"
	auditEventStepUpExpired   = "stepup_expired"
	auditEventStepUpExhausted = "stepup_exhausted"

	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"

	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetUnknown = "password_reset_unknown_identifier"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordChange       = "password_change"

	auditEventEnrollmentBegin   = "authenticator_enrollment_begin"
	auditEventEnrollmentConfirm = "authenticator_enrollment_confirm"
	auditEventTwoFactorDisabled = "two_factor_disabled"
)

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards all events.
type NoOpSink struct{}

// Emit implements AuditSink.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink buffers events on a channel for test and host consumption.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a sink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

// Emit implements AuditSink.
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the buffered event stream.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON event per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink wraps w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit implements AuditSink.
func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
