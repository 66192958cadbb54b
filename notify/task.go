package notify

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
)

// Channel selects the transport a task is delivered over.
type Channel string

const (
	// ChannelEmail routes through the Mailer adapter.
	ChannelEmail Channel = "email"
	// ChannelSMS routes through the SMSSender adapter.
	ChannelSMS Channel = "sms"
)

func (c Channel) valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Task is one notification to deliver. Immutable once enqueued; the only
// fields the queue itself touches are the redelivery counters.
type Task struct {
	TaskID    string            `json:"id"`
	Channel   Channel           `json:"ch"`
	Recipient string            `json:"to"`
	Template  string            `json:"tpl"`
	Vars      map[string]string `json:"vars,omitempty"`
	// IdempotencyKey deduplicates repeated enqueues and redeliveries. Use
	// IdempotencyKey to derive it from the owning flow.
	IdempotencyKey string `json:"ikey"`

	// Attempts counts failed delivery attempts so far.
	Attempts int `json:"att,omitempty"`
	// NotBefore gates redelivery after a Nack (unix seconds).
	NotBefore int64 `json:"nbf,omitempty"`

	raw []byte
}

// Handle is returned by Enqueue.
type Handle struct {
	TaskID string
	// Deduplicated is true when an equivalent task was already queued inside
	// the dedup window and this enqueue collapsed into it.
	Deduplicated bool
}

// IdempotencyKey derives the deterministic task key from the owning flow:
// the same (userID, challengeID, kind) always map to the same key, so worker
// redelivery and orchestrator retries cannot multiply sends.
func IdempotencyKey(userID, challengeID string, channel Channel) string {
	sum := sha256.Sum256([]byte(userID + "|" + challengeID + "|" + string(channel)))
	return hex.EncodeToString(sum[:])
}

func (t *Task) validate() error {
	if t.TaskID == "" {
		return errors.New("task id required")
	}
	if !t.Channel.valid() {
		return errors.New("unknown channel")
	}
	if t.Recipient == "" {
		return errors.New("recipient required")
	}
	if t.Template == "" {
		return errors.New("template required")
	}
	if t.IdempotencyKey == "" {
		return errors.New("idempotency key required")
	}
	return nil
}

func encodeTask(t *Task) ([]byte, error) {
	return json.Marshal(t)
}

func decodeTask(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	t.raw = data
	return &t, nil
}
