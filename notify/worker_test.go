package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeMailer struct {
	mu       sync.Mutex
	sent     []string
	subjects []string
	failures int
}

func (m *fakeMailer) Send(_ context.Context, recipient, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, recipient+": "+body)
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *fakeMailer) deliveries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

type fakeSMSSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSMSSender) Send(_ context.Context, recipient, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, recipient+": "+body)
	return nil
}

func TestEmailWorkerDelivers(t *testing.T) {
	q := newTestQueue(t)
	mailer := &fakeMailer{}
	worker, err := NewEmailWorker(q, mailer, nil)
	if err != nil {
		t.Fatalf("NewEmailWorker failed: %v", err)
	}
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, newEmailTask(IdempotencyKey("u1", "c1", ChannelEmail))); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := worker.ProcessOne(ctx); err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}

	deliveries := mailer.deliveries()
	if len(deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(deliveries))
	}
	if !strings.Contains(deliveries[0], "123456") {
		t.Fatalf("rendered body %q does not carry the code", deliveries[0])
	}

	stats := worker.Stats()
	if stats.Delivered != 1 || stats.Retried != 0 || stats.DeadLettered != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	depth, err := q.Depth(ctx, ChannelEmail)
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if depth != 0 {
		t.Fatalf("depth = %d after delivery, want 0", depth)
	}
}

func TestSMSWorkerDelivers(t *testing.T) {
	q := newTestQueue(t)
	sender := &fakeSMSSender{}
	worker, err := NewSMSWorker(q, sender, nil)
	if err != nil {
		t.Fatalf("NewSMSWorker failed: %v", err)
	}
	ctx := context.Background()

	task := newEmailTask(IdempotencyKey("u1", "c1", ChannelSMS))
	task.Channel = ChannelSMS
	task.Recipient = "+15550100"
	if _, err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := worker.ProcessOne(ctx); err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 1 || !strings.HasPrefix(sender.sent[0], "+15550100: ") {
		t.Fatalf("sms deliveries = %v", sender.sent)
	}
}

func TestWorkerSendGuardDeduplicates(t *testing.T) {
	q := newTestQueue(t)
	mailer := &fakeMailer{}
	worker, err := NewEmailWorker(q, mailer, nil)
	if err != nil {
		t.Fatalf("NewEmailWorker failed: %v", err)
	}
	ctx := context.Background()

	task := newEmailTask(IdempotencyKey("u1", "c1", ChannelEmail))
	if _, err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// Another delivery already claimed the guard for this key.
	if _, err := q.MarkDelivered(ctx, task); err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}

	if err := worker.ProcessOne(ctx); err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}
	if len(mailer.deliveries()) != 0 {
		t.Fatal("guarded task was sent anyway")
	}

	stats := worker.Stats()
	if stats.Deduplicated != 1 || stats.Delivered != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	// Acked, not requeued.
	depth, err := q.Depth(ctx, ChannelEmail)
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if depth != 0 {
		t.Fatalf("depth = %d, want 0", depth)
	}
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	q := newTestQueue(t)
	q.config.MaxRetries = 1
	q.config.RetryBackoff = time.Millisecond

	mailer := &fakeMailer{failures: 10}
	worker, err := NewEmailWorker(q, mailer, nil)
	if err != nil {
		t.Fatalf("NewEmailWorker failed: %v", err)
	}
	ctx := context.Background()

	task := newEmailTask(IdempotencyKey("u1", "c1", ChannelEmail))
	if _, err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// First failure requeues with backoff.
	if err := worker.ProcessOne(ctx); err != nil {
		t.Fatalf("first ProcessOne failed: %v", err)
	}
	if stats := worker.Stats(); stats.Retried != 1 || stats.DeadLettered != 0 {
		t.Fatalf("stats after first failure = %+v", stats)
	}

	// Second failure spends the budget.
	processCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := worker.ProcessOne(processCtx); err != nil {
		t.Fatalf("second ProcessOne failed: %v", err)
	}
	if stats := worker.Stats(); stats.DeadLettered != 1 {
		t.Fatalf("stats after second failure = %+v", stats)
	}

	letters, err := q.DeadLetters(ctx, ChannelEmail)
	if err != nil {
		t.Fatalf("DeadLetters failed: %v", err)
	}
	if len(letters) != 1 || letters[0].Attempts != 2 {
		t.Fatalf("dead letters = %+v", letters)
	}
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	q := newTestQueue(t)
	mailer := &fakeMailer{}
	worker, err := NewEmailWorker(q, mailer, nil)
	if err != nil {
		t.Fatalf("NewEmailWorker failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx)
	}()

	if _, err := q.Enqueue(context.Background(), newEmailTask(IdempotencyKey("u1", "c1", ChannelEmail))); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for worker.Stats().Delivered == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if worker.Stats().Delivered != 1 {
		t.Fatal("worker never delivered the queued task")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
