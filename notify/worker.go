package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Mailer is the email transport adapter contract. Implementations are
// invoked only by delivery workers, never by the orchestrator.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// SMSSender is the SMS transport adapter contract.
type SMSSender interface {
	Send(ctx context.Context, recipient, body string) error
}

// WorkerStats is a snapshot of a worker's delivery counters.
type WorkerStats struct {
	Delivered    uint64
	Deduplicated uint64
	Retried      uint64
	DeadLettered uint64
}

// Worker consumes one channel and drives its transport adapter. Run one or
// more per channel; the processing-list handoff in Queue keeps concurrent
// workers from double-consuming a task, and the send guard keeps redelivery
// from double-sending it.
type Worker struct {
	queue  *Queue
	channel Channel
	mailer Mailer
	sms    SMSSender
	render *Renderer

	delivered    atomic.Uint64
	deduplicated atomic.Uint64
	retried      atomic.Uint64
	deadLettered atomic.Uint64
}

// NewEmailWorker builds a worker for the email channel.
func NewEmailWorker(queue *Queue, mailer Mailer, renderer *Renderer) (*Worker, error) {
	if queue == nil || mailer == nil {
		return nil, errors.New("queue and mailer required")
	}
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Worker{queue: queue, channel: ChannelEmail, mailer: mailer, render: renderer}, nil
}

// NewSMSWorker builds a worker for the SMS channel.
func NewSMSWorker(queue *Queue, sender SMSSender, renderer *Renderer) (*Worker, error) {
	if queue == nil || sender == nil {
		return nil, errors.New("queue and sender required")
	}
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Worker{queue: queue, channel: ChannelSMS, sms: sender, render: renderer}, nil
}

// Run consumes and delivers until ctx is cancelled. Backend failures abort
// the loop; delivery failures only cost the task a retry.
func (w *Worker) Run(ctx context.Context) error {
	for {
		task, err := w.queue.Consume(ctx, w.channel)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if err := w.deliver(ctx, task); err != nil {
			return err
		}
	}
}

// ProcessOne consumes and delivers a single task. Intended for hosts that
// drive the loop themselves.
func (w *Worker) ProcessOne(ctx context.Context) error {
	task, err := w.queue.Consume(ctx, w.channel)
	if err != nil {
		return err
	}
	return w.deliver(ctx, task)
}

// Stats returns the worker's delivery counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Delivered:    w.delivered.Load(),
		Deduplicated: w.deduplicated.Load(),
		Retried:      w.retried.Load(),
		DeadLettered: w.deadLettered.Load(),
	}
}

func (w *Worker) deliver(ctx context.Context, task *Task) error {
	claimed, err := w.queue.MarkDelivered(ctx, task)
	if err != nil {
		return err
	}
	if !claimed {
		// Another delivery of the same idempotency key already went out.
		w.deduplicated.Add(1)
		return w.queue.Ack(ctx, task)
	}

	if err := w.send(ctx, task); err != nil {
		dead, nerr := w.queue.Nack(ctx, task, w.backoff(task.Attempts))
		if nerr != nil {
			return nerr
		}
		if dead {
			w.deadLettered.Add(1)
		} else {
			w.retried.Add(1)
			// Release the guard so the retry is allowed to send.
			_ = w.queue.redis.Del(ctx, w.queue.sentKey(task.IdempotencyKey)).Err()
		}
		return nil
	}

	w.delivered.Add(1)
	return w.queue.Ack(ctx, task)
}

func (w *Worker) send(ctx context.Context, task *Task) error {
	subject, body, err := w.render.Render(task)
	if err != nil {
		return err
	}
	switch w.channel {
	case ChannelEmail:
		return w.mailer.Send(ctx, task.Recipient, subject, body)
	case ChannelSMS:
		return w.sms.Send(ctx, task.Recipient, body)
	default:
		return errors.New("unknown channel")
	}
}

func (w *Worker) backoff(attempts int) time.Duration {
	return w.queue.config.RetryBackoff * time.Duration(attempts+1)
}
