package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueUnavailable wraps queue backend failures.
var ErrQueueUnavailable = errors.New("notification queue unavailable")

// Config controls queue durability and worker pacing.
type Config struct {
	// KeyPrefix namespaces all queue keys.
	KeyPrefix string
	// DedupWindow is how long an idempotency key suppresses duplicate
	// enqueues and duplicate sends.
	DedupWindow time.Duration
	// PollInterval is the consumer's idle poll cadence.
	PollInterval time.Duration
	// MaxRetries bounds redelivery before dead-lettering.
	MaxRetries int
	// RetryBackoff is the base redelivery delay; it grows linearly with the
	// attempt count.
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "fn"
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 10 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 30 * time.Second
	}
	return c
}

// Queue is a durable per-channel task queue on Redis lists. Ready tasks are
// moved into a per-channel processing list while a worker holds them, so a
// crashed worker leaves the task recoverable rather than lost.
type Queue struct {
	redis  *redis.Client
	config Config
}

// NewQueue wires the queue onto the given Redis client.
func NewQueue(redisClient *redis.Client, cfg Config) *Queue {
	return &Queue{redis: redisClient, config: cfg.withDefaults()}
}

func (q *Queue) readyKey(ch Channel) string      { return q.config.KeyPrefix + ":q:" + string(ch) }
func (q *Queue) processingKey(ch Channel) string { return q.config.KeyPrefix + ":p:" + string(ch) }
func (q *Queue) deadKey(ch Channel) string       { return q.config.KeyPrefix + ":dead:" + string(ch) }
func (q *Queue) dedupKey(ikey string) string     { return q.config.KeyPrefix + ":dedup:" + ikey }
func (q *Queue) sentKey(ikey string) string      { return q.config.KeyPrefix + ":sent:" + ikey }

// Enqueue appends the task to its channel's ready list. Tasks sharing an
// idempotency key collapse: inside the dedup window only the first enqueue
// queues anything, and the handle reports the collapse. Safe for concurrent
// callers; ordering across users is not guaranteed.
func (q *Queue) Enqueue(ctx context.Context, task *Task) (Handle, error) {
	if task == nil {
		return Handle{}, errors.New("nil task")
	}
	if err := task.validate(); err != nil {
		return Handle{}, err
	}

	set, err := q.redis.SetNX(ctx, q.dedupKey(task.IdempotencyKey), task.TaskID, q.config.DedupWindow).Result()
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if !set {
		existing, err := q.redis.Get(ctx, q.dedupKey(task.IdempotencyKey)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return Handle{}, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		return Handle{TaskID: existing, Deduplicated: true}, nil
	}

	encoded, err := encodeTask(task)
	if err != nil {
		return Handle{}, err
	}
	if err := q.redis.LPush(ctx, q.readyKey(task.Channel), encoded).Err(); err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return Handle{TaskID: task.TaskID}, nil
}

// Consume blocks until a task is available on the channel or ctx is done.
// The task is moved to the processing list and stays there until Ack or
// Nack. Tasks whose NotBefore has not elapsed are rotated back to the ready
// list.
func (q *Queue) Consume(ctx context.Context, ch Channel) (*Task, error) {
	if !ch.valid() {
		return nil, errors.New("unknown channel")
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := q.redis.LMove(ctx, q.readyKey(ch), q.processingKey(ch), "RIGHT", "LEFT").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if werr := sleepCtx(ctx, q.config.PollInterval); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}

		task, err := decodeTask([]byte(data))
		if err != nil {
			// Undecodable payloads go straight to the dead-letter list.
			pipe := q.redis.TxPipeline()
			pipe.LRem(ctx, q.processingKey(ch), 1, data)
			pipe.LPush(ctx, q.deadKey(ch), data)
			if _, perr := pipe.Exec(ctx); perr != nil {
				return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, perr)
			}
			continue
		}

		if task.NotBefore > time.Now().Unix() {
			pipe := q.redis.TxPipeline()
			pipe.LRem(ctx, q.processingKey(ch), 1, data)
			pipe.LPush(ctx, q.readyKey(ch), data)
			if _, perr := pipe.Exec(ctx); perr != nil {
				return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, perr)
			}
			if werr := sleepCtx(ctx, q.config.PollInterval); werr != nil {
				return nil, werr
			}
			continue
		}

		return task, nil
	}
}

// Ack removes a consumed task from the processing list.
func (q *Queue) Ack(ctx context.Context, task *Task) error {
	if task == nil || len(task.raw) == 0 {
		return errors.New("task was not consumed from this queue")
	}
	if err := q.redis.LRem(ctx, q.processingKey(task.Channel), 1, task.raw).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

// Nack reports a failed delivery. The task is requeued with backoff until
// the retry budget is spent, then moved to the dead-letter list. The boolean
// reports whether the task was dead-lettered.
func (q *Queue) Nack(ctx context.Context, task *Task, retryAfter time.Duration) (bool, error) {
	if task == nil || len(task.raw) == 0 {
		return false, errors.New("task was not consumed from this queue")
	}

	updated := *task
	updated.Attempts++
	updated.NotBefore = time.Now().Add(retryAfter).Unix()
	updated.raw = nil

	dead := updated.Attempts > q.config.MaxRetries
	encoded, err := encodeTask(&updated)
	if err != nil {
		return false, err
	}

	pipe := q.redis.TxPipeline()
	pipe.LRem(ctx, q.processingKey(task.Channel), 1, task.raw)
	if dead {
		pipe.LPush(ctx, q.deadKey(task.Channel), encoded)
	} else {
		pipe.LPush(ctx, q.readyKey(task.Channel), encoded)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return dead, nil
}

// MarkDelivered claims the at-most-once send guard for the task. It returns
// false when another delivery already claimed it, in which case the task
// must be acked without sending.
func (q *Queue) MarkDelivered(ctx context.Context, task *Task) (bool, error) {
	if task == nil {
		return false, errors.New("nil task")
	}
	set, err := q.redis.SetNX(ctx, q.sentKey(task.IdempotencyKey), task.TaskID, q.config.DedupWindow).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return set, nil
}

// DeadLetters returns the channel's dead-lettered tasks, newest first.
func (q *Queue) DeadLetters(ctx context.Context, ch Channel) ([]Task, error) {
	raws, err := q.redis.LRange(ctx, q.deadKey(ch), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	out := make([]Task, 0, len(raws))
	for _, raw := range raws {
		task, err := decodeTask([]byte(raw))
		if err != nil {
			continue
		}
		out = append(out, *task)
	}
	return out, nil
}

// Depth reports how many tasks are waiting on the channel's ready list.
func (q *Queue) Depth(ctx context.Context, ch Channel) (int64, error) {
	n, err := q.redis.LLen(ctx, q.readyKey(ch)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return n, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
