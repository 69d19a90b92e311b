package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MailWorker drains the mail queue with a fixed number of goroutines.
type MailWorker struct {
	queue      *MailQueue
	processor  *MailProcessor
	state      *HeartbeatState
	visibility time.Duration
	idleWait   time.Duration
}

func NewMailWorker(queue *MailQueue, processor *MailProcessor, state *HeartbeatState) *MailWorker {
	return &MailWorker{
		queue:      queue,
		processor:  processor,
		state:      state,
		visibility: DefaultVisibilityTimeout,
		idleWait:   100 * time.Millisecond,
	}
}

// Run blocks until ctx is done and every goroutine has returned.
func (w *MailWorker) Run(ctx context.Context, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w.loop(ctx, n)
		}(i + 1)
	}
	wg.Wait()
}

func (w *MailWorker) loop(ctx context.Context, n int) {
	for {
		payload, err := w.queue.Reserve(ctx, w.visibility)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			wait := w.idleWait
			if !errors.Is(err, redis.Nil) {
				slog.ErrorContext(ctx, "mail dequeue failed", "worker", n, "error", err)
				wait = time.Second
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}
		w.Handle(ctx, payload)
	}
}

// Handle processes one reserved payload: it is always acked, and re-enqueued
// while the retry budget lasts. The ack precedes the re-enqueue: the processing
// set is keyed by payload, so a later ack would remove another worker's
// reservation of the retried copy.
func (w *MailWorker) Handle(ctx context.Context, payload string) {
	job, err := DecodeMailJob(payload)
	if err != nil {
		w.ack(ctx, payload)
		slog.ErrorContext(ctx, "dropping mail job", "error", err)
		return
	}

	if w.state != nil {
		w.state.JobStarted()
	}
	procErr := w.processor.Process(ctx, job)
	if w.state != nil {
		w.state.JobFinished(procErr)
	}
	w.ack(ctx, payload)

	if procErr == nil {
		_ = w.queue.ClearRetry(ctx, job.ID)
		return
	}

	retries, err := w.queue.IncrementRetry(ctx, job.ID)
	if err != nil {
		slog.ErrorContext(ctx, "mail retry increment failed", "job", job.ID, "error", err)
	}
	if retries > MaxMailRetries {
		_ = w.queue.ClearRetry(ctx, job.ID)
		slog.ErrorContext(ctx, "mail job failed after retries", "job", job.ID, "retries", retries, "error", procErr)
		return
	}
	if err := w.queue.Enqueue(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "mail re-enqueue failed", "job", job.ID, "error", err)
		return
	}
	slog.WarnContext(ctx, "mail job retried", "job", job.ID, "retries", retries, "error", procErr)
}

func (w *MailWorker) ack(ctx context.Context, payload string) {
	if err := w.queue.Ack(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "mail ack failed", "error", err)
	}
}

// Reclaim periodically requeues jobs whose visibility timeout expired.
func (w *MailWorker) Reclaim(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobs, err := w.queue.RequeueExpired(ctx, time.Now())
			if err != nil {
				slog.ErrorContext(ctx, "requeue expired mail jobs failed", "error", err)
			} else if len(jobs) > 0 {
				slog.InfoContext(ctx, "requeued expired mail jobs", "count", len(jobs))
			}
		}
	}
}
