// Package worker runs verification attempts on a bounded pool and delivers
// their outcomes to subscribers in the background.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/gameproof/internal/adapters/mq/queue"
	"github.com/okian/gameproof/pkg/logger"
	"github.com/okian/gameproof/pkg/metrics"
)

// Default worker configuration constants.
const (
	publishTimeout = 5 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Publisher delivers a finished outcome to interested parties.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker drains a queue until it is closed or ctx is canceled.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown waits for the worker to drain what is already queued.
	Shutdown(ctx context.Context) error
}

// NotifyWorker publishes queued outcomes one at a time.
type NotifyWorker struct {
	queue     Queue
	publisher Publisher
	name      string

	done chan struct{}

	logger logger.Logger
}

// NewNotifyWorker creates a new worker with configuration options.
func NewNotifyWorker(queue Queue, publisher Publisher, opts ...Option) *NotifyWorker {
	w := &NotifyWorker{
		queue:     queue,
		publisher: publisher,
		name:      "notify",
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)

	return w
}

// Run consumes the queue. It returns once the queue is closed and drained,
// or when ctx is canceled.
func (w *NotifyWorker) Run(ctx context.Context) {
	defer close(w.done)

	for event := range w.queue.Dequeue(ctx) {
		if err := w.publish(ctx, event); err != nil {
			w.logger.Warn(ctx, "outcome not published",
				logger.String("attempt_id", event.AttemptID),
				logger.Error(err),
			)
		}
	}
}

// Shutdown waits for Run to return. Close the queue first so Run can finish.
func (w *NotifyWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *NotifyWorker) publish(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := w.publisher.Publish(pctx, event); err != nil {
		metrics.RecordNotification("failed")
		metrics.RecordErrorByComponent("notify", "publish_error")
		return fmt.Errorf("publish %s: %w", event.AttemptID, err)
	}
	metrics.RecordNotification("sent")
	return nil
}
