package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/gameproof/internal/adapters/mq/queue"
	worker "github.com/okian/gameproof/internal/adapters/mq/worker"
	model "github.com/okian/gameproof/internal/domain/model"
	logging "github.com/okian/gameproof/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockPublisher struct {
	mu   sync.Mutex
	got  []queue.Event
	fail map[model.Identity]error
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{fail: make(map[model.Identity]error)}
}

func (m *mockPublisher) Publish(_ context.Context, e queue.Event) error { //nolint:gocritic // hugeParam
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[e.Identity]; ok {
		return err
	}
	m.got = append(m.got, e)
	return nil
}

func (m *mockPublisher) published() []queue.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.Event(nil), m.got...)
}

func TestNotifyWorker(t *testing.T) {
	convey.Convey("Given a notify worker on an outcome queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		pub := newMockPublisher()
		w := worker.NewNotifyWorker(q, pub, worker.WithName("test-notify"))
		ctx := context.Background()

		go w.Run(ctx)

		convey.Convey("When outcomes are queued and the queue is closed", func() {
			q.Enqueue(ctx, model.Outcome{AttemptID: "a", Identity: 1, State: model.StateDone})
			q.Enqueue(ctx, model.Outcome{AttemptID: "b", Identity: 2, State: model.StateRejected})
			_ = q.Close()

			sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			err := w.Shutdown(sctx)

			convey.Convey("Then every outcome is published in order", func() {
				convey.So(err, convey.ShouldBeNil)
				got := pub.published()
				convey.So(len(got), convey.ShouldEqual, 2)
				convey.So(got[0].AttemptID, convey.ShouldEqual, "a")
				convey.So(got[1].AttemptID, convey.ShouldEqual, "b")
			})
		})

		convey.Convey("When publishing one outcome fails", func() {
			pub.fail[7] = errors.New("redis down")
			q.Enqueue(ctx, model.Outcome{AttemptID: "x", Identity: 7})
			q.Enqueue(ctx, model.Outcome{AttemptID: "y", Identity: 8})
			_ = q.Close()

			sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			err := w.Shutdown(sctx)

			convey.Convey("Then the worker keeps going", func() {
				convey.So(err, convey.ShouldBeNil)
				got := pub.published()
				convey.So(len(got), convey.ShouldEqual, 1)
				convey.So(got[0].AttemptID, convey.ShouldEqual, "y")
			})
		})

		convey.Convey("When shutdown runs out of time", func() {
			sctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			err := w.Shutdown(sctx)

			convey.Convey("Then it reports the timeout", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
			_ = q.Close()
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()
		ctx := context.Background()

		convey.Convey("When running a job through Do", func() {
			p := worker.NewPool(2, 4)
			defer func() { _ = p.Shutdown(ctx) }()

			v, err := worker.Do(ctx, p, func(context.Context) int { return 42 })

			convey.Convey("Then the result comes back", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(v, convey.ShouldEqual, 42)
			})
		})

		convey.Convey("When the caller goes away mid job", func() {
			p := worker.NewPool(1, 1)
			defer func() { _ = p.Shutdown(ctx) }()

			release := make(chan struct{})
			finished := make(chan error, 1)
			cctx, cancel := context.WithCancel(ctx)

			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
			_, err := worker.Do(cctx, p, func(jctx context.Context) bool {
				<-release
				finished <- jctx.Err()
				return true
			})
			close(release)

			convey.Convey("Then Do returns early but the job completes uncancelled", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				select {
				case jerr := <-finished:
					convey.So(jerr, convey.ShouldBeNil)
				case <-time.After(2 * time.Second):
					t.Fatal("job never finished")
				}
			})
		})

		convey.Convey("When more jobs arrive than the pool can hold", func() {
			p := worker.NewPool(1, 1)
			block := make(chan struct{})

			rejected := 0
			for i := 0; i < 20; i++ {
				err := p.Submit(ctx, func(context.Context) { <-block })
				if errors.Is(err, worker.ErrSaturated) {
					rejected++
				}
			}
			stats := p.Stats()
			close(block)
			_ = p.Shutdown(ctx)

			convey.Convey("Then the excess is rejected", func() {
				convey.So(rejected, convey.ShouldBeGreaterThan, 0)
				convey.So(stats.Workers, convey.ShouldEqual, 1)
				convey.So(stats.QueueSize, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the pool has been shut down", func() {
			p := worker.NewPool(1, 1)
			p.Start(ctx)
			convey.So(p.Shutdown(ctx), convey.ShouldBeNil)

			err := p.Submit(ctx, func(context.Context) {})

			convey.Convey("Then submissions fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
