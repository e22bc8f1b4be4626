// Package janitor periodically drops pending submissions whose owners never
// asked for verification.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/gameproof/pkg/logger"
	"github.com/okian/gameproof/pkg/metrics"
	"github.com/robfig/cron/v3"
)

const runTimeout = 30 * time.Second

// Store is the part of the submission store the janitor needs.
type Store interface {
	Sweep(ctx context.Context, before time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

// Janitor runs Sweep on a cron schedule (seconds field included).
type Janitor struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	cron  *cron.Cron
	log   logger.Logger
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		if now != nil {
			j.now = now
		}
	}
}

// New validates schedule and registers the sweep job. Nothing runs until Start.
func New(ctx context.Context, store Store, ttl time.Duration, schedule string, opts ...Option) (*Janitor, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("janitor: ttl must be positive, got %s", ttl)
	}
	j := &Janitor{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   logger.Get().Named("janitor"),
	}
	for _, opt := range opts {
		opt(j)
	}

	cl := cronLogger{ctx: ctx, l: j.log}
	j.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl)), cron.WithLogger(cl))
	_, err := j.cron.AddFunc(schedule, func() {
		rctx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		if _, err := j.RunOnce(rctx); err != nil {
			j.log.Warn(rctx, "sweep failed", logger.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("janitor: schedule %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce removes everything not updated within the TTL.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	removed, err := j.store.Sweep(ctx, j.now().Add(-j.ttl))
	if err != nil {
		metrics.RecordErrorByComponent("janitor", "sweep_error")
		return removed, err
	}
	metrics.RecordStoreSwept(removed)
	if removed > 0 {
		j.log.Info(ctx, "swept stale submissions", logger.Int("removed", removed))
	}
	if n, err := j.store.Count(ctx); err == nil {
		metrics.UpdatePendingSubmissions(n)
	}
	return removed, nil
}

// Start begins the schedule.
func (j *Janitor) Start() { j.cron.Start() }

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() { <-j.cron.Stop().Done() }

// cronLogger adapts our logger to cron.Logger.
type cronLogger struct {
	ctx context.Context
	l   logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(c.ctx, msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(c.ctx, msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
