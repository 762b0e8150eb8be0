package admission

import (
	"context"
	"testing"
	"time"

	"github.com/migasfree/migasfree-backend/internal/logger"
)

type fakeQueue struct {
	waiting  []int64
	admitted map[int64]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{admitted: make(map[int64]bool)}
}

func (q *fakeQueue) EnqueueComputer(_ context.Context, id int64) error {
	for _, w := range q.waiting {
		if w == id {
			return nil
		}
	}
	q.waiting = append(q.waiting, id)
	return nil
}

func (q *fakeQueue) DequeueComputers(_ context.Context, n int) ([]int64, error) {
	if n > len(q.waiting) {
		n = len(q.waiting)
	}
	out := q.waiting[:n]
	q.waiting = q.waiting[n:]
	return out, nil
}

func (q *fakeQueue) AdmitComputers(_ context.Context, ids []int64) error {
	for _, id := range ids {
		q.admitted[id] = true
	}
	return nil
}

func (q *fakeQueue) ConsumeAdmission(_ context.Context, id int64) (bool, error) {
	if q.admitted[id] {
		delete(q.admitted, id)
		return true, nil
	}
	return false, nil
}

func (q *fakeQueue) QueuePosition(_ context.Context, id int64) (int64, error) {
	for i, w := range q.waiting {
		if w == id {
			return int64(i), nil
		}
	}
	return -1, nil
}

func (q *fakeQueue) QueueLength(_ context.Context) (int64, error) {
	return int64(len(q.waiting)), nil
}

type fakePinger struct{ delay time.Duration }

func (p *fakePinger) Ping(_ context.Context) error {
	time.Sleep(p.delay)
	return nil
}

func newTestController(q Queue, cfg Config) *Controller {
	c := New(q, &fakePinger{}, logger.New("error", false), cfg)
	c.loadavg = func() (float64, error) { return 0, nil }
	return c
}

func TestCanSyncWhenIdle(t *testing.T) {
	q := newFakeQueue()
	c := newTestController(q, Config{MaxConcurrency: 10, ProcessInterval: time.Second})

	d, err := c.CanSync(context.Background(), 42)
	if err != nil {
		t.Fatalf("CanSync: %v", err)
	}
	if !d.OK {
		t.Fatalf("expected immediate admission, got %+v", d)
	}
	if len(q.waiting) != 0 {
		t.Fatalf("expected empty queue, got %v", q.waiting)
	}
}

func TestCanSyncQueuesWhenSaturated(t *testing.T) {
	q := newFakeQueue()
	c := newTestController(q, Config{MaxConcurrency: 1, ProcessInterval: time.Second, DrainBatch: 5})

	release := c.Acquire()
	defer release()

	d, err := c.CanSync(context.Background(), 42)
	if err != nil {
		t.Fatalf("CanSync: %v", err)
	}
	if d.OK {
		t.Fatal("expected queuing under saturation")
	}
	if d.Position != 0 {
		t.Fatalf("position = %d, want 0", d.Position)
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("retry-after = %v, want > 0", d.RetryAfter)
	}

	// A repeated probe keeps the original slot.
	d2, err := c.CanSync(context.Background(), 42)
	if err != nil {
		t.Fatalf("CanSync: %v", err)
	}
	if d2.OK || d2.Position != 0 {
		t.Fatalf("repeat probe changed slot: %+v", d2)
	}
	if len(q.waiting) != 1 {
		t.Fatalf("queue = %v, want one entry", q.waiting)
	}
}

func TestDrainAdmitsQueued(t *testing.T) {
	q := newFakeQueue()
	c := newTestController(q, Config{MaxConcurrency: 1, ProcessInterval: time.Second, DrainBatch: 5})
	ctx := context.Background()

	release := c.Acquire()
	if _, err := c.CanSync(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CanSync(ctx, 2); err != nil {
		t.Fatal(err)
	}
	release()

	if err := c.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(q.waiting) != 0 {
		t.Fatalf("queue not drained: %v", q.waiting)
	}

	d, err := c.CanSync(ctx, 1)
	if err != nil || !d.OK {
		t.Fatalf("queued computer not admitted: %+v, %v", d, err)
	}
}

func TestDrainSkipsWhileSaturated(t *testing.T) {
	q := newFakeQueue()
	c := newTestController(q, Config{MaxConcurrency: 1, ProcessInterval: time.Second})
	ctx := context.Background()

	release := c.Acquire()
	defer release()
	if _, err := c.CanSync(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if err := c.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(q.waiting) != 1 {
		t.Fatalf("saturated drain should keep the queue, got %v", q.waiting)
	}
}

func TestAcquireReleaseOnce(t *testing.T) {
	c := newTestController(newFakeQueue(), Config{MaxConcurrency: 2})

	release := c.Acquire()
	release()
	release() // Double release must not underflow.

	if got := c.inflight.Load(); got != 0 {
		t.Fatalf("inflight = %d, want 0", got)
	}
}
