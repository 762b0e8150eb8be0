// Package admission gates the "may I sync now" probe. When the server is
// saturated, computers are queued and drained at a rate proportional to
// the current headroom instead of piling onto the sync handlers.
package admission

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/migasfree/migasfree-backend/internal/logger"
)

// Pinger measures storage responsiveness. The sqlite store implements it;
// the observed round-trip time is the DB latency signal.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Queue is the waiting-room backend (redis in production).
type Queue interface {
	EnqueueComputer(ctx context.Context, computerID int64) error
	DequeueComputers(ctx context.Context, n int) ([]int64, error)
	AdmitComputers(ctx context.Context, computerIDs []int64) error
	ConsumeAdmission(ctx context.Context, computerID int64) (bool, error)
	QueuePosition(ctx context.Context, computerID int64) (int64, error)
	QueueLength(ctx context.Context) (int64, error)
}

// Config carries the saturation thresholds.
type Config struct {
	MaxDBLatency    time.Duration
	MaxLoad         float64
	MaxConcurrency  int64
	ProcessInterval time.Duration
	DrainBatch      int
}

// Decision answers one admission probe.
type Decision struct {
	OK         bool
	RetryAfter time.Duration
	Position   int64
}

// Controller runs the admission loop.
type Controller struct {
	queue  Queue
	db     Pinger
	logger logger.Logger
	cfg    Config

	inflight atomic.Int64
	loadavg  func() (float64, error)
	stopCh   chan struct{}
}

func New(queue Queue, db Pinger, log logger.Logger, cfg Config) *Controller {
	if cfg.ProcessInterval <= 0 {
		cfg.ProcessInterval = 10 * time.Second
	}
	if cfg.DrainBatch <= 0 {
		cfg.DrainBatch = 10
	}
	return &Controller{
		queue:   queue,
		db:      db,
		logger:  log,
		cfg:     cfg,
		loadavg: readLoadAvg,
		stopCh:  make(chan struct{}),
	}
}

// Acquire marks one sync request in flight. The returned func releases it.
func (c *Controller) Acquire() func() {
	c.inflight.Add(1)
	var done atomic.Bool
	return func() {
		if done.CompareAndSwap(false, true) {
			c.inflight.Add(-1)
		}
	}
}

// CanSync answers one probe. A previously queued computer whose turn has
// come is admitted immediately; otherwise the decision follows the current
// headroom.
func (c *Controller) CanSync(ctx context.Context, computerID int64) (Decision, error) {
	admitted, err := c.queue.ConsumeAdmission(ctx, computerID)
	if err != nil {
		return Decision{}, err
	}
	if admitted {
		return Decision{OK: true}, nil
	}

	if c.headroom(ctx) > 0 {
		return Decision{OK: true}, nil
	}

	if err := c.queue.EnqueueComputer(ctx, computerID); err != nil {
		return Decision{}, err
	}
	pos, err := c.queue.QueuePosition(ctx, computerID)
	if err != nil {
		return Decision{}, err
	}
	if pos < 0 {
		pos = 0
	}
	batches := pos/int64(c.cfg.DrainBatch) + 1
	return Decision{
		OK:         false,
		RetryAfter: time.Duration(batches) * c.cfg.ProcessInterval,
		Position:   pos,
	}, nil
}

// headroom returns the free capacity fraction in [0, 1]. Zero means
// saturated: every signal is at or past its threshold.
func (c *Controller) headroom(ctx context.Context) float64 {
	worst := 0.0

	if c.cfg.MaxDBLatency > 0 {
		start := time.Now()
		if err := c.db.Ping(ctx); err != nil {
			c.logger.Warn("admission db probe failed", logger.Error(err))
			return 0
		}
		worst = max(worst, float64(time.Since(start))/float64(c.cfg.MaxDBLatency))
	}

	if c.cfg.MaxLoad > 0 {
		load, err := c.loadavg()
		if err != nil {
			c.logger.Debug("load average unavailable", logger.Error(err))
		} else {
			worst = max(worst, load/c.cfg.MaxLoad)
		}
	}

	if c.cfg.MaxConcurrency > 0 {
		worst = max(worst, float64(c.inflight.Load())/float64(c.cfg.MaxConcurrency))
	}

	if worst >= 1 {
		return 0
	}
	return 1 - worst
}

// Start begins the periodic queue drain.
func (c *Controller) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.ProcessInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Drain(ctx); err != nil {
					c.logger.Error("admission drain failed", logger.Error(err))
				}
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop stops the drain loop.
func (c *Controller) Stop() {
	close(c.stopCh)
}

// Drain admits a headroom-sized batch from the queue head.
func (c *Controller) Drain(ctx context.Context) error {
	waiting, err := c.queue.QueueLength(ctx)
	if err != nil {
		return err
	}
	if waiting == 0 {
		return nil
	}

	h := c.headroom(ctx)
	if h <= 0 {
		c.logger.Debug("server saturated, admission drain skipped",
			logger.Int("waiting", int(waiting)))
		return nil
	}

	n := int(float64(c.cfg.DrainBatch) * h)
	if n < 1 {
		n = 1
	}
	ids, err := c.queue.DequeueComputers(ctx, n)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := c.queue.AdmitComputers(ctx, ids); err != nil {
		return err
	}

	c.logger.Info("admitted queued computers",
		logger.Int("count", len(ids)),
		logger.Int("waiting", int(waiting)-len(ids)))
	return nil
}

// readLoadAvg reads the 1-minute load average. Returns an error on
// platforms without /proc.
func readLoadAvg() (float64, error) {
	raw, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return 0, fmt.Errorf("malformed /proc/loadavg")
	}
	return strconv.ParseFloat(fields[0], 64)
}
