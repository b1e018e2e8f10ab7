// Package dispatcher routes envelopes through four priority lanes.
// Each lane has dedicated workers so critical traffic never queues
// behind background traffic, and lower lanes yield while a higher lane
// has backlog.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/self-labs/hass-stack/common/envelope"
	"github.com/self-labs/hass-stack/coordinator/internal/metrics"
)

const lanes = 4

var (
	// ErrLaneFull is returned when a lane's queue is at capacity.
	ErrLaneFull = errors.New("dispatch lane full")
	// ErrRateLimited is returned when the message type exceeded its
	// per-second budget.
	ErrRateLimited = errors.New("message type rate limited")
)

// Handler consumes a dispatched envelope.
type Handler func(ctx context.Context, env *envelope.Envelope) error

// DefaultRateLimits is the per-second message budget per type.
func DefaultRateLimits() map[envelope.Type]int {
	return map[envelope.Type]int{
		envelope.TypeMarketData: 1000,
		envelope.TypeSignal:     100,
		envelope.TypeOrder:      50,
		envelope.TypeRisk:       100,
		envelope.TypeExecution:  50,
		envelope.TypeSystem:     100,
		envelope.TypeControl:    10,
	}
}

// Config sizes the dispatcher.
type Config struct {
	// LaneDepth is the queue capacity per lane.
	LaneDepth int
	// WorkersPerLane is indexed by lane; missing entries default to 1.
	WorkersPerLane [lanes]int
	// RateLimits caps messages per second per type. Types without an
	// entry are unlimited.
	RateLimits map[envelope.Type]int
}

// DefaultConfig returns the standard lane sizing: deep queues, more
// workers on the critical lanes.
func DefaultConfig() Config {
	return Config{
		LaneDepth:      1024,
		WorkersPerLane: [lanes]int{4, 3, 2, 1},
		RateLimits:     DefaultRateLimits(),
	}
}

// typeLimiter is a fixed one-second window counter.
type typeLimiter struct {
	mu    sync.Mutex
	limit int
	count int
	reset time.Time
}

func (l *typeLimiter) allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.After(l.reset) {
		l.count = 0
		l.reset = now.Add(time.Second)
	}
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}

// Dispatcher owns the lanes, their workers, and the type handlers.
type Dispatcher struct {
	queues   [lanes]chan *envelope.Envelope
	limiters map[envelope.Type]*typeLimiter

	mu       sync.RWMutex
	handlers map[envelope.Type][]Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a dispatcher and launches its lane workers. Call Stop to
// drain them.
func New(cfg Config) *Dispatcher {
	if cfg.LaneDepth <= 0 {
		cfg.LaneDepth = 1024
	}

	d := &Dispatcher{
		limiters: make(map[envelope.Type]*typeLimiter),
		handlers: make(map[envelope.Type][]Handler),
	}
	for lane := 0; lane < lanes; lane++ {
		d.queues[lane] = make(chan *envelope.Envelope, cfg.LaneDepth)
	}
	for typ, limit := range cfg.RateLimits {
		d.limiters[typ] = &typeLimiter{limit: limit}
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	for lane := 0; lane < lanes; lane++ {
		workers := cfg.WorkersPerLane[lane]
		if workers <= 0 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			d.wg.Add(1)
			go d.runWorker(lane)
		}
	}
	return d
}

// Register adds a handler for a message type. All handlers for the
// type receive every dispatched envelope of that type.
func (d *Dispatcher) Register(typ envelope.Type, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[typ] = append(d.handlers[typ], h)
}

// Enqueue places an envelope on its priority lane. It never blocks:
// a full lane or an exhausted rate budget returns an error so the
// caller can count the drop.
func (d *Dispatcher) Enqueue(env *envelope.Envelope) error {
	if limiter, ok := d.limiters[env.Type]; ok && !limiter.allow(time.Now()) {
		metrics.RateLimited.WithLabelValues(string(env.Type)).Inc()
		return fmt.Errorf("%w: %s", ErrRateLimited, env.Type)
	}

	lane := env.Priority.Lane()
	select {
	case d.queues[lane] <- env:
		metrics.QueueDepth.WithLabelValues(laneLabel(lane)).Set(float64(len(d.queues[lane])))
		return nil
	default:
		metrics.LaneDrops.WithLabelValues(laneLabel(lane)).Inc()
		return fmt.Errorf("%w: lane %d", ErrLaneFull, lane)
	}
}

// Depth returns the queued message count for a lane.
func (d *Dispatcher) Depth(lane int) int {
	if lane < 0 || lane >= lanes {
		return 0
	}
	return len(d.queues[lane])
}

// Saturation returns a lane's fill ratio in [0, 1].
func (d *Dispatcher) Saturation(lane int) float64 {
	if lane < 0 || lane >= lanes {
		return 0
	}
	return float64(len(d.queues[lane])) / float64(cap(d.queues[lane]))
}

// Stop drains the workers. Queued messages that have not been picked
// up are discarded.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) runWorker(lane int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case env := <-d.queues[lane]:
			d.yieldToHigherLanes(lane)
			d.deliver(env)
			metrics.QueueDepth.WithLabelValues(laneLabel(lane)).Set(float64(len(d.queues[lane])))
		}
	}
}

// yieldToHigherLanes parks the worker while any higher-priority lane
// has backlog. Lane 0 never yields.
func (d *Dispatcher) yieldToHigherLanes(lane int) {
	for {
		backlog := false
		for higher := 0; higher < lane; higher++ {
			if len(d.queues[higher]) > 0 {
				backlog = true
				break
			}
		}
		if !backlog {
			return
		}
		select {
		case <-d.ctx.Done():
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (d *Dispatcher) deliver(env *envelope.Envelope) {
	d.mu.RLock()
	handlers := d.handlers[env.Type]
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := h(d.ctx, env); err != nil {
			metrics.HandlerErrors.WithLabelValues(string(env.Type)).Inc()
		}
	}
	metrics.DispatchedTotal.WithLabelValues(string(env.Type)).Inc()
}

func laneLabel(lane int) string {
	return fmt.Sprintf("P%d", lane)
}
