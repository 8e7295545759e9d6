package dispatch

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/dispenser/types"
)

// flushToken identifies one scheduled flush timer, the same way
// liveness.Token identifies one watch epoch: a timer that fires after a
// newer flush has already run carries a stale token and is ignored
// rather than cancelled outright.
type flushToken string

func newFlushToken() flushToken {
	return flushToken(uuid.NewString())
}

// ErrInvalidBatchConfig is returned by NewBatching for a non-positive
// BatchSize or MaxDelay.
var ErrInvalidBatchConfig = errors.New("dispatch: BatchSize and MaxDelay must be positive")

// BatchConfig adds the batching discipline's two knobs to Config.
type BatchConfig[S comparable] struct {
	Config[S]
	// BatchSize triggers an immediate flush once buffered events reach
	// this count.
	BatchSize int
	// MaxDelay bounds how long a pending batch waits before flushing on
	// a timer, even if BatchSize was never reached.
	MaxDelay time.Duration
}

// Batching is the C8 dispatcher discipline: it holds events until either
// BatchSize is reached or MaxDelay elapses since the oldest unflushed
// mutation, flushing on whichever comes first (schedule_flush).
type Batching[S comparable] struct {
	core *core[S]
}

type batchState[S comparable] struct {
	core      *core[S]
	batchSize int
	maxDelay  time.Duration
	pending   *flushToken
}

// NewBatching starts a Batching dispatcher's actor loop and returns a
// handle to it.
func NewBatching[S comparable](cfg BatchConfig[S]) (*Batching[S], error) {
	if cfg.BatchSize <= 0 || cfg.MaxDelay <= 0 {
		return nil, ErrInvalidBatchConfig
	}

	c, err := newCore(&cfg.Config)
	if err != nil {
		return nil, err
	}

	bs := &batchState[S]{core: c, batchSize: cfg.BatchSize, maxDelay: cfg.MaxDelay}
	c.onMutate = bs.scheduleFlush
	c.handleFlushMessage = bs.handleFlush
	go c.run()
	return &Batching[S]{core: c}, nil
}

// scheduleFlush implements the schedule_flush state machine: a flush
// fires immediately when the buffer has reached batch_size; otherwise a
// single pending-flush token is armed (if one isn't already outstanding)
// and a timer is set to deliver it after max_delay. Timers are never
// cancelled — a timer that fires after its token has been superseded or
// already consumed is simply dropped by handleFlush.
func (bs *batchState[S]) scheduleFlush(trigger FlushTrigger) {
	if bs.core.mb.Size() >= bs.batchSize {
		bs.core.assignAndDeliver(TriggerSize)
		bs.pending = nil
		return
	}
	if bs.pending != nil {
		return
	}
	token := newFlushToken()
	bs.pending = &token
	time.AfterFunc(bs.maxDelay, func() {
		bs.core.mailbox <- cmdFlush[S]{token: token}
	})
}

// handleFlush runs the timer-triggered half of schedule_flush: only a
// message carrying the currently pending token causes a flush.
func (bs *batchState[S]) handleFlush(token flushToken) {
	if bs.pending == nil || *bs.pending != token {
		return
	}
	bs.pending = nil
	bs.core.assignAndDeliver(TriggerTimer)
}

// Append appends events and returns how many were dropped on overflow.
func (d *Batching[S]) Append(events []types.Event) int {
	return appendTo(d.core, events)
}

// Ask records demand for sub and registers a liveness watch.
func (d *Batching[S]) Ask(sub S, n int) {
	askOf(d.core, sub, n)
}

// Unsubscribe removes sub's liveness watch and demand.
func (d *Batching[S]) Unsubscribe(sub S) error {
	return unsubscribeFrom(d.core, sub)
}

// Stats returns a point-in-time snapshot.
func (d *Batching[S]) Stats() Stats {
	return statsOf(d.core)
}

// Shutdown stops the dispatcher's actor loop without flushing whatever
// is still pending.
func (d *Batching[S]) Shutdown() {
	shutdown(d.core)
}
