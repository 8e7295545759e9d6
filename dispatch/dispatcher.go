// Package dispatch implements the two dispatcher disciplines (C7, C8):
// long-lived actors wrapping a monitored buffer. Each dispatcher runs its
// own single-consumer command loop so every append, ask, unsubscribe, and
// liveness notification is processed one at a time, in arrival order,
// with no internal locking. The delivery hook a caller supplies must
// never block — it is meant to be a message send into a subscriber's own
// mailbox, not a remote call.
package dispatch

import (
	"errors"
	"math/rand/v2"

	"github.com/justapithecus/dispenser/assign"
	"github.com/justapithecus/dispenser/buffer"
	"github.com/justapithecus/dispenser/liveness"
	"github.com/justapithecus/dispenser/log"
	"github.com/justapithecus/dispenser/metrics"
	"github.com/justapithecus/dispenser/queue"
	"github.com/justapithecus/dispenser/types"
)

// DeliveryFunc is the external delivery hook (spec.md §6): invoked once
// per non-empty assignment with the subscriber and its ordered events.
// Implementations must not block the dispatcher's actor goroutine.
type DeliveryFunc[S comparable] func(sub S, events []types.Event)

// ErrNotSubscribed is returned by Unsubscribe for a handle with no
// current liveness entry.
var ErrNotSubscribed = liveness.ErrNotSubscribed

// FlushTrigger records why the most recent flush happened, purely for
// observability (spec.md doesn't require it; it complements the `stats`
// operation the same way policy.Stats.FlushCount complements the
// teacher's buffered ingestion policy).
type FlushTrigger string

const (
	TriggerNone     FlushTrigger = ""
	TriggerAppend   FlushTrigger = "append"
	TriggerAsk      FlushTrigger = "ask"
	TriggerSize     FlushTrigger = "size"
	TriggerTimer    FlushTrigger = "timer"
	TriggerShutdown FlushTrigger = "shutdown"
)

// Stats is a point-in-time snapshot returned by the `stats` operation.
type Stats struct {
	Buffered         int
	Subscribed       int
	Demand           int
	LastFlushTrigger FlushTrigger
}

// Config configures a dispatcher. Capacity, DropStrategy, and Policy are
// required; Rand, Logger, and Metrics fall back to sane defaults.
type Config[S comparable] struct {
	// Capacity is the max events buffered before drops.
	Capacity int
	// DropStrategy selects which events are discarded on overflow.
	DropStrategy queue.DropStrategy
	// Policy is the fairness policy used at assignment.
	Policy assign.Policy[S]
	// Rand supplies the policy's randomness. Defaults to a fixed-seed
	// source (the same sequence in every process) if nil.
	Rand *rand.Rand
	// NewWatcher constructs the liveness watcher for this dispatcher,
	// given a callback to invoke on disappearance. Required.
	NewWatcher func(onDown func(sub S, token liveness.Token)) liveness.Watcher[S]
	// Deliver is the external delivery hook. Required.
	Deliver DeliveryFunc[S]
	// Logger is optional; a nil Logger disables logging.
	Logger *log.Logger
	// Metrics is optional; a nil Metrics disables metric collection.
	Metrics *metrics.Collector
	// MailboxSize bounds the command channel. Defaults to 64.
	MailboxSize int
}

var (
	errMissingWatcherFactory = errors.New("dispatch: Config.NewWatcher is required")
	errMissingDeliver        = errors.New("dispatch: Config.Deliver is required")
)

func (c *Config[S]) validate() error {
	if c.NewWatcher == nil {
		return errMissingWatcherFactory
	}
	if c.Deliver == nil {
		return errMissingDeliver
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(1, 2))
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = 64
	}
	return nil
}

// core holds the state and command loop shared by Immediate and Batching.
// onMutate is the one point where the two disciplines differ: Immediate
// assigns and delivers right away, Batching runs schedule_flush.
type core[S comparable] struct {
	mb                 *buffer.MonitoredBuffer[S]
	deliver            DeliveryFunc[S]
	logger             *log.Logger
	metrics            *metrics.Collector
	onMutate           func(trigger FlushTrigger)
	handleFlushMessage func(token flushToken)

	lastFlushTrigger FlushTrigger

	mailbox chan any
}

type cmdAppend[S comparable] struct {
	events []types.Event
	reply  chan int
}

type cmdAsk[S comparable] struct {
	sub S
	n   int
}

type cmdUnsubscribe[S comparable] struct {
	sub   S
	reply chan error
}

type cmdStats[S comparable] struct {
	reply chan Stats
}

type cmdDown[S comparable] struct {
	sub   S
	token liveness.Token
}

type cmdFlush[S comparable] struct {
	token flushToken
}

type cmdShutdown struct {
	done chan struct{}
}

func newCore[S comparable](cfg *Config[S]) (*core[S], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &core[S]{
		deliver:            cfg.Deliver,
		logger:             cfg.Logger,
		metrics:            cfg.Metrics,
		handleFlushMessage: func(flushToken) {},
		mailbox:            make(chan any, cfg.MailboxSize),
	}

	watcher := cfg.NewWatcher(func(sub S, token liveness.Token) {
		// The watcher may call this from any goroutine; hand off to the
		// actor's own mailbox rather than touching state here.
		go func() { c.mailbox <- cmdDown[S]{sub: sub, token: token} }()
	})

	mb, err := buffer.NewMonitored[S](cfg.Policy, cfg.Capacity, cfg.DropStrategy, cfg.Rand, watcher)
	if err != nil {
		return nil, err
	}
	c.mb = mb

	return c, nil
}

func (c *core[S]) run() {
	for raw := range c.mailbox {
		switch cmd := raw.(type) {
		case cmdAppend[S]:
			dropped := c.mb.Append(cmd.events)
			if c.metrics != nil {
				c.metrics.IncAppended(len(cmd.events))
				c.metrics.IncDropped(dropped)
			}
			c.onMutate(TriggerAppend)
			cmd.reply <- dropped
		case cmdAsk[S]:
			c.mb.Ask(cmd.sub, cmd.n)
			c.onMutate(TriggerAsk)
		case cmdUnsubscribe[S]:
			cmd.reply <- c.mb.Delete(cmd.sub)
		case cmdStats[S]:
			cmd.reply <- c.snapshotStats()
		case cmdDown[S]:
			if err := c.mb.OnDown(cmd.sub, cmd.token); err != nil && c.logger != nil {
				c.logger.Debug("liveness notification ignored", map[string]any{
					"reason": err.Error(),
				})
			}
		case cmdFlush[S]:
			c.handleFlushMessage(cmd.token)
		case cmdShutdown:
			close(cmd.done)
			return
		}
	}
}

func (c *core[S]) snapshotStats() Stats {
	s := c.mb.Stats()
	return Stats{
		Buffered:         s.Buffered,
		Subscribed:       c.mb.Subscribed(),
		Demand:           s.Demand,
		LastFlushTrigger: c.lastFlushTrigger,
	}
}

// assignAndDeliver runs one assignment round and invokes the delivery
// hook for every non-empty slice. Shared by both dispatch disciplines.
func (c *core[S]) assignAndDeliver(trigger FlushTrigger) {
	assignments := c.mb.AssignEvents()
	if len(assignments) == 0 {
		return
	}
	c.lastFlushTrigger = trigger
	for _, a := range assignments {
		if len(a.Events) == 0 {
			continue
		}
		if c.metrics != nil {
			c.metrics.IncDelivered(len(a.Events))
		}
		c.deliver(a.Subscriber, a.Events)
	}
	if c.metrics != nil {
		c.metrics.IncFlush(string(trigger))
	}
	if c.logger != nil {
		c.logger.Debug("flushed", map[string]any{
			"trigger":     string(trigger),
			"assignments": len(assignments),
		})
	}
}

// Append appends events and returns how many were dropped on overflow.
func appendTo[S comparable](c *core[S], events []types.Event) int {
	reply := make(chan int, 1)
	c.mailbox <- cmdAppend[S]{events: events, reply: reply}
	return <-reply
}

// ask records demand; it never blocks on delivery.
func askOf[S comparable](c *core[S], sub S, n int) {
	if n == 0 {
		return
	}
	c.mailbox <- cmdAsk[S]{sub: sub, n: n}
}

// unsubscribe removes sub.
func unsubscribeFrom[S comparable](c *core[S], sub S) error {
	reply := make(chan error, 1)
	c.mailbox <- cmdUnsubscribe[S]{sub: sub, reply: reply}
	return <-reply
}

// statsOf returns a stats snapshot.
func statsOf[S comparable](c *core[S]) Stats {
	reply := make(chan Stats, 1)
	c.mailbox <- cmdStats[S]{reply: reply}
	return <-reply
}

// shutdown stops the actor loop. Pending batched events are lost; no
// drain is attempted, matching spec.md §5.
func shutdown[S comparable](c *core[S]) {
	done := make(chan struct{})
	c.mailbox <- cmdShutdown{done: done}
	<-done
}
