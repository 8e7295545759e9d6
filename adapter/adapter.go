// Package adapter defines the delivery-adapter boundary: components that
// turn one dispatcher assignment into an outbound network message.
// Adapters own their own retry/backoff; the dispatcher's delivery hook
// must never block, so Async hands each assignment to a bounded worker
// pool and lets Publish run off the actor's goroutine.
package adapter

import (
	"context"
	"sync"

	"github.com/justapithecus/dispenser/dispatch"
	"github.com/justapithecus/dispenser/log"
	"github.com/justapithecus/dispenser/types"
)

// Delivery is the JSON payload published by every out-of-process adapter
// for one assignment.
type Delivery struct {
	Subscriber string        `json:"subscriber"`
	Events     []types.Event `json:"events"`
}

// Publisher publishes one Delivery. Implementations must respect context
// cancellation and deadlines.
type Publisher interface {
	Publish(ctx context.Context, d *Delivery) error
	Close() error
}

// Async wraps a Publisher with a bounded worker pool so it can be used as
// a dispatch.DeliveryFunc[string] without blocking the dispatcher's actor
// goroutine. Publish failures are logged and dropped — delivery is
// best-effort once handed off, matching spec.md's "delivery hook must be
// non-blocking" constraint.
type Async struct {
	publisher Publisher
	logger    *log.Logger
	queue     chan *Delivery
	wg        sync.WaitGroup
}

// NewAsync starts workers workers draining a queue of size queueSize,
// each calling publisher.Publish with a background context; any
// per-publish timeout is the Publisher's own.
func NewAsync(publisher Publisher, workers, queueSize int, logger *log.Logger) *Async {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	a := &Async{
		publisher: publisher,
		logger:    logger,
		queue:     make(chan *Delivery, queueSize),
	}
	a.wg.Add(workers)
	for range workers {
		go a.worker()
	}
	return a
}

func (a *Async) worker() {
	defer a.wg.Done()
	for d := range a.queue {
		if err := a.publisher.Publish(context.Background(), d); err != nil && a.logger != nil {
			a.logger.Error("delivery failed", map[string]any{
				"subscriber": d.Subscriber,
				"error":      err.Error(),
			})
		}
	}
}

// DeliveryFunc adapts Async into a dispatch.DeliveryFunc[string]. The
// events slice is wrapped in a Delivery and enqueued; a full queue drops the
// delivery rather than blocking the caller.
func (a *Async) DeliveryFunc() dispatch.DeliveryFunc[string] {
	return func(sub string, events []types.Event) {
		d := &Delivery{Subscriber: sub, Events: events}
		select {
		case a.queue <- d:
		default:
			if a.logger != nil {
				a.logger.Warn("delivery queue full, dropping", map[string]any{"subscriber": sub})
			}
		}
	}
}

// Close stops accepting new work, waits for queued deliveries to drain,
// and closes the underlying Publisher.
func (a *Async) Close() error {
	close(a.queue)
	a.wg.Wait()
	return a.publisher.Close()
}
