package dispatch

import "github.com/justapithecus/dispenser/types"

// Immediate is the C7 dispatcher discipline: every append and every ask
// is immediately followed by an assignment round, so buffered events are
// handed out as soon as there is both supply and demand for them.
type Immediate[S comparable] struct {
	core *core[S]
}

// NewImmediate starts an Immediate dispatcher's actor loop and returns a
// handle to it.
func NewImmediate[S comparable](cfg Config[S]) (*Immediate[S], error) {
	c, err := newCore(&cfg)
	if err != nil {
		return nil, err
	}
	c.onMutate = func(trigger FlushTrigger) {
		c.assignAndDeliver(trigger)
	}
	go c.run()
	return &Immediate[S]{core: c}, nil
}

// Append appends events and returns how many were dropped on overflow.
// Any newly satisfiable demand is assigned and delivered before Append
// returns.
func (d *Immediate[S]) Append(events []types.Event) int {
	return appendTo(d.core, events)
}

// Ask records demand for sub and registers a liveness watch. Ask is
// asynchronous: it enqueues onto the actor's mailbox and returns without
// waiting for the resulting assignment round to run.
func (d *Immediate[S]) Ask(sub S, n int) {
	askOf(d.core, sub, n)
}

// Unsubscribe removes sub's liveness watch and demand.
func (d *Immediate[S]) Unsubscribe(sub S) error {
	return unsubscribeFrom(d.core, sub)
}

// Stats returns a point-in-time snapshot.
func (d *Immediate[S]) Stats() Stats {
	return statsOf(d.core)
}

// Shutdown stops the dispatcher's actor loop.
func (d *Immediate[S]) Shutdown() {
	shutdown(d.core)
}
