package reactor

import (
	"sync/atomic"

	"github.com/humblereactor/reactor/internal/netpoll"
)

// handlerFunc is one event-kind callback registered on a Dispatcher.
// A non-nil error short-circuits the remaining kinds for this turn.
type handlerFunc func() error

// Dispatcher is the per-descriptor glue between a socket and its
// handlers: the interest set requested of the Poller, the pending set
// reported by the last poll, and a handler keyed by event kind,
// invoked in the fixed order Readable -> Writable -> Hangup -> Error.
//
// Grounded on original_source/Net/Channel.hpp. The C++ tie is a weak
// pointer promoted for the duration of handleEvent; Go's GC makes that
// unnecessary for memory safety, so tie here is an atomic armed flag
// that plays the same functional role: a Dispatcher that has been
// disarmed silently drops events already in flight for this turn
// (see DESIGN.md for the full translation rationale).
type Dispatcher struct {
	fd    int
	loop  *EventLoop
	tie   atomic.Bool
	added bool

	interest netpoll.Event
	pending  netpoll.Event

	handlers [4]handlerFunc // indexed by bit position of netpoll.Event
}

// newDispatcher creates a Dispatcher in a detached state (I: not yet
// ADDed to any Poller). fd must belong to loop's thread by the time
// EventLoop.attachDispatcher is called.
func newDispatcher(loop *EventLoop, fd int) *Dispatcher {
	return &Dispatcher{fd: fd, loop: loop}
}

func eventBit(e netpoll.Event) int {
	switch e {
	case netpoll.Readable:
		return 0
	case netpoll.Writable:
		return 1
	case netpoll.Hangup:
		return 2
	case netpoll.ErrorEvent:
		return 3
	default:
		return -1
	}
}

// OnEvent registers the handler invoked when kind is pending.
func (d *Dispatcher) OnEvent(kind netpoll.Event, fn handlerFunc) {
	d.handlers[eventBit(kind)] = fn
}

// Arm sets the tie flag, marking the owner as alive and willing to
// receive dispatched events. Called by connectEstablished before the
// first ADD.
func (d *Dispatcher) Arm() { d.tie.Store(true) }

// Disarm clears the tie flag; any event already queued for this turn
// but not yet dispatched is dropped silently, the functional analogue
// of a failed weak-pointer promotion.
func (d *Dispatcher) Disarm() { d.tie.Store(false) }

// SetInterest updates the locally held interest bitset and issues the
// matching Poller transition (ADD if not yet attached, MOD otherwise).
// Must run on the owning loop's thread, or before that loop starts
// running; nothing checks this at run time.
func (d *Dispatcher) SetInterest(interest netpoll.Event) error {
	transition := netpoll.Mod
	if !d.added {
		transition = netpoll.Add
	}
	if err := d.loop.poller.Update(d.fd, transition, interest); err != nil {
		return err
	}
	d.interest = interest
	d.added = true
	return nil
}

// Remove issues a DEL transition and marks the Dispatcher detached.
func (d *Dispatcher) Remove() error {
	if !d.added {
		return nil
	}
	err := d.loop.poller.Update(d.fd, netpoll.Del, 0)
	d.added = false
	return err
}

// handleEvent consults pending and invokes the matching handlers in
// fixed order Readable -> Writable -> Hangup -> Error. A handler
// returning a non-nil error short-circuits the remaining kinds.
func (d *Dispatcher) handleEvent(pending netpoll.Event) error {
	if !d.tie.Load() {
		return nil
	}
	d.pending = pending

	order := [4]netpoll.Event{netpoll.Readable, netpoll.Writable, netpoll.Hangup, netpoll.ErrorEvent}
	for _, kind := range order {
		if d.pending&kind == 0 {
			continue
		}
		h := d.handlers[eventBit(kind)]
		if h == nil {
			continue
		}
		if err := h(); err != nil {
			return err
		}
		if !d.tie.Load() {
			// A handler earlier in the fixed order (e.g. handleClose
			// triggered from Readable) may have disarmed us; stop.
			return nil
		}
	}
	return nil
}
