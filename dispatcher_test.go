package reactor

import (
	"os"
	"testing"

	"github.com/humblereactor/reactor/internal/netpoll"
)

func newTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	loop, err := newEventLoop(0, defaultLogger)
	if err != nil {
		t.Fatalf("newEventLoop: %v", err)
	}
	return loop
}

func TestDispatcherFixedOrderReadableBeforeWritable(t *testing.T) {
	loop := newTestLoop(t)
	defer loop.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	var order []string
	d := newDispatcher(loop, int(r.Fd()))
	d.Arm()
	d.OnEvent(netpoll.Writable, func() error { order = append(order, "write"); return nil })
	d.OnEvent(netpoll.Readable, func() error { order = append(order, "read"); return nil })
	d.OnEvent(netpoll.Hangup, func() error { order = append(order, "hangup"); return nil })
	d.OnEvent(netpoll.ErrorEvent, func() error { order = append(order, "error"); return nil })

	if err := d.handleEvent(netpoll.ErrorEvent | netpoll.Hangup | netpoll.Writable | netpoll.Readable); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}

	want := []string{"read", "write", "hangup", "error"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestDispatcherDisarmedDropsEventsSilently(t *testing.T) {
	loop := newTestLoop(t)
	defer loop.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	called := false
	d := newDispatcher(loop, int(r.Fd()))
	d.OnEvent(netpoll.Readable, func() error { called = true; return nil })
	// never armed

	if err := d.handleEvent(netpoll.Readable); err != nil {
		t.Fatalf("handleEvent on disarmed dispatcher returned error: %v", err)
	}
	if called {
		t.Fatal("handler invoked on a disarmed (never-armed) Dispatcher")
	}
}

func TestDispatcherShortCircuitsOnHandlerError(t *testing.T) {
	loop := newTestLoop(t)
	defer loop.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	writableCalled := false
	d := newDispatcher(loop, int(r.Fd()))
	d.Arm()
	d.OnEvent(netpoll.Readable, func() error { return errTestSentinel })
	d.OnEvent(netpoll.Writable, func() error { writableCalled = true; return nil })

	err = d.handleEvent(netpoll.Readable | netpoll.Writable)
	if err != errTestSentinel {
		t.Fatalf("handleEvent error = %v, want errTestSentinel", err)
	}
	if writableCalled {
		t.Fatal("Writable handler ran after Readable handler returned an error")
	}
}

func TestDispatcherDisarmMidTurnStopsRemainingHandlers(t *testing.T) {
	loop := newTestLoop(t)
	defer loop.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	writableCalled := false
	d := newDispatcher(loop, int(r.Fd()))
	d.Arm()
	d.OnEvent(netpoll.Readable, func() error { d.Disarm(); return nil })
	d.OnEvent(netpoll.Writable, func() error { writableCalled = true; return nil })

	if err := d.handleEvent(netpoll.Readable | netpoll.Writable); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}
	if writableCalled {
		t.Fatal("Writable handler ran after Readable disarmed the dispatcher mid-turn")
	}
}

type sentinelErr struct{ s string }

func (e *sentinelErr) Error() string { return e.s }

var errTestSentinel = &sentinelErr{"test sentinel"}
