package reactor

import (
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/humblereactor/reactor/internal/netpoll"
)

// loopStatus is an EventLoop's lifecycle state: Init before Run has
// been called, Running for the duration of the turn loop, Stopped once
// Stop has flipped it or a handler has signaled shutdown.
type loopStatus int32

const (
	statusInit loopStatus = iota
	statusRunning
	statusStopped
)

// pollTimeoutMs is the Poller.Wait timeout; it bounds how long Stop can
// take to be observed if the wakeup write were ever lost, and is the
// only timeout anywhere in the turn loop.
const pollTimeoutMs = 10_000

// EventLoop is thread-affine: Attributes: owner OS-thread identity;
// status; an owned Poller; an owned wake-up descriptor; a per-turn
// active-Dispatchers list; a mutex-protected deferred task queue.
//
// Affinity is emulated with runtime.LockOSThread + gettid(2) rather
// than a goroutine-identity hack — see DESIGN.md "EventLoop affinity".
// Grounded on original_source/Net/EventLoop.hpp (t_loopInThisThread /
// t_threadIdInThisThread) and the trimmed ysyzqq-gnet eventloop_unix.go.
type EventLoop struct {
	idx    int
	logger Logger

	status   atomic.Int32
	threadID atomic.Int32 // gettid() of the goroutine running run(), 0 until started

	poller      *netpoll.Poller
	dispatchers map[int]*Dispatcher // fd -> Dispatcher, for routing Wait results

	wakeFd         int
	wakeDispatcher *Dispatcher

	mu    sync.Mutex
	tasks []func()
}

func newEventLoop(idx int, logger Logger) (*EventLoop, error) {
	p, err := netpoll.Open()
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		p.Close()
		return nil, errors.Wrap(err, "eventloop: create wakeup eventfd")
	}

	el := &EventLoop{
		idx:         idx,
		logger:      logger,
		poller:      p,
		dispatchers: make(map[int]*Dispatcher),
		wakeFd:      wakeFd,
	}

	el.wakeDispatcher = newDispatcher(el, wakeFd)
	el.wakeDispatcher.Arm()
	el.wakeDispatcher.OnEvent(netpoll.Readable, el.drainWakeup)
	el.dispatchers[wakeFd] = el.wakeDispatcher

	return el, nil
}

// drainWakeup reads the 8-byte eventfd counter so the Poller does not
// re-fire on it on the next turn.
func (el *EventLoop) drainWakeup() error {
	var buf [8]byte
	_, err := unix.Read(el.wakeFd, buf[:])
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return errors.Wrap(err, "eventloop: drain wakeup fd")
	}
	return nil
}

// isInLoopThread compares the calling goroutine's OS thread id against
// the id this loop's run() goroutine locked itself to.
func (el *EventLoop) isInLoopThread() bool {
	return int32(unix.Gettid()) == el.threadID.Load()
}

// loopThreadOwners tracks which EventLoop currently owns each OS
// thread's gettid(), so two EventLoops can never end up sharing one
// thread even if a goroutine migrates between calls.
var loopThreadOwners sync.Map // int32 gettid -> *EventLoop

// Run executes the canonical turn loop on the calling goroutine. It
// locks the goroutine to its current OS thread for the lifetime of the
// loop, so every Poller transition for this loop's Dispatchers happens
// on that one thread, and returns ErrLoopAlreadyRunning if the loop is
// already running — a second concurrent call never restarts the turn
// loop.
func (el *EventLoop) Run() error {
	if !el.status.CompareAndSwap(int32(statusInit), int32(statusRunning)) {
		return ErrLoopAlreadyRunning
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	tid := int32(unix.Gettid())

	if prev, loaded := loopThreadOwners.LoadOrStore(tid, el); loaded && prev.(*EventLoop) != el {
		el.status.Store(int32(statusInit))
		return ErrDuplicateLoopOnThread
	}
	defer loopThreadOwners.Delete(tid)

	el.threadID.Store(tid)

	if err := el.attachDispatcher(el.wakeDispatcher, netpoll.Readable); err != nil {
		return err
	}

	var tempTasks []func()
	for loopStatus(el.status.Load()) == statusRunning {
		ready, err := el.poller.Wait(pollTimeoutMs)
		if err != nil {
			el.logger.Printf("event-loop %d: poll error: %v", el.idx, err)
			return err
		}

		for _, r := range ready {
			d, ok := el.dispatchers[r.Fd]
			if !ok {
				continue
			}
			if err := d.handleEvent(r.Events); err != nil {
				if errors.Is(err, ErrServerShutdown) {
					el.status.Store(int32(statusStopped))
				} else {
					el.logger.Printf("event-loop %d: handler error on fd %d: %v", el.idx, r.Fd, err)
				}
			}
		}

		el.mu.Lock()
		tempTasks, el.tasks = el.tasks, tempTasks[:0]
		el.mu.Unlock()

		for _, task := range tempTasks {
			task()
		}
	}
	return nil
}

// Stop stores the Stopped status atomically and wakes the loop so it
// observes the new status promptly instead of waiting out the 10s poll
// timeout.
func (el *EventLoop) Stop() {
	el.status.Store(int32(statusStopped))
	el.wakeup()
}

// RunInLoop executes task synchronously if the caller is already on
// this loop's thread; otherwise it delegates to QueueInLoop.
func (el *EventLoop) RunInLoop(task func()) {
	if el.isInLoopThread() {
		task()
		return
	}
	el.QueueInLoop(task)
}

// QueueInLoop enqueues task under the mutex and unconditionally wakes
// the loop. The double-wake cost when the loop was already about to
// wake up is negligible; the alternative (skip the write when the
// queue was non-empty) risks a missed wake if the loop had already
// swapped the queue out and gone back to Wait.
func (el *EventLoop) QueueInLoop(task func()) {
	el.mu.Lock()
	el.tasks = append(el.tasks, task)
	el.mu.Unlock()
	el.wakeup()
}

func (el *EventLoop) wakeup() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(el.wakeFd, buf[:]); err != nil {
		el.logger.Printf("event-loop %d: wakeup write failed: %v", el.idx, err)
	}
}

// newDispatcherFor creates a Dispatcher for fd bound to this loop. The
// caller is responsible for arming and attaching it via
// attachDispatcher once handlers are registered; it is not added to
// the Poller here.
func (el *EventLoop) newDispatcherFor(fd int) *Dispatcher {
	return newDispatcher(el, fd)
}

// attachDispatcher registers d with this loop's dispatcher map and
// issues the initial ADD transition with the given interest set. Must
// run on the loop's own thread, or before the loop starts running (as
// Acceptor.Start does).
func (el *EventLoop) attachDispatcher(d *Dispatcher, interest netpoll.Event) error {
	if err := d.SetInterest(interest); err != nil {
		return err
	}
	el.dispatchers[d.fd] = d
	return nil
}

// detachDispatcher issues DEL and removes d from the dispatcher map.
func (el *EventLoop) detachDispatcher(d *Dispatcher) error {
	err := d.Remove()
	delete(el.dispatchers, d.fd)
	return err
}

// Close releases the loop's Poller and wakeup descriptor. Called once
// the loop's Run goroutine has returned.
func (el *EventLoop) Close() error {
	err1 := el.poller.Close()
	err2 := unix.Close(el.wakeFd)
	if err1 != nil {
		return err1
	}
	return err2
}
