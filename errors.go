package reactor

import (
	"github.com/pkg/errors"

	"github.com/humblereactor/reactor/internal/netpoll"
)

// Sentinel errors for expected control-flow outcomes. Handler return
// codes are inspected by the Dispatcher, never by panicking the loop.
var (
	// ErrServerShutdown is returned by a handler to request an orderly
	// shutdown of the loop that observes it.
	ErrServerShutdown = errors.New("reactor: server is shutting down")

	// ErrLoopAlreadyRunning is returned by EventLoop.Run when called a
	// second time on the same loop; the turn loop keeps running
	// uninterrupted and the second call is simply rejected.
	ErrLoopAlreadyRunning = errors.New("reactor: event loop already running")

	// ErrDuplicateLoopOnThread is returned by EventLoop.Run when the
	// calling goroutine's OS thread already hosts a different EventLoop.
	// A thread may own at most one event loop.
	ErrDuplicateLoopOnThread = errors.New("reactor: a thread may own at most one event loop")

	// ErrUnknownDescriptor is Poller.Update's failure for a MOD/DEL
	// transition against a descriptor the Poller never registered,
	// re-exported here so callers outside internal/netpoll can match it
	// with errors.Is without importing that package directly.
	ErrUnknownDescriptor = netpoll.ErrUnknownDescriptor

	// ErrThreadCountAfterStart is returned by WorkerPool.SetThreadCount
	// once the pool has already been started.
	ErrThreadCountAfterStart = errors.New("reactor: thread count must be set before start")
)
