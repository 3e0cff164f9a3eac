package reactor

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/humblereactor/reactor/buffer"
	"github.com/humblereactor/reactor/internal/netpoll"
	"github.com/humblereactor/reactor/internal/sockopt"
)

// Connection is a live client: a SocketHandle, a Dispatcher on a worker
// loop, an input Buffer, an output Buffer, and the six user callbacks.
// Grounded on original_source/Net/TcpConnection.hpp, generalized from
// its std::vector<char> Buffer to the buffer.Buffer type and from its
// weak-pointer tie to Dispatcher's atomic armed flag.
type Connection struct {
	loop   *EventLoop
	handle *sockopt.Handle
	disp   *Dispatcher

	localAddr  net.Addr
	remoteAddr net.Addr

	input  *buffer.Buffer
	output *buffer.Buffer

	highWaterMark  int
	crossedHighWat bool

	onMessage       MessageHandler
	onConnection    ConnectionHandler
	onWriteComplete WriteCompleteHandler
	onClose         CloseHandler
	onError         ErrorHandler
	onHighWaterMark HighWaterMarkHandler

	opened atomic.Bool
}

// newTCPConnection constructs a Connection on the acceptor thread; it
// is not yet armed or added to any Poller. That happens in
// connectEstablished, once the caller has had a chance to register
// callbacks on it.
func newTCPConnection(loop *EventLoop, fd int, remote net.Addr, local net.Addr) *Connection {
	c := &Connection{
		loop:       loop,
		handle:     sockopt.NewHandle(fd),
		input:      buffer.New(),
		output:     buffer.New(),
		localAddr:  local,
		remoteAddr: remote,
	}
	c.disp = loop.newDispatcherFor(fd)
	c.disp.OnEvent(netpoll.Readable, c.handleRead)
	c.disp.OnEvent(netpoll.Writable, c.handleWrite)
	c.disp.OnEvent(netpoll.Hangup, c.handleClose0)
	c.disp.OnEvent(netpoll.ErrorEvent, c.handleError0)
	return c
}

func (c *Connection) Fd() int                { return c.handle.Fd() }
func (c *Connection) LocalAddr() net.Addr    { return c.localAddr }
func (c *Connection) RemoteAddr() net.Addr   { return c.remoteAddr }
func (c *Connection) highWaterMarkBytes() int {
	if c.highWaterMark > 0 {
		return c.highWaterMark
	}
	return 64 * 1024 * 1024
}

// connectEstablished arms the Dispatcher, sets its interest to Readable
// only, and issues the initial ADD — run via queue_in_loop on the
// worker loop so user callbacks are registered (by Server.newConnection)
// before any I/O starts.
func (c *Connection) connectEstablished() error {
	c.disp.Arm()
	c.opened.Store(true)
	if err := c.loop.attachDispatcher(c.disp, netpoll.Readable); err != nil {
		return err
	}
	if c.onConnection != nil {
		c.onConnection(c)
	}
	return nil
}

// Send transmits bytes on the connection. If the caller is not on the
// owner loop's thread, it re-dispatches via RunInLoop with a captured
// reference to c; Go's GC keeps c alive for as long as the closure
// holds it, so no separate keep-alive bookkeeping is needed.
func (c *Connection) Send(data []byte) {
	if !c.loop.isInLoopThread() {
		c.loop.RunInLoop(func() { c.Send(data) })
		return
	}
	if len(data) == 0 {
		return
	}
	if !c.opened.Load() {
		return
	}

	if c.output.ReadableBytes() == 0 {
		n, err := writeDirect(c.handle.Fd(), data)
		if err != nil && !isRetryable(err) {
			c.raiseError(err)
			return
		}
		if n < 0 {
			// write(2) reports -1 on would-block; nothing was written.
			n = 0
		}
		if n == len(data) {
			if c.onWriteComplete != nil {
				c.loop.QueueInLoop(func() { c.onWriteComplete(c) })
			}
			return
		}
		data = data[n:]
	}

	c.output.Append(data)
	c.armWritable()
	c.checkHighWaterMark()
}

func (c *Connection) armWritable() {
	interest := netpoll.Readable | netpoll.Writable
	if c.disp.interest&netpoll.Writable == 0 {
		_ = c.disp.SetInterest(interest)
	}
}

func (c *Connection) checkHighWaterMark() {
	size := c.output.ReadableBytes()
	if size >= c.highWaterMarkBytes() {
		if !c.crossedHighWat {
			c.crossedHighWat = true
			if c.onHighWaterMark != nil {
				c.onHighWaterMark(c, size)
			}
		}
	} else {
		c.crossedHighWat = false
	}
}

// handleRead is the Dispatcher's Readable handler: scatter-read into
// the input Buffer, then invoke on-message synchronously. A message
// callback only consumes from the input Buffer, so running it inline
// cannot trigger the kind of unbounded re-entrant growth a write
// callback could if it queued more output from within itself.
func (c *Connection) handleRead() error {
	n, err := c.input.ReadFromFD(c.handle.Fd())
	if err != nil {
		if isRetryable(err) {
			return nil
		}
		return c.handleError(err)
	}
	if n == 0 {
		return c.handleClose(nil)
	}
	if c.onMessage != nil {
		c.onMessage(c, c.input, time.Now())
	}
	return nil
}

// handleWrite drains the output Buffer; on full drain it clears the
// Writable interest and queues on-write-complete.
func (c *Connection) handleWrite() error {
	if c.output.ReadableBytes() == 0 {
		return nil
	}
	_, err := c.output.WriteToFD(c.handle.Fd())
	if err != nil {
		if isRetryable(err) {
			return nil
		}
		return c.handleError(err)
	}
	if c.output.ReadableBytes() == 0 {
		if err := c.disp.SetInterest(netpoll.Readable); err != nil {
			return err
		}
		c.checkHighWaterMark()
		if c.onWriteComplete != nil {
			c.loop.QueueInLoop(func() { c.onWriteComplete(c) })
		}
	}
	return nil
}

func (c *Connection) handleClose0() error { return c.handleClose(nil) }
func (c *Connection) handleError0() error { return c.handleError(nil) }

// handleClose invokes on-close, which is expected to be
// Server.removeConnection; it disarms the Dispatcher first so no
// further event on this fd is dispatched, then defers the final
// release (DEL, fd close, buffer release) to the next loop iteration so
// the Dispatcher has finished this turn before the Connection's
// resources are torn down.
func (c *Connection) handleClose(_ error) error {
	if !c.opened.CompareAndSwap(true, false) {
		return nil
	}
	c.disp.Disarm()
	if c.onClose != nil {
		c.onClose(c)
	}
	c.loop.QueueInLoop(func() {
		_ = c.loop.detachDispatcher(c.disp)
		_ = c.handle.Close()
		c.input.Reset()
		c.output.Reset()
	})
	return nil
}

// handleError logs, clears interest to zero, DELs, then runs
// handleClose.
func (c *Connection) handleError(err error) error {
	c.loop.logger.Printf("connection fd=%d: fatal I/O error: %v", c.handle.Fd(), err)
	if c.disp.added {
		_ = c.disp.SetInterest(0)
		_ = c.loop.detachDispatcher(c.disp)
	}
	if c.onError != nil {
		c.onError(c, err)
	}
	return c.handleClose(err)
}

func (c *Connection) raiseError(err error) {
	_ = c.handleError(err)
}

func writeDirect(fd int, data []byte) (int, error) {
	return unixWrite(fd, data)
}
