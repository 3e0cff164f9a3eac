package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/humblereactor/reactor/internal/sockopt"
)

// Server composes Acceptor + WorkerPool: it routes accepted
// descriptors to worker loops, constructs Connections there, wires
// user callbacks, and removes closed Connections from its map.
// Grounded on original_source/Net/TcpServer.hpp + the trimmed
// ysyzqq-gnet server_unix.go/reactor_linux.go (main-reactor /
// sub-reactor split).
type Server struct {
	opts   *Options
	logger Logger

	mainLoop *EventLoop
	pool     *WorkerPool
	acceptor *Acceptor

	mu          sync.Mutex
	connections map[int]*Connection

	onMessage       MessageHandler
	onConnection    ConnectionHandler
	onWriteComplete WriteCompleteHandler
	onError         ErrorHandler
	onHighWaterMark HighWaterMarkHandler

	stopOnce sync.Once
}

// NewServer constructs the acceptor loop, the Acceptor itself, and the
// WorkerPool, applying the given Options.
func NewServer(address Address, opts ...Option) (*Server, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(o)
	}

	mainLoop, err := newEventLoop(-1, o.Logger)
	if err != nil {
		return nil, err
	}

	svr := &Server{
		opts:        o,
		logger:      o.Logger,
		mainLoop:    mainLoop,
		connections: make(map[int]*Connection),
	}
	svr.pool = newWorkerPool(mainLoop, o.Logger)
	if err := svr.pool.SetThreadCount(o.NumEventLoop); err != nil {
		return nil, err
	}

	acceptor, err := NewAcceptor(mainLoop, address, sockopt.ListenOptions{ReusePort: o.ReusePort})
	if err != nil {
		return nil, err
	}
	svr.acceptor = acceptor
	acceptor.SetNewConnectionCallback(svr.newConnection)

	return svr, nil
}

func (svr *Server) OnMessage(h MessageHandler)             { svr.onMessage = h }
func (svr *Server) OnConnection(h ConnectionHandler)       { svr.onConnection = h }
func (svr *Server) OnWriteComplete(h WriteCompleteHandler) { svr.onWriteComplete = h }
func (svr *Server) OnError(h ErrorHandler)                 { svr.onError = h }
func (svr *Server) OnHighWaterMark(h HighWaterMarkHandler) { svr.onHighWaterMark = h }

// ConnectionCount returns the number of live connections currently
// tracked by the server's map.
func (svr *Server) ConnectionCount() int {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	return len(svr.connections)
}

// Start starts the worker pool, then the acceptor, so every worker
// loop is already running before connections can arrive.
func (svr *Server) Start() error {
	if err := svr.pool.Start(); err != nil {
		return err
	}
	return svr.acceptor.Start()
}

// Run starts the server and then blocks running the acceptor loop's
// own turn cycle on the calling goroutine. It owns the main loop's
// goroutine, so it releases the loop's Poller
// and wakeup descriptor itself once Run returns, the same pattern
// WorkerPool.Start uses for its worker goroutines.
func (svr *Server) Run() error {
	if err := svr.Start(); err != nil {
		return err
	}
	err := svr.mainLoop.Run()
	sniffErrorAndLog(svr.logger, svr.mainLoop.Close())
	return err
}

// Stop wakes every worker loop so each exits its current turn, closes
// the acceptor from the acceptor loop's own thread (Acceptor.Close
// issues a DEL transition, and Poller calls must come from the thread
// that owns the loop), then stops the acceptor loop itself.
func (svr *Server) Stop() {
	svr.stopOnce.Do(func() {
		svr.pool.Stop()

		done := make(chan struct{})
		svr.mainLoop.RunInLoop(func() {
			sniffErrorAndLog(svr.logger, svr.acceptor.Close())
			close(done)
		})
		<-done

		svr.mainLoop.Stop()
	})
}

// newConnection is the Acceptor's new-connection callback: pick a
// worker loop by round robin, construct the Connection there, register
// it in the map, copy the user callbacks across, and hand off
// connectEstablished via queue_in_loop.
func (svr *Server) newConnection(fd int, sa unix.Sockaddr) {
	loop := svr.pool.NextLoop()

	remote := sockopt.SockaddrToTCPAddr(sa)
	conn := newTCPConnection(loop, fd, remote, svr.acceptor.addr)

	if svr.opts.TCPKeepAlive > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
		setTCPKeepAliveInterval(fd, svr.opts.TCPKeepAlive)
	}

	conn.highWaterMark = svr.opts.HighWaterMark
	conn.onMessage = svr.onMessage
	conn.onConnection = svr.onConnection
	conn.onWriteComplete = svr.onWriteComplete
	conn.onError = svr.onError
	conn.onHighWaterMark = svr.onHighWaterMark
	conn.onClose = svr.removeConnection

	svr.mu.Lock()
	svr.connections[fd] = conn
	svr.mu.Unlock()

	loop.QueueInLoop(func() {
		if err := conn.connectEstablished(); err != nil {
			svr.logger.Printf("server: connectEstablished fd=%d: %v", fd, err)
		}
	})
}

// removeConnection must run on the acceptor loop to mutate the map; if
// called from a worker (Connection.handleClose calls it on the
// connection's own loop thread, a worker unless the pool has zero
// workers), it re-dispatches via RunInLoop onto the acceptor loop,
// erases the map entry, then QueueInLoop's a no-op onto the
// connection's loop. The no-op captures nothing; the Connection's
// descriptor and buffers are released by the task handleClose itself
// queued on that loop.
func (svr *Server) removeConnection(c *Connection) {
	svr.mainLoop.RunInLoop(func() {
		svr.mu.Lock()
		delete(svr.connections, c.Fd())
		svr.mu.Unlock()

		c.loop.QueueInLoop(func() {})
	})
}

func setTCPKeepAliveInterval(fd int, d time.Duration) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(d/time.Second))
}
