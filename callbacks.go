package reactor

import (
	"time"

	"github.com/humblereactor/reactor/buffer"
)

// The six user callbacks a Connection fires over its lifetime. Each
// is a plain function type rather than a single fat interface,
// matching the per-concern setter pattern (TcpServer::setXxxCallback
// in original_source/Net/TcpServer.hpp) generalized from Go's idiom of
// small function types over a single God-interface.
type (
	// MessageHandler is invoked synchronously from handleRead whenever
	// bytes arrive; in receives the raw input Buffer (no framing).
	MessageHandler func(c *Connection, in *buffer.Buffer, now time.Time)

	// ConnectionHandler fires once a Connection's Dispatcher has been
	// armed and added to its worker loop's Poller (after connectEstablished).
	ConnectionHandler func(c *Connection)

	// WriteCompleteHandler fires after a full queued payload has drained
	// to the peer, always via queueInLoop (never called inline).
	WriteCompleteHandler func(c *Connection)

	// HighWaterMarkHandler fires once per crossing as the output
	// Buffer's readable size passes the configured threshold.
	HighWaterMarkHandler func(c *Connection, size int)

	// CloseHandler fires once when a Connection starts closing, after its
	// Dispatcher is disarmed and before its descriptor is released; the
	// typical registrant is Server.removeConnection.
	CloseHandler func(c *Connection)

	// ErrorHandler fires on fatal I/O, before the close handler.
	ErrorHandler func(c *Connection, err error)
)
