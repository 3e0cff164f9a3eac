package reactor

import (
	"time"

	"github.com/humblereactor/reactor/codec"
)

// Options configures a Server, following the usual functional-option
// pattern: every field except Codec is read somewhere in Server or
// Connection construction.
type Options struct {
	// NumEventLoop is the worker pool size. Zero means single-reactor
	// mode: the acceptor loop also hosts every Connection.
	NumEventLoop int

	// ReusePort enables SO_REUSEPORT on the listening socket.
	ReusePort bool

	// TCPKeepAlive, when non-zero, is set on every accepted socket.
	TCPKeepAlive time.Duration

	// HighWaterMark is the output-buffer threshold (bytes) past which
	// HighWaterMarkHandler fires.
	HighWaterMark int

	// Codec is only stored here: nothing in the module reads it, and it
	// is never invoked from the core read/write path. The server itself
	// stays payload-agnostic — framing is entirely up to the embedding
	// application's own OnMessage handler.
	Codec codec.Codec

	Logger Logger
}

// Option mutates Options; functional-option constructors below are the
// public surface for building one.
type Option func(*Options)

func WithNumEventLoop(n int) Option {
	return func(o *Options) { o.NumEventLoop = n }
}

func WithReusePort(enabled bool) Option {
	return func(o *Options) { o.ReusePort = enabled }
}

func WithTCPKeepAlive(d time.Duration) Option {
	return func(o *Options) { o.TCPKeepAlive = d }
}

func WithHighWaterMark(bytes int) Option {
	return func(o *Options) { o.HighWaterMark = bytes }
}

func WithCodec(c codec.Codec) Option {
	return func(o *Options) { o.Codec = c }
}

func WithLogger(l Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func defaultOptions() *Options {
	return &Options{
		HighWaterMark: 64 * 1024 * 1024,
		Codec:         codec.Passthrough{},
		Logger:        defaultLogger,
	}
}
