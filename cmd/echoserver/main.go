// Command echoserver is a minimal embedding application demonstrating
// the reactor framework: it echoes every message back to its sender.
// The CLI and its flag parsing live outside the core package entirely.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/humblereactor/reactor"
	"github.com/humblereactor/reactor/buffer"
)

func main() {
	host := flag.String("host", "0.0.0.0", "listen host")
	port := flag.Uint("port", 9000, "listen port")
	workers := flag.Int("workers", 4, "worker event loop count")
	reusePort := flag.Bool("reuseport", true, "enable SO_REUSEPORT")
	flag.Parse()

	addr := reactor.NewAddress(*host, uint16(*port))

	svr, err := reactor.NewServer(addr,
		reactor.WithNumEventLoop(*workers),
		reactor.WithReusePort(*reusePort),
		reactor.WithHighWaterMark(16*1024*1024),
	)
	if err != nil {
		log.Fatalf("echoserver: construct server: %v", err)
	}

	svr.OnConnection(func(c *reactor.Connection) {
		log.Printf("echoserver: connection opened %s", c.RemoteAddr())
	})
	svr.OnMessage(func(c *reactor.Connection, in *buffer.Buffer, now time.Time) {
		data := append([]byte(nil), in.Bytes()...)
		in.Clear()
		c.Send(data)
	})
	svr.OnHighWaterMark(func(c *reactor.Connection, size int) {
		log.Printf("echoserver: %s crossed high-water mark at %d bytes", c.RemoteAddr(), size)
	})
	svr.OnError(func(c *reactor.Connection, err error) {
		log.Printf("echoserver: connection error on %s: %v", c.RemoteAddr(), err)
	})

	log.Printf("echoserver: listening on %s with %d workers", addr, *workers)
	if err := svr.Run(); err != nil {
		log.Fatalf("echoserver: run: %v", err)
	}
}
