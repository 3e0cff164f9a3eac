package reactor

import (
	"os"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
)

// sendFileChunk is the unit of work handed to the ants pool: read one
// chunk off the loop thread, then queue the write back onto the loop.
const sendFileChunk = 256 * 1024

var (
	sendFilePoolOnce sync.Once
	sendFilePool     *ants.Pool
)

func sendFilePoolInstance() *ants.Pool {
	sendFilePoolOnce.Do(func() {
		// A small pool: SendFile's chunk reads are short-lived disk
		// I/O, not CPU work, so a handful of goroutines comfortably
		// services many concurrent in-flight transfers.
		p, err := ants.NewPool(32)
		if err != nil {
			panic(err)
		}
		sendFilePool = p
	})
	return sendFilePool
}

// SendFile spools length bytes of f starting at offset to the peer.
// Reading a chunk off disk blocks, so each chunk read runs on the ants
// pool rather than the loop goroutine; the result is re-queued via
// queue_in_loop, which schedules the next chunk's read once the
// previous one has been handed to Send, repeating until the whole
// range has been sent or the connection closes.
func (c *Connection) SendFile(f *os.File, offset, length int64) error {
	if !c.loop.isInLoopThread() {
		c.loop.RunInLoop(func() { _ = c.SendFile(f, offset, length) })
		return nil
	}
	if length <= 0 {
		return nil
	}
	return c.sendFileChunk(f, offset, length)
}

func (c *Connection) sendFileChunk(f *os.File, offset, remaining int64) error {
	n := int64(sendFileChunk)
	if remaining < n {
		n = remaining
	}
	chunk := make([]byte, n)

	err := sendFilePoolInstance().Submit(func() {
		read, readErr := f.ReadAt(chunk, offset)
		c.loop.QueueInLoop(func() {
			if readErr != nil && read == 0 {
				c.raiseError(errors.Wrap(readErr, "sendfile: read chunk"))
				return
			}
			c.Send(chunk[:read])

			left := remaining - int64(read)
			if left > 0 && c.opened.Load() {
				_ = c.sendFileChunk(f, offset+int64(read), left)
			}
		})
	})
	if err != nil {
		return errors.Wrap(err, "sendfile: submit to pool")
	}
	return nil
}
