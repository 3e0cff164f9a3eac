// Package buffer implements the growable, two-cursor byte region used
// for one direction of TCP traffic (input or output) on a Connection.
//
// Grounded on original_source/Net/Buffer.hpp, translated from the
// vector<char>+read/write index design to a Go slice with the same
// read/write-cursor invariants.
package buffer

import (
	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"
)

// initialCapacity is the starting size of a freshly constructed Buffer.
// Capacity only grows from here; there is no shrink policy.
const initialCapacity = 1024

// scratchSize is the size of the pooled overflow region used by
// ReadFromFD's scatter read. A single readv(2) can therefore admit up
// to scratchSize bytes beyond whatever tail space the buffer currently
// has, amortising syscalls across multi-segment TCP arrivals without
// forcing every connection to pre-allocate 64 KiB up front.
const scratchSize = 64 * 1024

var scratchPool bytebufferpool.Pool

// Buffer is a contiguous byte region plus read/write cursors with
// 0 <= r <= w <= cap(buf). Readers consume from r; writers append at w,
// growing the backing array if the tail is insufficient.
type Buffer struct {
	buf []byte
	r   int
	w   int
}

// New returns a Buffer with a 1 KiB initial capacity.
func New() *Buffer {
	return &Buffer{buf: make([]byte, initialCapacity)}
}

// ReadableBytes returns w - r.
func (b *Buffer) ReadableBytes() int { return b.w - b.r }

// WritableBytes returns cap - w, the free tail space.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.w }

// Bytes returns the current readable slice [r, w). The returned slice
// aliases the Buffer's storage and is invalidated by the next mutation.
func (b *Buffer) Bytes() []byte { return b.buf[b.r:b.w] }

// Clear resets both cursors to zero without releasing the backing
// array — compaction by reset, never a memmove of the live region.
func (b *Buffer) Clear() {
	b.r = 0
	b.w = 0
}

// Reset replaces the backing array with a fresh 1 KiB one, discarding
// whatever the Buffer had grown to. Connection teardown calls this on
// both of its buffers so a connection that once carried a large
// message doesn't hold onto that capacity after it closes. Unlike
// Clear, which keeps the (possibly grown) backing array for reuse,
// Reset actually releases it.
func (b *Buffer) Reset() {
	b.buf = make([]byte, initialCapacity)
	b.r = 0
	b.w = 0
}

// grow ensures at least n additional bytes of tail space past w,
// reallocating and copying [0, w) if necessary, so r and w keep their
// positions in the new backing array.
func (b *Buffer) grow(n int) {
	if b.WritableBytes() >= n {
		return
	}
	needed := b.w + n
	newCap := len(b.buf)
	if newCap == 0 {
		newCap = initialCapacity
	}
	for newCap < needed {
		newCap *= 2
	}
	grown := make([]byte, newCap)
	copy(grown, b.buf[:b.w])
	b.buf = grown
}

// Append copies data onto the buffer's tail, growing capacity first if
// the tail is insufficient, then advances w.
func (b *Buffer) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	b.grow(len(data))
	copy(b.buf[b.w:], data)
	b.w += len(data)
}

// ReadFromFD performs a scatter read: one readv(2) into (tail-of-buffer,
// pooled 64 KiB scratch). If the scratch region was used, the overflow
// is appended to the buffer's tail via Append, so a single syscall can
// admit far more than the buffer's current free space. Returns the
// number of bytes read; 0 with a nil error signals a peer close, and 0
// with an unwrapped unix.EAGAIN signals transient would-block.
func (b *Buffer) ReadFromFD(fd int) (int, error) {
	scratch := scratchPool.Get()
	defer scratchPool.Put(scratch)
	scratch.B = scratch.B[:cap(scratch.B)]
	if len(scratch.B) < scratchSize {
		scratch.B = make([]byte, scratchSize)
	}

	tail := b.buf[b.w:]
	var iov [][]byte
	if len(tail) > 0 {
		iov = [][]byte{tail, scratch.B}
	} else {
		iov = [][]byte{scratch.B}
	}

	n, err := readv(fd, iov)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, err
		}
		return 0, errors.Wrap(err, "buffer: readv")
	}
	if n == 0 {
		return 0, nil
	}

	if n <= len(tail) {
		b.w += n
		return n, nil
	}
	b.w += len(tail)
	overflow := n - len(tail)
	b.Append(scratch.B[:overflow])
	return n, nil
}

// WriteToFD writes [r, w) once (a single write(2), never a retry loop —
// partial writes are the caller's concern via the output Buffer), then
// advances r by however much was actually written. If r catches up to
// w, both cursors reset to zero so the next Append can reuse the space
// from the start of the backing array instead of drifting rightward.
func (b *Buffer) WriteToFD(fd int) (int, error) {
	readable := b.Bytes()
	if len(readable) == 0 {
		return 0, nil
	}
	n, err := unix.Write(fd, readable)
	if n > 0 {
		b.r += n
		if b.r == b.w {
			b.r, b.w = 0, 0
		}
	}
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return n, err
		}
		return n, errors.Wrap(err, "buffer: write")
	}
	return n, nil
}

// readv wraps unix.Readv, keeping the scatter-read call site in
// ReadFromFD free of unsafe.Pointer noise.
func readv(fd int, bufs [][]byte) (int, error) {
	return unix.Readv(fd, bufs)
}
