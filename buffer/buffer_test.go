package buffer

import (
	"bytes"
	"os"
	"testing"
)

func TestAppendGrowsReadableBytes(t *testing.T) {
	b := New()
	if b.ReadableBytes() != 0 {
		t.Fatalf("new buffer should be empty, got %d readable", b.ReadableBytes())
	}

	payload := []byte("hello, world")
	b.Append(payload)

	if got := b.ReadableBytes(); got != len(payload) {
		t.Fatalf("readable bytes = %d, want %d", got, len(payload))
	}
	if !bytes.Equal(b.Bytes(), payload) {
		t.Fatalf("Bytes() = %q, want %q", b.Bytes(), payload)
	}
}

func TestAppendGrowsPastInitialCapacity(t *testing.T) {
	b := New()
	big := bytes.Repeat([]byte("x"), initialCapacity*3+17)
	b.Append(big)

	if got := b.ReadableBytes(); got != len(big) {
		t.Fatalf("readable bytes = %d, want %d", got, len(big))
	}
	if !bytes.Equal(b.Bytes(), big) {
		t.Fatal("grown buffer contents do not match appended data")
	}
}

func TestClearResetsCursorsWithoutReallocating(t *testing.T) {
	b := New()
	b.Append([]byte("abc"))
	backing := &b.buf[0]

	b.Clear()

	if b.ReadableBytes() != 0 {
		t.Fatalf("readable bytes after Clear = %d, want 0", b.ReadableBytes())
	}
	if &b.buf[0] != backing {
		t.Fatal("Clear reallocated the backing array; spec requires reset, not reallocation")
	}
}

func TestWriteToFDResetsCursorsOnFullDrain(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	b := New()
	payload := []byte("drain me")
	b.Append(payload)

	n, err := b.WriteToFD(int(w.Fd()))
	if err != nil {
		t.Fatalf("WriteToFD: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("wrote %d bytes, want %d", n, len(payload))
	}
	if b.ReadableBytes() != 0 {
		t.Fatalf("readable bytes after full drain = %d, want 0", b.ReadableBytes())
	}
	if b.r != 0 || b.w != 0 {
		t.Fatalf("cursors after full drain = (%d, %d), want (0, 0)", b.r, b.w)
	}

	got := make([]byte, len(payload))
	if _, err := r.Read(got); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("read back %q, want %q", got, payload)
	}
}

func TestReadFromFDScatterReadAcrossPipeBoundary(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	payload := bytes.Repeat([]byte("ab"), 40000) // forces the scratch overflow path
	go func() {
		w.Write(payload)
		w.Close()
	}()

	b := New()
	total := 0
	for total < len(payload) {
		n, err := b.ReadFromFD(int(r.Fd()))
		if err != nil {
			t.Fatalf("ReadFromFD: %v", err)
		}
		if n == 0 {
			break
		}
		total += n
	}

	if !bytes.Equal(b.Bytes(), payload[:b.ReadableBytes()]) {
		t.Fatal("data read via scatter read does not match what was written")
	}
}
