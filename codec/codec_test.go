package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/smallnest/goframe"
)

func TestPassthroughIsIdentity(t *testing.T) {
	p := Passthrough{}
	data := []byte("arbitrary payload")

	encoded, err := p.Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(encoded, data) {
		t.Fatalf("Encode changed the bytes: got %q, want %q", encoded, data)
	}

	frame, consumed, err := p.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != len(data) || !bytes.Equal(frame, data) {
		t.Fatalf("Decode = (%q, %d), want (%q, %d)", frame, consumed, data, len(data))
	}
}

func TestLengthFieldRoundTrip(t *testing.T) {
	lf := LengthField{
		Encoder: goframe.EncoderConfig{
			ByteOrder:                       binary.BigEndian,
			LengthFieldLength:               4,
			LengthAdjustment:                0,
			LengthIncludesLengthFieldLength: false,
		},
		Decoder: goframe.DecoderConfig{
			ByteOrder:           binary.BigEndian,
			LengthFieldOffset:   0,
			LengthFieldLength:   4,
			LengthAdjustment:    0,
			InitialBytesToStrip: 4,
		},
	}

	payload := []byte("a length-prefixed frame")
	encoded, err := lf.Encode(payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != 4+len(payload) {
		t.Fatalf("encoded length = %d, want %d", len(encoded), 4+len(payload))
	}

	frame, consumed, err := lf.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed = %d, want %d", consumed, len(encoded))
	}
	if !bytes.Equal(frame, payload) {
		t.Fatalf("decoded frame = %q, want %q", frame, payload)
	}
}

func TestLengthFieldDecodeWaitsForFullHeader(t *testing.T) {
	lf := LengthField{
		Decoder: goframe.DecoderConfig{
			ByteOrder:         binary.BigEndian,
			LengthFieldLength: 4,
		},
	}

	frame, consumed, err := lf.Decode([]byte{0, 0})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame != nil || consumed != 0 {
		t.Fatalf("Decode on a partial header = (%v, %d), want (nil, 0)", frame, consumed)
	}
}

func TestLengthFieldDecodeWaitsForFullBody(t *testing.T) {
	lf := LengthField{
		Decoder: goframe.DecoderConfig{
			ByteOrder:         binary.BigEndian,
			LengthFieldLength: 4,
		},
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, 10) // declares a 10-byte body
	partial := append(header, []byte("only3b")...)

	frame, consumed, err := lf.Decode(partial)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame != nil || consumed != 0 {
		t.Fatalf("Decode on a partial body = (%v, %d), want (nil, 0)", frame, consumed)
	}
}
