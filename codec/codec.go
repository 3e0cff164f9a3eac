// Package codec supplies optional framing helpers that a user's own
// on-message callback may call into to delimit messages out of the raw
// bytes the core hands it. None of this is wired into the core
// read/write path: the server stays payload-agnostic at the library
// level. This package restores the framing convenience the original
// implementation and the upstream gnet tree ship as an ICodec
// abstraction, without changing that contract.
package codec

// Codec encodes outbound application messages and decodes at most one
// complete frame from the front of a raw byte slice, plus the number of
// bytes consumed. Callers run Decode in a loop until it reports 0
// consumed.
type Codec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) (frame []byte, consumed int, err error)
}

// Passthrough is the default, identity codec: Encode/Decode are no-ops
// over the raw bytes, matching the library-level "no wire protocol"
// contract.
type Passthrough struct{}

func (Passthrough) Encode(data []byte) ([]byte, error) { return data, nil }

func (Passthrough) Decode(data []byte) ([]byte, int, error) {
	return data, len(data), nil
}
