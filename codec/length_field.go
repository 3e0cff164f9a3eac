package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/smallnest/goframe"
)

// LengthField is a length-prefixed frame codec built on goframe's
// EncoderConfig/DecoderConfig structs — the same configuration types
// the upstream gnet tree's length_field_based_frame_codec.go uses, with
// the encode/decode arithmetic reimplemented here over a plain byte
// slice instead of gnet's Conn, since this package has no dependency
// on the core Connection type. A user's on-message callback calls this
// directly; it is never auto-invoked.
type LengthField struct {
	Encoder goframe.EncoderConfig
	Decoder goframe.DecoderConfig
}

func (lf LengthField) Encode(data []byte) ([]byte, error) {
	fieldLength := lf.Encoder.LengthFieldLength
	length := len(data) + lf.Encoder.LengthAdjustment
	if lf.Encoder.LengthIncludesLengthFieldLength {
		length += fieldLength
	}

	lengthBuf := make([]byte, fieldLength)
	order := lf.Encoder.ByteOrder
	if order == nil {
		order = binary.BigEndian
	}

	switch fieldLength {
	case 1:
		if length >= 256 {
			return nil, errors.New("codec: length does not fit in one byte")
		}
		lengthBuf[0] = byte(length)
	case 2:
		order.PutUint16(lengthBuf, uint16(length))
	case 4:
		order.PutUint32(lengthBuf, uint32(length))
	case 8:
		order.PutUint64(lengthBuf, uint64(length))
	default:
		return nil, errors.Errorf("codec: unsupported length field length %d", fieldLength)
	}

	out := make([]byte, 0, len(lengthBuf)+len(data))
	out = append(out, lengthBuf...)
	out = append(out, data...)
	return out, nil
}

func (lf LengthField) Decode(data []byte) ([]byte, int, error) {
	d := lf.Decoder
	fieldLength := d.LengthFieldLength
	offset := d.LengthFieldOffset

	header := offset + fieldLength
	if len(data) < header {
		return nil, 0, nil // not enough bytes for the length field yet
	}

	order := d.ByteOrder
	if order == nil {
		order = binary.BigEndian
	}

	lenBuf := data[offset:header]
	var frameLength int
	switch fieldLength {
	case 1:
		frameLength = int(lenBuf[0])
	case 2:
		frameLength = int(order.Uint16(lenBuf))
	case 4:
		frameLength = int(order.Uint32(lenBuf))
	case 8:
		frameLength = int(order.Uint64(lenBuf))
	default:
		return nil, 0, errors.Errorf("codec: unsupported length field length %d", fieldLength)
	}
	frameLength += d.LengthAdjustment

	total := header + frameLength
	if len(data) < total {
		return nil, 0, nil // full frame hasn't arrived yet
	}

	frame := data[d.InitialBytesToStrip:total]
	return frame, total, nil
}
