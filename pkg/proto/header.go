package proto

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/victor-base/victordb"
)

// HeaderLen is the size of the frame header in bytes.
const HeaderLen = 4

const lenMask = 0x0FFFFFFF

// EncodeHeader packs an opcode and payload length into the 4-byte wire
// header, in network byte order.
func EncodeHeader(dst []byte, op Opcode, length int) error {
	if length < 0 || length > victordb.MaxMsgLen {
		return fmt.Errorf("frame length %d: %w", length, victordb.ErrMessageTooLong)
	}
	raw := uint32(op)<<28 | uint32(length)&lenMask
	binary.BigEndian.PutUint32(dst, raw)
	return nil
}

// DecodeHeader unpacks a 4-byte wire header into opcode and payload length.
func DecodeHeader(src []byte) (Opcode, int) {
	raw := binary.BigEndian.Uint32(src)
	return Opcode(raw >> 28), int(raw & lenMask)
}

// Buffer is a reusable payload buffer. It starts small and grows on demand,
// capped at the maximum frame length. A server owns exactly one Buffer and
// reuses it for every request, which is safe because dispatch is serial.
type Buffer struct {
	b []byte
}

const initialBufferSize = 64 << 10

func NewBuffer() *Buffer {
	return &Buffer{b: make([]byte, initialBufferSize)}
}

// grow returns a slice of exactly n bytes backed by the buffer.
func (buf *Buffer) grow(n int) ([]byte, error) {
	if n > victordb.MaxMsgLen {
		return nil, victordb.ErrMessageTooLong
	}
	if n > cap(buf.b) {
		buf.b = make([]byte, n)
	}
	return buf.b[:n], nil
}

// ReadFrame reads one complete frame from r. The returned payload slice
// aliases buf and is only valid until the next ReadFrame on the same buffer.
// io.EOF is returned unchanged when the stream ends cleanly at a frame
// boundary; a short frame yields io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, buf *Buffer) (Opcode, []byte, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	op, length := DecodeHeader(hdr[:])
	payload, err := buf.grow(length)
	if err != nil {
		return 0, nil, err
	}
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, err
	}
	return op, payload, nil
}

// ReadPayload reads the payload of a frame whose header was already consumed.
func ReadPayload(r io.Reader, buf *Buffer, length int) ([]byte, error) {
	payload, err := buf.grow(length)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes one complete frame to w in a single Write call.
func WriteFrame(w io.Writer, op Opcode, payload []byte) error {
	frame := make([]byte, HeaderLen+len(payload))
	if err := EncodeHeader(frame, op, len(payload)); err != nil {
		return err
	}
	copy(frame[HeaderLen:], payload)
	_, err := w.Write(frame)
	return err
}

// AppendFrame appends a complete frame to dst and returns the extended slice.
func AppendFrame(dst []byte, op Opcode, payload []byte) ([]byte, error) {
	var hdr [HeaderLen]byte
	if err := EncodeHeader(hdr[:], op, len(payload)); err != nil {
		return dst, err
	}
	dst = append(dst, hdr[:]...)
	return append(dst, payload...), nil
}
