package proto

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/victor-base/victordb"
)

func TestHeaderRoundTrip(t *testing.T) {
	lengths := []int{0, 1, 127, 128, 65535, 1 << 20, victordb.MaxMsgLen}
	for op := Opcode(0); op <= 0x0F; op++ {
		for _, length := range lengths {
			var hdr [HeaderLen]byte
			err := EncodeHeader(hdr[:], op, length)
			assert.Nil(t, err)
			gotOp, gotLen := DecodeHeader(hdr[:])
			assert.Equal(t, op, gotOp)
			assert.Equal(t, length, gotLen)
		}
	}
}

func TestHeaderEncodeRejectsOversize(t *testing.T) {
	var hdr [HeaderLen]byte
	err := EncodeHeader(hdr[:], OpInsert, victordb.MaxMsgLen+1)
	assert.ErrorIs(t, err, victordb.ErrMessageTooLong)
	err = EncodeHeader(hdr[:], OpInsert, -1)
	assert.ErrorIs(t, err, victordb.ErrMessageTooLong)
}

func TestHeaderByteOrder(t *testing.T) {
	// type 0x5, len 0x0ABCDE -> 0x500ABCDE big endian
	var hdr [HeaderLen]byte
	err := EncodeHeader(hdr[:], OpSearch, 0x0ABCDE)
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x50, 0x0A, 0xBC, 0xDE}, hdr[:])
}

func TestReadWriteFrame(t *testing.T) {
	payload := []byte{0x83, 0x01, 0x02, 0x03}
	var wire bytes.Buffer
	err := WriteFrame(&wire, OpPut, payload)
	assert.Nil(t, err)

	buf := NewBuffer()
	op, got, err := ReadFrame(&wire, buf)
	assert.Nil(t, err)
	assert.Equal(t, OpPut, op)
	assert.Equal(t, payload, got)

	t.Run("clean eof at frame boundary", func(t *testing.T) {
		_, _, err := ReadFrame(&wire, buf)
		assert.Equal(t, io.EOF, err)
	})
	t.Run("short header", func(t *testing.T) {
		_, _, err := ReadFrame(bytes.NewReader([]byte{0x10, 0x00}), buf)
		assert.Equal(t, io.ErrUnexpectedEOF, err)
	})
	t.Run("short payload", func(t *testing.T) {
		var wire bytes.Buffer
		assert.Nil(t, WriteFrame(&wire, OpGet, payload))
		truncated := wire.Bytes()[:HeaderLen+2]
		_, _, err := ReadFrame(bytes.NewReader(truncated), buf)
		assert.Equal(t, io.ErrUnexpectedEOF, err)
	})
	t.Run("empty payload", func(t *testing.T) {
		var wire bytes.Buffer
		assert.Nil(t, WriteFrame(&wire, OpDelete, nil))
		op, got, err := ReadFrame(&wire, buf)
		assert.Nil(t, err)
		assert.Equal(t, OpDelete, op)
		assert.Len(t, got, 0)
	})
}

func TestBufferReuse(t *testing.T) {
	buf := NewBuffer()
	var wire bytes.Buffer
	assert.Nil(t, WriteFrame(&wire, OpGet, []byte{1, 2, 3}))
	_, first, err := ReadFrame(&wire, buf)
	assert.Nil(t, err)
	assert.Equal(t, []byte{1, 2, 3}, first)

	// A second read overwrites the same backing array.
	assert.Nil(t, WriteFrame(&wire, OpGet, []byte{9, 9, 9}))
	_, second, err := ReadFrame(&wire, buf)
	assert.Nil(t, err)
	assert.Equal(t, []byte{9, 9, 9}, second)
	assert.Equal(t, []byte{9, 9, 9}, first[:3])
}

func TestAppendFrame(t *testing.T) {
	frame, err := AppendFrame(nil, OpDel, []byte{0xAA})
	assert.Nil(t, err)
	assert.Equal(t, []byte{0xC0, 0x00, 0x00, 0x01, 0xAA}, frame)
}
