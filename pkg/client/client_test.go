package client

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/proto"
)

func TestResultError(t *testing.T) {
	err := &ResultError{Code: victordb.CodeNotFound, Message: "key \"x\""}
	assert.ErrorIs(t, err, victordb.ErrNotFound)
	assert.Contains(t, err.Error(), "not found")

	dup := &ResultError{Code: victordb.CodeDuplicate}
	assert.ErrorIs(t, dup, victordb.ErrDuplicateEntry)
	assert.Equal(t, "server: duplicate entry", dup.Error())

	system := &ResultError{Code: victordb.CodeSystem, Message: "disk full"}
	assert.Nil(t, system.Unwrap())
	assert.NotErrorIs(t, system, victordb.ErrNotFound)
}

// fakeServer answers each incoming frame with a canned response over an
// in-memory pipe.
func fakeServer(t *testing.T, respond func(op proto.Opcode, payload []byte) (proto.Opcode, any)) *Conn {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	go func() {
		buf := proto.NewBuffer()
		for {
			op, payload, err := proto.ReadFrame(serverSide, buf)
			if err != nil {
				return
			}
			respOp, msg := respond(op, payload)
			respPayload, err := proto.Marshal(msg)
			if err != nil {
				return
			}
			if err := proto.WriteFrame(serverSide, respOp, respPayload); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { serverSide.Close() })
	return &Conn{conn: clientSide, buf: proto.NewBuffer()}
}

func TestIndexClientRoundTrip(t *testing.T) {
	conn := fakeServer(t, func(op proto.Opcode, payload []byte) (proto.Opcode, any) {
		switch op {
		case proto.OpInsert:
			var msg proto.Insert
			require.Nil(t, proto.Unmarshal(payload, &msg))
			assert.Equal(t, uint64(9), msg.Id)
			return proto.OpInsertResult, proto.OpResult{Code: victordb.CodeSuccess}
		case proto.OpSearch:
			return proto.OpMatchResult, []proto.Match{{Id: 9, Distance: 0}}
		default:
			return proto.OpError, proto.OpResult{Code: victordb.CodeProtocol}
		}
	})
	c := &IndexClient{Conn: conn}
	defer c.Close()

	assert.Nil(t, c.Insert(9, []float32{1, 2}))

	matches, err := c.Search([]float32{1, 2}, 1)
	require.Nil(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint64(9), matches[0].Id)
}

func TestTableClientSurfacesCodes(t *testing.T) {
	conn := fakeServer(t, func(op proto.Opcode, payload []byte) (proto.Opcode, any) {
		switch op {
		case proto.OpGet:
			return proto.OpError, proto.OpResult{Code: victordb.CodeNotFound, Message: "key"}
		case proto.OpDel:
			return proto.OpDelResult, proto.OpResult{Code: victordb.CodeNotFound, Message: "key"}
		default:
			return proto.OpPutResult, proto.OpResult{Code: victordb.CodeSuccess}
		}
	})
	c := &TableClient{Conn: conn}
	defer c.Close()

	assert.Nil(t, c.Put([]byte("k"), []byte("v")))

	_, err := c.Get([]byte("k"))
	assert.ErrorIs(t, err, victordb.ErrNotFound)

	assert.ErrorIs(t, c.Del([]byte("k")), victordb.ErrNotFound)
}

func TestClientRejectsUnexpectedResponse(t *testing.T) {
	conn := fakeServer(t, func(proto.Opcode, []byte) (proto.Opcode, any) {
		return proto.OpMatchResult, []proto.Match{}
	})
	c := &TableClient{Conn: conn}
	defer c.Close()

	err := c.Put([]byte("k"), []byte("v"))
	assert.ErrorIs(t, err, victordb.ErrUnexpectedOpcode)
}
