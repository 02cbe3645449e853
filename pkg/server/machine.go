package server

import (
	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/proto"
)

// Mutation classifies the effect of an applied request on server state.
type Mutation uint8

const (
	MutationNone Mutation = iota
	MutationAdd
	MutationDel
)

// Response is what a state machine wants sent back on the requesting
// connection. Close marks the connection for teardown after the response is
// written (protocol violations).
type Response struct {
	Op      proto.Opcode
	Payload []byte
	Close   bool
}

// StateMachine is one server's request semantics against its collaborator.
// The surrounding Server owns framing, the connection table, the WAL and the
// checkpoint policy; the machine owns applying requests.
type StateMachine interface {
	// Name identifies the machine in logs.
	Name() string
	// WALOpcodes is the set of opcodes that are logged and replayed.
	WALOpcodes() map[proto.Opcode]bool
	// Handle applies one request and returns the response plus the mutation
	// class. A non-none mutation means the request was applied and its frame
	// must be appended to the WAL.
	Handle(op proto.Opcode, payload []byte) (Response, Mutation)
	// Replay applies one logged frame during recovery, without producing a
	// response.
	Replay(op proto.Opcode, payload []byte) error
	// Checkpoint writes the full committed state to the snapshot file.
	Checkpoint() error
	// Close releases the collaborator.
	Close() error
}

// resultResponse builds an OP_RESULT-shaped response. Result payloads are a
// few dozen bytes; a marshal failure here is a bug, not a runtime condition.
func resultResponse(op proto.Opcode, code victordb.ResultCode, message string) Response {
	payload, err := proto.MarshalResult(code, message)
	if err != nil {
		panic(err)
	}
	return Response{Op: op, Payload: payload}
}

// protocolError builds the ERROR response that precedes closing a
// connection on a framing or decoding violation.
func protocolError(message string) Response {
	resp := resultResponse(proto.OpError, victordb.CodeProtocol, message)
	resp.Close = true
	return resp
}
