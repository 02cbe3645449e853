// Package client provides typed Go clients for the victordb servers over
// their unix stream endpoints. A client owns one connection and is not safe
// for concurrent use; requests on one connection are strictly sequential,
// matching the server's per-connection FIFO contract.
package client

import (
	"fmt"
	"net"

	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/proto"
)

// ResultError is a non-zero result code returned by a server.
type ResultError struct {
	Code    victordb.ResultCode
	Message string
}

func (e *ResultError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server: %s", e.Code)
	}
	return fmt.Sprintf("server: %s: %s", e.Code, e.Message)
}

// Unwrap maps wire codes back to the shared sentinel errors so callers can
// match with errors.Is.
func (e *ResultError) Unwrap() error {
	switch e.Code {
	case victordb.CodeDuplicate:
		return victordb.ErrDuplicateEntry
	case victordb.CodeNotFound:
		return victordb.ErrNotFound
	case victordb.CodeInvalidDimensions:
		return victordb.ErrInvalidDimensions
	case victordb.CodeProtocol:
		return victordb.ErrMalformedMessage
	default:
		return nil
	}
}

// Conn is one client connection to a server endpoint.
type Conn struct {
	conn net.Conn
	buf  *proto.Buffer
}

// Dial connects to the unix stream endpoint at socket.
func Dial(socket string) (*Conn, error) {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socket, err)
	}
	return &Conn{conn: conn, buf: proto.NewBuffer()}, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// roundTrip sends one request frame and reads one response frame. The
// returned payload is only valid until the next round trip.
func (c *Conn) roundTrip(op proto.Opcode, msg any) (proto.Opcode, []byte, error) {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return 0, nil, err
	}
	if err := proto.WriteFrame(c.conn, op, payload); err != nil {
		return 0, nil, fmt.Errorf("send %s: %w", op, err)
	}
	respOp, respPayload, err := proto.ReadFrame(c.conn, c.buf)
	if err != nil {
		return 0, nil, fmt.Errorf("receive response to %s: %w", op, err)
	}
	return respOp, respPayload, nil
}

// expectResult finishes a round trip whose response is OP_RESULT shaped.
func (c *Conn) expectResult(op, want proto.Opcode, msg any) error {
	respOp, respPayload, err := c.roundTrip(op, msg)
	if err != nil {
		return err
	}
	if respOp != want && respOp != proto.OpError {
		return fmt.Errorf("response %s to %s: %w", respOp, op, victordb.ErrUnexpectedOpcode)
	}
	var result proto.OpResult
	if err := proto.Unmarshal(respPayload, &result); err != nil {
		return err
	}
	if result.Code != victordb.CodeSuccess {
		return &ResultError{Code: result.Code, Message: result.Message}
	}
	return nil
}
