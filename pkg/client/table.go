package client

import (
	"fmt"

	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/proto"
)

// TableClient speaks to a table server.
type TableClient struct {
	*Conn
}

// DialTable connects to a table server endpoint.
func DialTable(socket string) (*TableClient, error) {
	conn, err := Dial(socket)
	if err != nil {
		return nil, err
	}
	return &TableClient{Conn: conn}, nil
}

// Put stores value under key. Values may be empty.
func (c *TableClient) Put(key, value []byte) error {
	return c.expectResult(proto.OpPut, proto.OpPutResult, proto.Put{Key: key, Value: value})
}

// Get returns the value stored under key. The returned slice is the
// caller's to keep.
func (c *TableClient) Get(key []byte) ([]byte, error) {
	respOp, respPayload, err := c.roundTrip(proto.OpGet, proto.Get{Key: key})
	if err != nil {
		return nil, err
	}
	switch respOp {
	case proto.OpGetResult:
		var result proto.GetResult
		if err := proto.Unmarshal(respPayload, &result); err != nil {
			return nil, err
		}
		return append([]byte(nil), result.Value...), nil
	case proto.OpError:
		var result proto.OpResult
		if err := proto.Unmarshal(respPayload, &result); err != nil {
			return nil, err
		}
		return nil, &ResultError{Code: result.Code, Message: result.Message}
	default:
		return nil, fmt.Errorf("response %s to GET: %w", respOp, victordb.ErrUnexpectedOpcode)
	}
}

// Del removes key.
func (c *TableClient) Del(key []byte) error {
	return c.expectResult(proto.OpDel, proto.OpDelResult, proto.Del{Key: key})
}
