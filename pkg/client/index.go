package client

import (
	"fmt"

	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/proto"
)

// IndexClient speaks to an index server.
type IndexClient struct {
	*Conn
}

// DialIndex connects to an index server endpoint.
func DialIndex(socket string) (*IndexClient, error) {
	conn, err := Dial(socket)
	if err != nil {
		return nil, err
	}
	return &IndexClient{Conn: conn}, nil
}

// Insert adds a vector under id.
func (c *IndexClient) Insert(id uint64, vector []float32) error {
	return c.expectResult(proto.OpInsert, proto.OpInsertResult, proto.Insert{Id: id, Vector: vector})
}

// Delete removes the vector stored under id.
func (c *IndexClient) Delete(id uint64) error {
	return c.expectResult(proto.OpDelete, proto.OpDeleteResult, proto.Delete{Id: id})
}

// Search returns up to k matches ordered by ascending distance.
func (c *IndexClient) Search(vector []float32, k uint32) ([]proto.Match, error) {
	respOp, respPayload, err := c.roundTrip(proto.OpSearch, proto.Search{Vector: vector, K: k})
	if err != nil {
		return nil, err
	}
	switch respOp {
	case proto.OpMatchResult:
		var matches []proto.Match
		if err := proto.Unmarshal(respPayload, &matches); err != nil {
			return nil, err
		}
		return matches, nil
	case proto.OpError:
		var result proto.OpResult
		if err := proto.Unmarshal(respPayload, &result); err != nil {
			return nil, err
		}
		return nil, &ResultError{Code: result.Code, Message: result.Message}
	default:
		return nil, fmt.Errorf("response %s to SEARCH: %w", respOp, victordb.ErrUnexpectedOpcode)
	}
}
