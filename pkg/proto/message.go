package proto

import (
	"github.com/victor-base/victordb"
)

// Every payload is a CBOR definite-length array with fixed arity and element
// types per opcode. The structs below rely on the codec's toarray convention
// so that each struct serializes as exactly the documented array shape.

// Insert is the INSERT payload : [id, vector].
type Insert struct {
	_      struct{} `cbor:",toarray"`
	Id     uint64
	Vector []float32
}

// Delete is the DELETE payload : [id].
type Delete struct {
	_  struct{} `cbor:",toarray"`
	Id uint64
}

// Search is the SEARCH payload : [vector, k].
type Search struct {
	_      struct{} `cbor:",toarray"`
	Vector []float32
	K      uint32
}

// Match is one element of a MATCH_RESULT payload : [id, distance].
type Match struct {
	_        struct{} `cbor:",toarray"`
	Id       uint64
	Distance float32
}

// OpResult is the generic result payload : [code, message]. Code 0 means
// success; any non-zero code carries the failure class and a human readable
// description, possibly empty.
type OpResult struct {
	_       struct{} `cbor:",toarray"`
	Code    victordb.ResultCode
	Message string
}

// Put is the PUT payload : [key, value]. Values may be empty.
type Put struct {
	_     struct{} `cbor:",toarray"`
	Key   []byte
	Value []byte
}

// Get is the GET payload : [key].
type Get struct {
	_   struct{} `cbor:",toarray"`
	Key []byte
}

// GetResult is the GET_RESULT payload : [value].
type GetResult struct {
	_     struct{} `cbor:",toarray"`
	Value []byte
}

// Del is the DEL payload : [key].
type Del struct {
	_   struct{} `cbor:",toarray"`
	Key []byte
}

// MarshalResult serializes an OpResult payload for the given code.
func MarshalResult(code victordb.ResultCode, message string) ([]byte, error) {
	return Marshal(OpResult{Code: code, Message: message})
}

// MarshalMatches serializes a MATCH_RESULT payload, preserving order.
func MarshalMatches(matches []Match) ([]byte, error) {
	if matches == nil {
		matches = []Match{}
	}
	return Marshal(matches)
}
