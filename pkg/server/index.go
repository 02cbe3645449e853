package server

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/index"
	"github.com/victor-base/victordb/pkg/proto"
)

// IndexMachine is the vector index server state machine : INSERT, SEARCH and
// DELETE against the index collaborator.
type IndexMachine struct {
	idx          index.Index
	snapshotPath string
	logger       *logrus.Entry
}

func NewIndexMachine(idx index.Index, snapshotPath string, logger *logrus.Entry) *IndexMachine {
	return &IndexMachine{idx: idx, snapshotPath: snapshotPath, logger: logger}
}

func (m *IndexMachine) Name() string {
	return "index"
}

func (m *IndexMachine) WALOpcodes() map[proto.Opcode]bool {
	return map[proto.Opcode]bool{proto.OpInsert: true, proto.OpDelete: true}
}

func (m *IndexMachine) Handle(op proto.Opcode, payload []byte) (Response, Mutation) {
	switch op {
	case proto.OpInsert:
		return m.handleInsert(payload)
	case proto.OpSearch:
		return m.handleSearch(payload)
	case proto.OpDelete:
		return m.handleDelete(payload)
	default:
		m.logger.WithField("opcode", op.String()).Warn("unexpected opcode on index server")
		return protocolError(victordb.ErrUnexpectedOpcode.Error()), MutationNone
	}
}

func (m *IndexMachine) handleInsert(payload []byte) (Response, Mutation) {
	var msg proto.Insert
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return protocolError(err.Error()), MutationNone
	}
	if err := m.idx.Insert(msg.Id, msg.Vector); err != nil {
		code := victordb.CodeOf(err)
		if code == victordb.CodeSystem {
			m.logger.WithError(err).Error("insert failed")
		}
		return resultResponse(proto.OpError, code, err.Error()), MutationNone
	}
	return resultResponse(proto.OpInsertResult, victordb.CodeSuccess, ""), MutationAdd
}

func (m *IndexMachine) handleDelete(payload []byte) (Response, Mutation) {
	var msg proto.Delete
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return protocolError(err.Error()), MutationNone
	}
	if err := m.idx.Delete(msg.Id); err != nil {
		code := victordb.CodeOf(err)
		if code == victordb.CodeSystem {
			m.logger.WithError(err).Error("delete failed")
		}
		return resultResponse(proto.OpError, code, err.Error()), MutationNone
	}
	return resultResponse(proto.OpDeleteResult, victordb.CodeSuccess, ""), MutationDel
}

func (m *IndexMachine) handleSearch(payload []byte) (Response, Mutation) {
	var msg proto.Search
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return protocolError(err.Error()), MutationNone
	}
	if msg.K < 1 {
		resp := resultResponse(proto.OpError, victordb.CodeProtocol, "k must be positive")
		return resp, MutationNone
	}
	k := int(msg.K)
	if k > index.MaxK {
		k = index.MaxK
	}
	matches, err := m.idx.Search(msg.Vector, k)
	if err != nil {
		code := victordb.CodeOf(err)
		if code == victordb.CodeSystem {
			m.logger.WithError(err).Error("search failed")
		}
		return resultResponse(proto.OpError, code, err.Error()), MutationNone
	}
	results := make([]proto.Match, len(matches))
	for i, match := range matches {
		results[i] = proto.Match{Id: match.Id, Distance: match.Distance}
	}
	respPayload, err := proto.MarshalMatches(results)
	if err != nil {
		m.logger.WithError(err).Error("encoding match result")
		return resultResponse(proto.OpError, victordb.CodeSystem, err.Error()), MutationNone
	}
	return Response{Op: proto.OpMatchResult, Payload: respPayload}, MutationNone
}

func (m *IndexMachine) Replay(op proto.Opcode, payload []byte) error {
	switch op {
	case proto.OpInsert:
		var msg proto.Insert
		if err := proto.Unmarshal(payload, &msg); err != nil {
			return err
		}
		return m.idx.Insert(msg.Id, msg.Vector)
	case proto.OpDelete:
		var msg proto.Delete
		if err := proto.Unmarshal(payload, &msg); err != nil {
			return err
		}
		return m.idx.Delete(msg.Id)
	default:
		return fmt.Errorf("%s: %w", op, victordb.ErrUnexpectedOpcode)
	}
}

func (m *IndexMachine) Checkpoint() error {
	return index.Export(m.idx, m.snapshotPath)
}

func (m *IndexMachine) Close() error {
	return nil
}
