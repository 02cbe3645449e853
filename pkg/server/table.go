package server

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/proto"
	"github.com/victor-base/victordb/pkg/table"
)

// TableMachine is the key-value server state machine : PUT, GET and DEL
// against the table collaborator.
type TableMachine struct {
	tbl          *table.Table
	snapshotPath string
	logger       *logrus.Entry
}

func NewTableMachine(tbl *table.Table, snapshotPath string, logger *logrus.Entry) *TableMachine {
	return &TableMachine{tbl: tbl, snapshotPath: snapshotPath, logger: logger}
}

func (m *TableMachine) Name() string {
	return "table"
}

func (m *TableMachine) WALOpcodes() map[proto.Opcode]bool {
	return map[proto.Opcode]bool{proto.OpPut: true, proto.OpDel: true}
}

func (m *TableMachine) Handle(op proto.Opcode, payload []byte) (Response, Mutation) {
	switch op {
	case proto.OpPut:
		return m.handlePut(payload)
	case proto.OpGet:
		return m.handleGet(payload)
	case proto.OpDel:
		return m.handleDel(payload)
	default:
		m.logger.WithField("opcode", op.String()).Warn("unexpected opcode on table server")
		return protocolError(victordb.ErrUnexpectedOpcode.Error()), MutationNone
	}
}

func (m *TableMachine) handlePut(payload []byte) (Response, Mutation) {
	var msg proto.Put
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return protocolError(err.Error()), MutationNone
	}
	if err := m.tbl.Put(msg.Key, msg.Value); err != nil {
		m.logger.WithError(err).Error("put failed")
		return resultResponse(proto.OpPutResult, victordb.CodeSystem, err.Error()), MutationNone
	}
	return resultResponse(proto.OpPutResult, victordb.CodeSuccess, ""), MutationAdd
}

func (m *TableMachine) handleGet(payload []byte) (Response, Mutation) {
	var msg proto.Get
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return protocolError(err.Error()), MutationNone
	}
	value, err := m.tbl.Get(msg.Key)
	if err != nil {
		code := victordb.CodeOf(err)
		if code == victordb.CodeSystem {
			m.logger.WithError(err).Error("get failed")
		}
		return resultResponse(proto.OpError, code, err.Error()), MutationNone
	}
	respPayload, err := proto.Marshal(proto.GetResult{Value: value})
	if err != nil {
		m.logger.WithError(err).Error("encoding get result")
		return resultResponse(proto.OpError, victordb.CodeSystem, err.Error()), MutationNone
	}
	return Response{Op: proto.OpGetResult, Payload: respPayload}, MutationNone
}

func (m *TableMachine) handleDel(payload []byte) (Response, Mutation) {
	var msg proto.Del
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return protocolError(err.Error()), MutationNone
	}
	if err := m.tbl.Delete(msg.Key); err != nil {
		code := victordb.CodeOf(err)
		if code == victordb.CodeSystem {
			m.logger.WithError(err).Error("del failed")
		}
		// A miss answers on the DEL_RESULT opcode and is never logged.
		return resultResponse(proto.OpDelResult, code, err.Error()), MutationNone
	}
	return resultResponse(proto.OpDelResult, victordb.CodeSuccess, ""), MutationDel
}

func (m *TableMachine) Replay(op proto.Opcode, payload []byte) error {
	switch op {
	case proto.OpPut:
		var msg proto.Put
		if err := proto.Unmarshal(payload, &msg); err != nil {
			return err
		}
		return m.tbl.Put(msg.Key, msg.Value)
	case proto.OpDel:
		var msg proto.Del
		if err := proto.Unmarshal(payload, &msg); err != nil {
			return err
		}
		return m.tbl.Delete(msg.Key)
	default:
		return fmt.Errorf("%s: %w", op, victordb.ErrUnexpectedOpcode)
	}
}

func (m *TableMachine) Checkpoint() error {
	return m.tbl.Dump(m.snapshotPath)
}

func (m *TableMachine) Close() error {
	return m.tbl.Close()
}
