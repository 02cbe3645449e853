package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/victor-base/victordb/pkg/proto"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(logger)
}

func TestAppendReplayRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.twal")
	w := NewWriter(path, false, testLogger())

	putPayload, err := proto.Marshal(proto.Put{Key: []byte("k1"), Value: []byte("v1")})
	assert.Nil(t, err)
	delPayload, err := proto.Marshal(proto.Del{Key: []byte("k2")})
	assert.Nil(t, err)

	assert.Nil(t, w.Append(proto.OpPut, putPayload))
	assert.Nil(t, w.Append(proto.OpDel, delPayload))
	assert.Nil(t, w.Close())

	type entry struct {
		op      proto.Opcode
		payload []byte
	}
	var replayed []entry
	accepted := map[proto.Opcode]bool{proto.OpPut: true, proto.OpDel: true}
	applied, err := Replay(path, accepted, func(op proto.Opcode, payload []byte) error {
		cp := append([]byte(nil), payload...)
		replayed = append(replayed, entry{op, cp})
		return nil
	}, testLogger())
	assert.Nil(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, proto.OpPut, replayed[0].op)
	assert.Equal(t, putPayload, replayed[0].payload)
	assert.Equal(t, proto.OpDel, replayed[1].op)
	assert.Equal(t, delPayload, replayed[1].payload)
}

func TestLogIsRawFrames(t *testing.T) {
	// The log must be a bit-for-bit concatenation of the applied frames.
	path := filepath.Join(t.TempDir(), "db.iwal")
	w := NewWriter(path, false, testLogger())

	payload, err := proto.Marshal(proto.Insert{Id: 42, Vector: []float32{1, 0}})
	assert.Nil(t, err)
	assert.Nil(t, w.Append(proto.OpInsert, payload))
	assert.Nil(t, w.Close())

	want, err := proto.AppendFrame(nil, proto.OpInsert, payload)
	assert.Nil(t, err)
	got, err := os.ReadFile(path)
	assert.Nil(t, err)
	assert.Equal(t, want, got)
}

func TestReplaySkipsForeignOpcodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.iwal")
	w := NewWriter(path, false, testLogger())

	insertPayload, err := proto.Marshal(proto.Insert{Id: 1, Vector: []float32{1}})
	assert.Nil(t, err)
	putPayload, err := proto.Marshal(proto.Put{Key: []byte("k"), Value: []byte("v")})
	assert.Nil(t, err)
	assert.Nil(t, w.Append(proto.OpInsert, insertPayload))
	assert.Nil(t, w.Append(proto.OpPut, putPayload))
	assert.Nil(t, w.Close())

	accepted := map[proto.Opcode]bool{proto.OpInsert: true, proto.OpDelete: true}
	applied, err := Replay(path, accepted, func(op proto.Opcode, payload []byte) error {
		assert.Equal(t, proto.OpInsert, op)
		return nil
	}, testLogger())
	assert.Nil(t, err)
	assert.Equal(t, 1, applied)
}

func TestReplayTruncatedFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.twal")
	w := NewWriter(path, false, testLogger())
	payload, err := proto.Marshal(proto.Put{Key: []byte("key"), Value: []byte("value")})
	assert.Nil(t, err)
	assert.Nil(t, w.Append(proto.OpPut, payload))
	assert.Nil(t, w.Close())

	raw, err := os.ReadFile(path)
	assert.Nil(t, err)
	assert.Nil(t, os.WriteFile(path, raw[:len(raw)-3], 0o600))

	accepted := map[proto.Opcode]bool{proto.OpPut: true}
	applied, err := Replay(path, accepted, func(proto.Opcode, []byte) error { return nil }, testLogger())
	assert.NotNil(t, err)
	assert.Equal(t, 0, applied)
}

func TestReplayMissingFile(t *testing.T) {
	applied, err := Replay(filepath.Join(t.TempDir(), "absent.wal"), nil, nil, testLogger())
	assert.Nil(t, err)
	assert.Equal(t, 0, applied)
}

func TestResetRemovesLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.twal")
	w := NewWriter(path, false, testLogger())
	payload, err := proto.Marshal(proto.Put{Key: []byte("k"), Value: nil})
	assert.Nil(t, err)
	assert.Nil(t, w.Append(proto.OpPut, payload))

	assert.Nil(t, w.Reset())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// The log is recreated on the next append.
	assert.Nil(t, w.Append(proto.OpPut, payload))
	_, statErr = os.Stat(path)
	assert.Nil(t, statErr)
	assert.Nil(t, w.Close())

	t.Run("reset with no log is fine", func(t *testing.T) {
		w := NewWriter(filepath.Join(t.TempDir(), "none.wal"), false, testLogger())
		assert.Nil(t, w.Reset())
	})
}

func TestSyncOnAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.twal")
	w := NewWriter(path, true, testLogger())
	payload, err := proto.Marshal(proto.Put{Key: []byte("k"), Value: []byte("v")})
	assert.Nil(t, err)
	assert.Nil(t, w.Append(proto.OpPut, payload))
	assert.Nil(t, w.Close())
	info, err := os.Stat(path)
	assert.Nil(t, err)
	assert.Equal(t, int64(proto.HeaderLen+len(payload)), info.Size())
}
