// Package wal implements the write-ahead log shared by both servers. The log
// is a raw concatenation of applied request frames, byte-identical to what
// was received on the wire : no envelope, no checksum, no sequence numbers.
// The opcode of each frame determines how it is replayed.
package wal

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/proto"
)

// Writer appends applied mutation frames to the log file. The file is opened
// lazily on the first append after creation or reset, so a database that was
// just checkpointed carries no log file at all.
type Writer struct {
	path    string
	file    *os.File
	scratch []byte
	sync    bool
	logger  *logrus.Entry
}

// NewWriter returns a Writer for the log at path. When syncOnAppend is set
// every append is followed by an fsync; otherwise appends only reach the OS
// page cache.
func NewWriter(path string, syncOnAppend bool, logger *logrus.Entry) *Writer {
	return &Writer{path: path, sync: syncOnAppend, logger: logger}
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one complete frame (header plus payload) to the log in
// append mode and flushes it to the OS.
func (w *Writer) Append(op proto.Opcode, payload []byte) error {
	if w.file == nil {
		f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open wal: %w", err)
		}
		w.file = f
	}
	frame, err := proto.AppendFrame(w.scratch[:0], op, payload)
	if err != nil {
		return err
	}
	w.scratch = frame[:0]
	if _, err := w.file.Write(frame); err != nil {
		return fmt.Errorf("append wal frame: %w", err)
	}
	if w.sync {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("sync wal: %w", err)
		}
	}
	return nil
}

// Reset removes the log after a successful checkpoint. The next append
// recreates the file.
func (w *Writer) Reset() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			w.logger.WithError(err).Warn("closing wal before reset")
		}
		w.file = nil
	}
	err := os.Remove(w.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove wal: %w", err)
	}
	return nil
}

// Close closes the underlying file, if open.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// ReplayFunc applies one logged frame. Payload aliases the replay buffer and
// is only valid for the duration of the call.
type ReplayFunc func(op proto.Opcode, payload []byte) error

// Replay reads the log at path frame by frame and hands each frame whose
// opcode is in accepted to apply. Frames with any other opcode are skipped
// with a warning; they are not fatal. A missing log file means there is
// nothing to replay. A short or malformed frame terminates replay with an
// error. Returns the number of frames applied.
func Replay(path string, accepted map[proto.Opcode]bool, apply ReplayFunc, logger *logrus.Entry) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open wal: %w", err)
	}
	defer f.Close()

	buf := proto.NewBuffer()
	applied := 0
	for {
		op, payload, err := proto.ReadFrame(f, buf)
		if errors.Is(err, io.EOF) {
			return applied, nil
		}
		if err != nil {
			return applied, fmt.Errorf("wal frame %d: %w", applied, err)
		}
		if !accepted[op] {
			logger.WithField("opcode", op.String()).Warn("skipping foreign wal entry")
			continue
		}
		if err := apply(op, payload); err != nil {
			// A mutation that applied cleanly when it was logged may still
			// fail benignly on replay against a fresher snapshot.
			if victordb.IsError(err, victordb.ErrDuplicateEntry) || victordb.IsError(err, victordb.ErrNotFound) {
				logger.WithError(err).WithField("opcode", op.String()).Warn("wal entry already reflected in snapshot")
				continue
			}
			return applied, fmt.Errorf("replay %s: %w", op, err)
		}
		applied++
	}
}
