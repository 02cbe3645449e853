// Package table implements the key-value collaborator of the table server :
// a LevelDB instance over in-memory storage, with snapshot dump and load.
// Durability comes from the server's write-ahead log and checkpoints, not
// from LevelDB itself.
package table

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/victor-base/victordb"
)

// Table is a binary-safe key-value store. Keys are unique, values may be
// empty. Not safe for concurrent use; the owning server dispatches serially.
type Table struct {
	name string
	db   *leveldb.DB
	size uint64
}

// New allocates an empty table.
func New(name string) (*Table, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open table storage: %w", err)
	}
	return &Table{name: name, db: db}, nil
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Put stores value under key, replacing any previous value.
func (t *Table) Put(key, value []byte) error {
	exists, err := t.db.Has(key, nil)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	if err := t.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	if !exists {
		t.size++
	}
	return nil
}

// Get returns the value stored under key. A missing key fails with
// ErrNotFound.
func (t *Table) Get(key []byte) ([]byte, error) {
	value, err := t.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("key %q: %w", key, victordb.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Delete removes key. A missing key fails with ErrNotFound; LevelDB treats
// that case as a no-op, so existence is checked first.
func (t *Table) Delete(key []byte) error {
	exists, err := t.db.Has(key, nil)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("key %q: %w", key, victordb.ErrNotFound)
	}
	if err := t.db.Delete(key, nil); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	t.size--
	return nil
}

// Size returns the number of stored records.
func (t *Table) Size() uint64 {
	return t.size
}

// Close releases the underlying storage.
func (t *Table) Close() error {
	return t.db.Close()
}

// Snapshot layout : a fixed header followed by count records of
// (klen u32, vlen u32, key, value), big endian, written to a temporary file
// and renamed into place.
var snapshotMagic = [4]byte{'V', 'T', 'B', 'L'}

const snapshotVersion = 1

type snapshotHeader struct {
	Magic   [4]byte
	Version uint8
	_       [3]uint8
	Count   uint64
}

// Dump writes a snapshot of all records to path.
func (t *Table) Dump(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".table-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	hdr := snapshotHeader{Magic: snapshotMagic, Version: snapshotVersion, Count: t.size}
	if err := binary.Write(w, binary.BigEndian, hdr); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot header: %w", err)
	}
	iter := t.db.NewIterator(nil, nil)
	for iter.Next() {
		key, value := iter.Key(), iter.Value()
		if err := binary.Write(w, binary.BigEndian, uint32(len(key))); err != nil {
			iter.Release()
			tmp.Close()
			return fmt.Errorf("write snapshot record: %w", err)
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(value))); err != nil {
			iter.Release()
			tmp.Close()
			return fmt.Errorf("write snapshot record: %w", err)
		}
		if _, err := w.Write(key); err != nil {
			iter.Release()
			tmp.Close()
			return fmt.Errorf("write snapshot record: %w", err)
		}
		if _, err := w.Write(value); err != nil {
			iter.Release()
			tmp.Close()
			return fmt.Errorf("write snapshot record: %w", err)
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("iterate table: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Dump into a fresh table.
func Load(name, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	t, err := New(name)
	if err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)
	var hdr snapshotHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		t.Close()
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	if hdr.Magic != snapshotMagic || hdr.Version != snapshotVersion {
		t.Close()
		return nil, fmt.Errorf("snapshot %s: %w", path, victordb.ErrDataCorrupt)
	}
	for i := uint64(0); i < hdr.Count; i++ {
		var klen, vlen uint32
		if err := binary.Read(r, binary.BigEndian, &klen); err != nil {
			t.Close()
			return nil, fmt.Errorf("snapshot record %d: %w", i, victordb.ErrDataCorrupt)
		}
		if err := binary.Read(r, binary.BigEndian, &vlen); err != nil {
			t.Close()
			return nil, fmt.Errorf("snapshot record %d: %w", i, victordb.ErrDataCorrupt)
		}
		if int(klen) > victordb.MaxMsgLen || int(vlen) > victordb.MaxMsgLen {
			t.Close()
			return nil, fmt.Errorf("snapshot record %d: %w", i, victordb.ErrDataCorrupt)
		}
		key := make([]byte, klen)
		if _, err := io.ReadFull(r, key); err != nil {
			t.Close()
			return nil, fmt.Errorf("snapshot record %d: %w", i, victordb.ErrDataCorrupt)
		}
		value := make([]byte, vlen)
		if _, err := io.ReadFull(r, value); err != nil {
			t.Close()
			return nil, fmt.Errorf("snapshot record %d: %w", i, victordb.ErrDataCorrupt)
		}
		if err := t.Put(key, value); err != nil {
			t.Close()
			return nil, err
		}
	}
	return t, nil
}
