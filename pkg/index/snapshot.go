package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/victor-base/victordb"
)

// Snapshot layout : a fixed header followed by count records of
// (id u64, dims * f32), everything big endian. The file is written to a
// temporary name and renamed into place so a crash mid-export never clobbers
// the previous snapshot.
var snapshotMagic = [4]byte{'V', 'I', 'D', 'X'}

const snapshotVersion = 1

type snapshotHeader struct {
	Magic   [4]byte
	Version uint8
	Type    uint8
	Method  uint8
	_       uint8
	Dims    uint32
	Count   uint64
}

// Export writes a snapshot of all live records to path.
func Export(idx Index, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	hdr := snapshotHeader{
		Magic:   snapshotMagic,
		Version: snapshotVersion,
		Type:    uint8(idx.Type()),
		Method:  uint8(idx.Method()),
		Dims:    uint32(idx.Dims()),
		Count:   idx.Size(),
	}
	if err := binary.Write(w, binary.BigEndian, hdr); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot header: %w", err)
	}
	var writeErr error
	idx.Range(func(id uint64, vector []float32) bool {
		if writeErr = binary.Write(w, binary.BigEndian, id); writeErr != nil {
			return false
		}
		for _, v := range vector {
			if writeErr = binary.Write(w, binary.BigEndian, math.Float32bits(v)); writeErr != nil {
				return false
			}
		}
		return true
	})
	if writeErr != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot record: %w", writeErr)
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

// Import loads a snapshot written by Export. The index type, method and
// dimensionality come from the snapshot header; HNSW graphs are rebuilt by
// reinserting every record.
func Import(path string) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var hdr snapshotHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	if hdr.Magic != snapshotMagic || hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot %s: %w", path, victordb.ErrDataCorrupt)
	}
	idx, err := New(Type(hdr.Type), Method(hdr.Method), int(hdr.Dims))
	if err != nil {
		return nil, err
	}
	vector := make([]float32, hdr.Dims)
	for i := uint64(0); i < hdr.Count; i++ {
		var id uint64
		if err := binary.Read(r, binary.BigEndian, &id); err != nil {
			return nil, fmt.Errorf("snapshot record %d: %w", i, victordb.ErrDataCorrupt)
		}
		for j := range vector {
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("snapshot record %d: %w", i, victordb.ErrDataCorrupt)
			}
			vector[j] = math.Float32frombits(bits)
		}
		if err := idx.Insert(id, vector); err != nil {
			return nil, fmt.Errorf("snapshot record %d: %w", i, err)
		}
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("snapshot %s has trailing data: %w", path, victordb.ErrDataCorrupt)
	}
	return idx, nil
}
