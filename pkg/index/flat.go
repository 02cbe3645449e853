package index

import (
	"fmt"
	"sort"

	"github.com/victor-base/victordb"
)

// flatIndex is the exact brute-force index. Every search scans all records,
// so recall is always perfect.
type flatIndex struct {
	dims    int
	method  Method
	vectors map[uint64][]float32
}

func newFlat(m Method, dims int) *flatIndex {
	return &flatIndex{
		dims:    dims,
		method:  m,
		vectors: make(map[uint64][]float32),
	}
}

func (f *flatIndex) Insert(id uint64, vector []float32) error {
	if err := checkDims(f.dims, vector); err != nil {
		return err
	}
	if _, ok := f.vectors[id]; ok {
		return fmt.Errorf("id %d: %w", id, victordb.ErrDuplicateEntry)
	}
	f.vectors[id] = append([]float32(nil), vector...)
	return nil
}

func (f *flatIndex) Delete(id uint64) error {
	if _, ok := f.vectors[id]; !ok {
		return fmt.Errorf("id %d: %w", id, victordb.ErrNotFound)
	}
	delete(f.vectors, id)
	return nil
}

func (f *flatIndex) Search(vector []float32, k int) ([]Match, error) {
	if err := checkDims(f.dims, vector); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, fmt.Errorf("k %d: %w", k, victordb.ErrIllegalArgument)
	}
	matches := make([]Match, 0, len(f.vectors))
	for id, stored := range f.vectors {
		matches = append(matches, Match{Id: id, Distance: distance(f.method, vector, stored)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Id < matches[j].Id
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (f *flatIndex) Size() uint64 {
	return uint64(len(f.vectors))
}

func (f *flatIndex) Dims() int {
	return f.dims
}

func (f *flatIndex) Type() Type {
	return TypeFlat
}

func (f *flatIndex) Method() Method {
	return f.method
}

func (f *flatIndex) Range(fn func(id uint64, vector []float32) bool) {
	for id, vector := range f.vectors {
		if !fn(id, vector) {
			return
		}
	}
}
