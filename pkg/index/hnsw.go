package index

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/victor-base/victordb"
)

// Hierarchical navigable small world graph. Deletes are tombstones : the
// node stays in the graph for routing but is excluded from results and from
// snapshots. The graph is rebuilt from the record section on import.
const (
	hnswM              = 16
	hnswMmax0          = 32
	hnswEfConstruction = 200
	hnswEfSearch       = 64
)

type hnswNode struct {
	id        uint64
	vector    []float32
	neighbors [][]int32
	deleted   bool
}

func (n *hnswNode) level() int {
	return len(n.neighbors) - 1
}

type hnswIndex struct {
	dims      int
	method    Method
	nodes     []*hnswNode
	byID      map[uint64]int32
	entry     int32
	maxLevel  int
	live      uint64
	levelMult float64
	rng       *rand.Rand
}

func newHNSW(m Method, dims int) *hnswIndex {
	return &hnswIndex{
		dims:      dims,
		method:    m,
		byID:      make(map[uint64]int32),
		entry:     -1,
		levelMult: 1 / math.Log(hnswM),
		// Fixed seed : level assignment only needs to be well distributed,
		// and a deterministic graph makes snapshots reproducible.
		rng: rand.New(rand.NewSource(0x5eba11)),
	}
}

func (h *hnswIndex) randomLevel() int {
	return int(-math.Log(h.rng.Float64()) * h.levelMult)
}

func (h *hnswIndex) dist(a []float32, node int32) float32 {
	return distance(h.method, a, h.nodes[node].vector)
}

func (h *hnswIndex) Insert(id uint64, vector []float32) error {
	if err := checkDims(h.dims, vector); err != nil {
		return err
	}
	if _, ok := h.byID[id]; ok {
		return fmt.Errorf("id %d: %w", id, victordb.ErrDuplicateEntry)
	}
	level := h.randomLevel()
	node := &hnswNode{
		id:        id,
		vector:    append([]float32(nil), vector...),
		neighbors: make([][]int32, level+1),
	}
	idx := int32(len(h.nodes))
	h.nodes = append(h.nodes, node)
	h.byID[id] = idx
	h.live++

	if h.entry < 0 {
		h.entry = idx
		h.maxLevel = level
		return nil
	}

	ep := h.entry
	for lc := h.maxLevel; lc > level; lc-- {
		ep = h.greedyClosest(vector, ep, lc)
	}
	top := level
	if top > h.maxLevel {
		top = h.maxLevel
	}
	for lc := top; lc >= 0; lc-- {
		candidates := h.searchLayer(vector, []int32{ep}, hnswEfConstruction, lc)
		neighbors := h.selectClosest(candidates, hnswM)
		node.neighbors[lc] = neighbors
		maxConn := hnswM
		if lc == 0 {
			maxConn = hnswMmax0
		}
		for _, nb := range neighbors {
			h.nodes[nb].neighbors[lc] = append(h.nodes[nb].neighbors[lc], idx)
			if len(h.nodes[nb].neighbors[lc]) > maxConn {
				h.pruneNeighbors(nb, lc, maxConn)
			}
		}
		if len(candidates) > 0 {
			ep = candidates[0].node
		}
	}
	if level > h.maxLevel {
		h.entry = idx
		h.maxLevel = level
	}
	return nil
}

// greedyClosest walks the given layer toward the query until no neighbor is
// closer than the current position.
func (h *hnswIndex) greedyClosest(vector []float32, ep int32, level int) int32 {
	cur := ep
	curDist := h.dist(vector, cur)
	for changed := true; changed; {
		changed = false
		for _, nb := range h.neighborsAt(cur, level) {
			if d := h.dist(vector, nb); d < curDist {
				cur, curDist = nb, d
				changed = true
			}
		}
	}
	return cur
}

func (h *hnswIndex) neighborsAt(node int32, level int) []int32 {
	n := h.nodes[node]
	if level > n.level() {
		return nil
	}
	return n.neighbors[level]
}

type hnswCandidate struct {
	node int32
	dist float32
}

// candidateHeap orders candidates by distance, ascending when min is set.
type candidateHeap struct {
	items []hnswCandidate
	min   bool
}

func (c *candidateHeap) Len() int { return len(c.items) }
func (c *candidateHeap) Less(i, j int) bool {
	if c.min {
		return c.items[i].dist < c.items[j].dist
	}
	return c.items[i].dist > c.items[j].dist
}
func (c *candidateHeap) Swap(i, j int) { c.items[i], c.items[j] = c.items[j], c.items[i] }
func (c *candidateHeap) Push(x any)    { c.items = append(c.items, x.(hnswCandidate)) }
func (c *candidateHeap) Pop() any {
	last := c.items[len(c.items)-1]
	c.items = c.items[:len(c.items)-1]
	return last
}

// searchLayer is the beam search over one layer. The returned candidates are
// sorted by ascending distance and may include tombstoned nodes; callers
// filter as needed.
func (h *hnswIndex) searchLayer(vector []float32, eps []int32, ef int, level int) []hnswCandidate {
	visited := make(map[int32]struct{}, ef*2)
	frontier := &candidateHeap{min: true}
	results := &candidateHeap{}
	for _, ep := range eps {
		if _, seen := visited[ep]; seen {
			continue
		}
		visited[ep] = struct{}{}
		c := hnswCandidate{node: ep, dist: h.dist(vector, ep)}
		heap.Push(frontier, c)
		heap.Push(results, c)
	}
	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(hnswCandidate)
		worst := results.items[0]
		if cur.dist > worst.dist && results.Len() >= ef {
			break
		}
		for _, nb := range h.neighborsAt(cur.node, level) {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}
			d := h.dist(vector, nb)
			if results.Len() < ef || d < results.items[0].dist {
				c := hnswCandidate{node: nb, dist: d}
				heap.Push(frontier, c)
				heap.Push(results, c)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}
	out := results.items
	sort.Slice(out, func(i, j int) bool { return out[i].dist < out[j].dist })
	return out
}

func (h *hnswIndex) selectClosest(candidates []hnswCandidate, m int) []int32 {
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	selected := make([]int32, len(candidates))
	for i, c := range candidates {
		selected[i] = c.node
	}
	return selected
}

func (h *hnswIndex) pruneNeighbors(node int32, level, maxConn int) {
	n := h.nodes[node]
	links := n.neighbors[level]
	sort.Slice(links, func(i, j int) bool {
		return h.dist(n.vector, links[i]) < h.dist(n.vector, links[j])
	})
	n.neighbors[level] = links[:maxConn]
}

func (h *hnswIndex) Delete(id uint64) error {
	idx, ok := h.byID[id]
	if !ok {
		return fmt.Errorf("id %d: %w", id, victordb.ErrNotFound)
	}
	h.nodes[idx].deleted = true
	delete(h.byID, id)
	h.live--
	return nil
}

func (h *hnswIndex) Search(vector []float32, k int) ([]Match, error) {
	if err := checkDims(h.dims, vector); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, fmt.Errorf("k %d: %w", k, victordb.ErrIllegalArgument)
	}
	if h.live == 0 {
		return []Match{}, nil
	}
	ef := hnswEfSearch
	if k > ef {
		ef = k
	}
	// Widen the beam so tombstones cannot crowd live records out.
	dead := len(h.nodes) - int(h.live)
	ep := h.entry
	for lc := h.maxLevel; lc > 0; lc-- {
		ep = h.greedyClosest(vector, ep, lc)
	}
	candidates := h.searchLayer(vector, []int32{ep}, ef+dead, 0)
	matches := make([]Match, 0, k)
	for _, c := range candidates {
		if h.nodes[c.node].deleted {
			continue
		}
		matches = append(matches, Match{Id: h.nodes[c.node].id, Distance: c.dist})
		if len(matches) == k {
			break
		}
	}
	return matches, nil
}

func (h *hnswIndex) Size() uint64 {
	return h.live
}

func (h *hnswIndex) Dims() int {
	return h.dims
}

func (h *hnswIndex) Type() Type {
	return TypeHNSW
}

func (h *hnswIndex) Method() Method {
	return h.method
}

func (h *hnswIndex) Range(fn func(id uint64, vector []float32) bool) {
	for _, node := range h.nodes {
		if node.deleted {
			continue
		}
		if !fn(node.id, node.vector) {
			return
		}
	}
}
