package graph

import (
	"math"

	"github.com/gopakumarce/r2/internal/counters"
	"github.com/gopakumarce/r2/internal/names"
	"github.com/gopakumarce/r2/internal/packet"
)

const graphInitSz = 1024

type node[T any] struct {
	client    Client[T]
	name      string
	nextNames []string
	nextIDs   []int
}

// Graph is one thread's copy of the processing graph: an ordered node
// list, a bounded inbound queue per node, and a name->index map. Node 0 is
// always the drop node.
type Graph[T any] struct {
	thread   int
	nodes    []*node[T]
	vectors  []*pktQueue
	counters []GnodeCntrs
	indices  map[string]int
}

// New builds a graph with just the drop node registered.
func New[T any](thread int, cntrs *counters.Pool) *Graph[T] {
	g := &Graph[T]{
		thread:   thread,
		nodes:    make([]*node[T], 0, graphInitSz),
		vectors:  make([]*pktQueue, 0, graphInitSz),
		counters: make([]GnodeCntrs, 0, graphInitSz),
		indices:  make(map[string]int, graphInitSz),
	}
	g.Add(cntrs, newDropClient[T](cntrs), Init{Name: names.Drop})
	return g
}

// Clone builds another thread's copy: every client clones itself, fresh
// counters are allocated per thread, and the adjacency structure (not its
// queue contents) is copied.
func (g *Graph[T]) Clone(thread int, cntrs *counters.Pool) *Graph[T] {
	clone := &Graph[T]{
		thread:   thread,
		nodes:    make([]*node[T], 0, len(g.nodes)),
		vectors:  make([]*pktQueue, 0, len(g.nodes)),
		counters: make([]GnodeCntrs, 0, len(g.nodes)),
		indices:  make(map[string]int, len(g.indices)),
	}
	for name, idx := range g.indices {
		clone.indices[name] = idx
	}
	for _, n := range g.nodes {
		clone.nodes = append(clone.nodes, &node[T]{
			client:    n.client.Clone(cntrs),
			name:      n.name,
			nextNames: append([]string(nil), n.nextNames...),
			nextIDs:   append([]int(nil), n.nextIDs...),
		})
		clone.vectors = append(clone.vectors, newPktQueue(VecSize))
		clone.counters = append(clone.counters, newGnodeCntrs(n.name, cntrs))
	}
	return clone
}

// Add registers a new client under init.Name. No-op if the name is already
// taken (and not the drop node, which is always index 0).
func (g *Graph[T]) Add(cntrs *counters.Pool, client Client[T], init Init) {
	if len(g.nodes) > 0 && g.index(init.Name) != 0 {
		return
	}
	g.nodes = append(g.nodes, &node[T]{client: client, name: init.Name, nextNames: init.NextNames})
	g.vectors = append(g.vectors, newPktQueue(VecSize))
	g.counters = append(g.counters, newGnodeCntrs(init.Name, cntrs))
	idx := len(g.nodes) - 1
	g.indices[init.Name] = idx
}

func (g *Graph[T]) index(name string) int {
	if idx, ok := g.indices[name]; ok {
		return idx
	}
	return 0
}

// Finalize resolves every node's next_names to indices; unresolved names
// fall back to the drop node (index 0).
func (g *Graph[T]) Finalize() {
	for _, n := range g.nodes {
		n.nextIDs = make([]int, len(n.nextNames))
		for i, name := range n.nextNames {
			n.nextIDs[i] = g.index(name)
		}
	}
}

// NodeIndex looks up a node's resolved index by name, or 0 (drop) if
// unknown.
func (g *Graph[T]) NodeIndex(name string) int { return g.index(name) }

// Run executes one tick: every node is dispatched in ascending index
// order. Returns whether any node has pending work and the minimum
// requested wakeup, in nanoseconds.
func (g *Graph[T]) Run() (bool, uint64) {
	nsecs := uint64(math.MaxUint64)
	work := false

	for n, node := range g.nodes {
		d := &Dispatch[T]{
			node:     n,
			vectors:  g.vectors,
			counters: g.counters,
			nextIDs:  node.nextIDs,
			wakeup:   math.MaxUint64,
		}
		node.client.Dispatch(g.thread, d)
		if d.work {
			work = true
			if d.wakeup < nsecs {
				nsecs = d.wakeup
			}
		}
	}
	return work, nsecs
}

// ControlMsg delivers message to the named node, if it exists. Returns
// false if the name didn't resolve.
func (g *Graph[T]) ControlMsg(name string, message T) bool {
	idx := g.index(name)
	if idx == 0 {
		return false
	}
	g.nodes[idx].client.ControlMsg(g.thread, message)
	return true
}
