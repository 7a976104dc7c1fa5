// Package graph provides the graph structures that the node-classification
// benchmarks train on, together with the neighbor samplers that build the
// per-layer message-flow blocks.
package graph

// A Graph is a directed graph in compressed sparse row format. For each
// node, the graph records the source nodes of its incoming edges, which are
// the nodes that send messages to it during propagation.
type Graph struct {
	NumNodes int

	// Indptr has NumNodes+1 entries. The in-neighbors of node v are
	// Indices[Indptr[v]:Indptr[v+1]].
	Indptr  []int
	Indices []int
}

// NewGraphFromEdges builds a graph from an edge list. An edge (src, dst)
// means that src sends messages to dst.
func NewGraphFromEdges(numNodes int, src, dst []int) *Graph {
	if len(src) != len(dst) {
		panic("mismatch in edge list length")
	}

	degree := make([]int, numNodes)
	for _, d := range dst {
		degree[d]++
	}

	g := &Graph{
		NumNodes: numNodes,
		Indptr:   make([]int, numNodes+1),
		Indices:  make([]int, len(src)),
	}

	for v := 0; v < numNodes; v++ {
		g.Indptr[v+1] = g.Indptr[v] + degree[v]
	}

	next := append([]int{}, g.Indptr[:numNodes]...)
	for e := range src {
		g.Indices[next[dst[e]]] = src[e]
		next[dst[e]]++
	}

	return g
}

// InNeighbors returns the source nodes of the incoming edges of node v.
func (g *Graph) InNeighbors(v int) []int {
	return g.Indices[g.Indptr[v]:g.Indptr[v+1]]
}

// InDegree returns the number of incoming edges of node v.
func (g *Graph) InDegree(v int) int {
	return g.Indptr[v+1] - g.Indptr[v]
}

// NumEdges returns the total number of edges of the graph.
func (g *Graph) NumEdges() int {
	return len(g.Indices)
}

// ToBidirected returns a graph where every edge also exists in the reverse
// direction. Duplicated edges are removed.
func (g *Graph) ToBidirected() *Graph {
	type edge struct{ s, d int }
	seen := make(map[edge]bool, g.NumEdges()*2)

	src := make([]int, 0, g.NumEdges()*2)
	dst := make([]int, 0, g.NumEdges()*2)

	add := func(s, d int) {
		e := edge{s, d}
		if seen[e] {
			return
		}
		seen[e] = true
		src = append(src, s)
		dst = append(dst, d)
	}

	for v := 0; v < g.NumNodes; v++ {
		for _, u := range g.InNeighbors(v) {
			add(u, v)
			add(v, u)
		}
	}

	return NewGraphFromEdges(g.NumNodes, src, dst)
}

// AddSelfLoops returns a graph where every node has an edge to itself.
// Existing self loops are not duplicated.
func (g *Graph) AddSelfLoops() *Graph {
	src := make([]int, 0, g.NumEdges()+g.NumNodes)
	dst := make([]int, 0, g.NumEdges()+g.NumNodes)

	for v := 0; v < g.NumNodes; v++ {
		hasSelfLoop := false
		for _, u := range g.InNeighbors(v) {
			if u == v {
				hasSelfLoop = true
			}
			src = append(src, u)
			dst = append(dst, v)
		}
		if !hasSelfLoop {
			src = append(src, v)
			dst = append(dst, v)
		}
	}

	return NewGraphFromEdges(g.NumNodes, src, dst)
}

// A Block is the bipartite graph that one layer of a mini-batch computation
// propagates over. The destination nodes always appear as the first entries
// of the source nodes, so the output rows of one layer line up with the
// input rows of the next.
type Block struct {
	// SrcNodes holds the global IDs of the input nodes of the layer.
	SrcNodes []int

	// DstNodes holds the global IDs of the output nodes of the layer.
	// DstNodes is always a prefix of SrcNodes.
	DstNodes []int

	// EdgeSrc and EdgeDst hold, for each edge, the local index of its
	// source node in SrcNodes and of its destination node in DstNodes.
	EdgeSrc []int
	EdgeDst []int
}

// NumSrc returns the number of input nodes of the block.
func (b *Block) NumSrc() int {
	return len(b.SrcNodes)
}

// NumDst returns the number of output nodes of the block.
func (b *Block) NumDst() int {
	return len(b.DstNodes)
}

// NumEdges returns the number of edges of the block.
func (b *Block) NumEdges() int {
	return len(b.EdgeSrc)
}
