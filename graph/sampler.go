package graph

import "math/rand"

// A NeighborSampler builds the message-flow blocks of a mini-batch by
// sampling a bounded number of in-neighbors for every destination node,
// layer by layer.
type NeighborSampler struct {
	fanouts []int
	rng     *rand.Rand
}

// NewNeighborSampler creates a sampler that samples up to fanouts[i]
// in-neighbors for layer i.
func NewNeighborSampler(fanouts []int, seed int64) *NeighborSampler {
	if len(fanouts) == 0 {
		panic("at least one fanout must be given")
	}

	return &NeighborSampler{
		fanouts: append([]int{}, fanouts...),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// NumLayers returns the number of blocks the sampler produces per batch.
func (s *NeighborSampler) NumLayers() int {
	return len(s.fanouts)
}

// Sample builds one block per fanout entry. The returned slice is ordered
// from the input layer to the output layer, so blocks[0] consumes the raw
// node features and the destination nodes of the last block are the seeds.
func (s *NeighborSampler) Sample(g *Graph, seeds []int) []*Block {
	blocks := make([]*Block, len(s.fanouts))

	dst := seeds
	for l := len(s.fanouts) - 1; l >= 0; l-- {
		b := buildBlock(g, dst, s.fanouts[l], s.rng)
		blocks[l] = b
		dst = b.SrcNodes
	}

	return blocks
}

// A FullNeighborSampler builds a single-layer block that keeps every
// in-neighbor. Layer-wise inference propagates one layer at a time over
// blocks built this way.
type FullNeighborSampler struct {
}

// NewFullNeighborSampler creates a full-neighborhood sampler.
func NewFullNeighborSampler() *FullNeighborSampler {
	return &FullNeighborSampler{}
}

// SampleLayer builds one block that includes all the incoming edges of the
// given destination nodes.
func (s *FullNeighborSampler) SampleLayer(g *Graph, dst []int) *Block {
	return buildBlock(g, dst, -1, nil)
}

// buildBlock collects up to fanout in-neighbors of every destination node.
// A negative fanout keeps all the neighbors.
func buildBlock(g *Graph, dst []int, fanout int, rng *rand.Rand) *Block {
	b := &Block{
		DstNodes: append([]int{}, dst...),
		SrcNodes: append([]int{}, dst...),
	}

	srcLocal := make(map[int]int, len(dst))
	for i, v := range dst {
		srcLocal[v] = i
	}

	addSrc := func(u int) int {
		if local, ok := srcLocal[u]; ok {
			return local
		}
		local := len(b.SrcNodes)
		srcLocal[u] = local
		b.SrcNodes = append(b.SrcNodes, u)
		return local
	}

	for j, v := range dst {
		neighbors := g.InNeighbors(v)

		if fanout >= 0 && len(neighbors) > fanout {
			sampled := append([]int{}, neighbors...)
			for i := 0; i < fanout; i++ {
				k := i + rng.Intn(len(sampled)-i)
				sampled[i], sampled[k] = sampled[k], sampled[i]
			}
			neighbors = sampled[:fanout]
		}

		for _, u := range neighbors {
			b.EdgeSrc = append(b.EdgeSrc, addSrc(u))
			b.EdgeDst = append(b.EdgeDst, j)
		}
	}

	return b
}
