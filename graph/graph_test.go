package graph

import (
	"sort"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestGraph(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Graph Suite")
}

var _ = Describe("Graph", func() {
	It("should build CSR from an edge list", func() {
		g := NewGraphFromEdges(4,
			[]int{0, 1, 2, 0},
			[]int{1, 2, 3, 3},
		)

		Expect(g.NumEdges()).To(Equal(4))
		Expect(g.InDegree(0)).To(Equal(0))
		Expect(g.InNeighbors(1)).To(Equal([]int{0}))
		Expect(g.InNeighbors(2)).To(Equal([]int{1}))

		in3 := append([]int{}, g.InNeighbors(3)...)
		sort.Ints(in3)
		Expect(in3).To(Equal([]int{0, 2}))
	})

	It("should make a graph bidirected", func() {
		g := NewGraphFromEdges(3, []int{0, 1}, []int{1, 2})

		b := g.ToBidirected()

		Expect(b.NumEdges()).To(Equal(4))
		Expect(b.InNeighbors(0)).To(Equal([]int{1}))

		in1 := append([]int{}, b.InNeighbors(1)...)
		sort.Ints(in1)
		Expect(in1).To(Equal([]int{0, 2}))
	})

	It("should not duplicate edges when making bidirected", func() {
		g := NewGraphFromEdges(2, []int{0, 1}, []int{1, 0})

		b := g.ToBidirected()

		Expect(b.NumEdges()).To(Equal(2))
	})

	It("should add self loops", func() {
		g := NewGraphFromEdges(3, []int{0, 1, 1}, []int{1, 2, 1})

		s := g.AddSelfLoops()

		Expect(s.NumEdges()).To(Equal(5))
		for v := 0; v < 3; v++ {
			found := false
			for _, u := range s.InNeighbors(v) {
				if u == v {
					found = true
				}
			}
			Expect(found).To(BeTrue())
		}
	})
})

var _ = Describe("Neighbor Sampler", func() {
	var g *Graph

	BeforeEach(func() {
		// A small graph where node 0 has many in-neighbors.
		src := []int{1, 2, 3, 4, 5, 0, 0}
		dst := []int{0, 0, 0, 0, 0, 1, 2}
		g = NewGraphFromEdges(6, src, dst)
	})

	It("should keep destination nodes as a prefix of source nodes", func() {
		s := NewNeighborSampler([]int{2, 2}, 1)

		blocks := s.Sample(g, []int{0, 1})

		Expect(blocks).To(HaveLen(2))
		for _, b := range blocks {
			Expect(b.SrcNodes[:b.NumDst()]).To(Equal(b.DstNodes))
		}
	})

	It("should chain blocks so layers line up", func() {
		s := NewNeighborSampler([]int{2, 2}, 42)

		blocks := s.Sample(g, []int{0})

		Expect(blocks[1].DstNodes).To(Equal([]int{0}))
		Expect(blocks[0].DstNodes).To(Equal(blocks[1].SrcNodes))
	})

	It("should respect the fanout bound", func() {
		s := NewNeighborSampler([]int{2}, 7)

		blocks := s.Sample(g, []int{0})

		b := blocks[0]
		count := 0
		for _, d := range b.EdgeDst {
			if d == 0 {
				count++
			}
		}
		Expect(count).To(Equal(2))
	})

	It("should reference valid local indices", func() {
		s := NewNeighborSampler([]int{3, 3}, 3)

		blocks := s.Sample(g, []int{0, 2})

		for _, b := range blocks {
			for e := 0; e < b.NumEdges(); e++ {
				Expect(b.EdgeSrc[e]).To(BeNumerically("<", b.NumSrc()))
				Expect(b.EdgeDst[e]).To(BeNumerically("<", b.NumDst()))

				src := b.SrcNodes[b.EdgeSrc[e]]
				dst := b.DstNodes[b.EdgeDst[e]]
				Expect(g.InNeighbors(dst)).To(ContainElement(src))
			}
		}
	})

	It("should keep all neighbors with the full sampler", func() {
		s := NewFullNeighborSampler()

		b := s.SampleLayer(g, []int{0})

		Expect(b.NumEdges()).To(Equal(5))
	})
})

var _ = Describe("Data Loader", func() {
	It("should iterate in batches", func() {
		l := NewDataLoader([]int{0, 1, 2, 3, 4}, 2, false, 1)

		Expect(l.NumBatches()).To(Equal(3))
		Expect(l.NextBatch()).To(Equal([]int{0, 1}))
		Expect(l.NextBatch()).To(Equal([]int{2, 3}))
		Expect(l.NextBatch()).To(Equal([]int{4}))
		Expect(l.NextBatch()).To(BeNil())
	})

	It("should rewind on reset", func() {
		l := NewDataLoader([]int{0, 1, 2}, 2, false, 1)

		l.NextBatch()
		l.NextBatch()
		l.Reset()

		Expect(l.NextBatch()).To(Equal([]int{0, 1}))
	})

	It("should produce disjoint covering shards", func() {
		indices := []int{10, 11, 12, 13, 14, 15, 16}
		l := NewDataLoader(indices, 3, false, 1)

		seen := map[int]int{}
		for rank := 0; rank < 3; rank++ {
			shard := l.Shard(rank, 3)
			for {
				batch := shard.NextBatch()
				if batch == nil {
					break
				}
				for _, idx := range batch {
					seen[idx]++
				}
			}
		}

		Expect(seen).To(HaveLen(len(indices)))
		for _, count := range seen {
			Expect(count).To(Equal(1))
		}
	})

	It("should shuffle when asked", func() {
		indices := make([]int, 100)
		for i := range indices {
			indices[i] = i
		}

		l := NewDataLoader(indices, 100, true, 99)
		l.Reset()

		batch := l.NextBatch()
		Expect(batch).To(HaveLen(100))
		Expect(batch).NotTo(Equal(indices))
	})
})
