package dist

import (
	"github.com/sarchlab/gnnbench/graph"
	"github.com/sarchlab/gnnbench/tensor"
	"github.com/sarchlab/gnnbench/training"
)

// inferLayerwise propagates the full graph through the network one layer
// at a time, keeping every in-neighbor. The ranks split the nodes of each
// layer between them and write disjoint rows of the shared layer buffer,
// so a barrier per layer is the only synchronization needed.
func (t *Trainer) inferLayerwise(
	rank int,
	comm *Communicator,
	net training.Network,
	to tensor.Operator,
	buffers [][]float64,
) {
	net.SetTraining(false)
	sampler := graph.NewFullNeighborSampler()
	world := comm.World()

	numNodes := t.dataset.Graph.NumNodes
	all := make([]int, numNodes)
	for i := range all {
		all[i] = i
	}

	h := t.dataset.Features
	width := t.dataset.InDim
	for l, layer := range net.Layers {
		loader := graph.NewDataLoader(
			all, t.config.InferenceBatchSize, false, 0).Shard(rank, world)

		out := buffers[l]
		outWidth := layer.OutputWidth()

		for {
			batch := loader.NextBatch()
			if batch == nil {
				break
			}

			block := sampler.SampleLayer(t.dataset.Graph, batch)
			input := gatherRows(to, h, width, block.SrcNodes)
			y := layer.Forward(block, input)

			yV := y.Vector()
			for i, node := range batch {
				copy(out[node*outWidth:(node+1)*outWidth],
					yV[i*outWidth:(i+1)*outWidth])
			}
			to.Free(y)
		}

		comm.Barrier()
		h = out
		width = outWidth
	}
}

// gatherRows collects the feature rows of the given nodes into one
// tensor.
func gatherRows(
	to tensor.Operator,
	data []float64,
	width int,
	nodes []int,
) tensor.Tensor {
	rows := make([]float64, len(nodes)*width)
	for i, n := range nodes {
		copy(rows[i*width:(i+1)*width], data[n*width:(n+1)*width])
	}

	return to.CreateWithData(rows, []int{len(nodes), width}, "features")
}
