// Package datasets loads the node-classification datasets that the
// benchmarks train on.
package datasets

import (
	"fmt"

	"github.com/sarchlab/gnnbench/graph"
	"github.com/sarchlab/gnnbench/tensor"
)

// A Dataset is a graph with node features, node labels, and the index sets
// of the train/validation/test splits.
type Dataset struct {
	Name string

	Graph *graph.Graph

	// Features holds the node feature matrix in row-major order, one row
	// of InDim values per node.
	Features []float64
	InDim    int

	Labels     []int
	NumClasses int

	TrainIdx []int
	ValIdx   []int
	TestIdx  []int
}

// FeatureTensor gathers the features of the given nodes into a 2D tensor.
func (d *Dataset) FeatureTensor(
	to tensor.Operator,
	nodes []int,
) tensor.Tensor {
	data := make([]float64, len(nodes)*d.InDim)
	for i, v := range nodes {
		copy(data[i*d.InDim:(i+1)*d.InDim],
			d.Features[v*d.InDim:(v+1)*d.InDim])
	}

	return to.CreateWithData(data, []int{len(nodes), d.InDim}, "features")
}

// LabelsOf returns the labels of the given nodes.
func (d *Dataset) LabelsOf(nodes []int) []int {
	labels := make([]int, len(nodes))
	for i, v := range nodes {
		labels[i] = d.Labels[v]
	}
	return labels
}

// Open loads a dataset by name from the given root directory. The special
// name "synthetic" generates a small random dataset instead of reading
// from disk.
func Open(name, dir string) (*Dataset, error) {
	switch name {
	case "synthetic":
		return Synthetic(DefaultSyntheticConfig()), nil
	default:
		ds, err := LoadOGB(name, dir)
		if err != nil {
			return nil, fmt.Errorf("open dataset %s: %w", name, err)
		}
		return ds, nil
	}
}

// finalize derives the class count from the labels and applies the
// per-dataset preprocessing.
func (d *Dataset) finalize() {
	maxLabel := 0
	for _, l := range d.Labels {
		if l > maxLabel {
			maxLabel = l
		}
	}
	d.NumClasses = maxLabel + 1

	// ogb-paper100M ships labels for a subset of the nodes only.
	if d.Name == "ogb-paper100M" {
		d.NumClasses = 172
	}

	// The arxiv citation graph is directed and has isolated nodes, so it
	// is symmetrized and self loops are added before training.
	if d.Name == "ogbn-arxiv" {
		d.Graph = d.Graph.ToBidirected().AddSelfLoops()
	}
}
