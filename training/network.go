// Package training provides the network container, the loss functions,
// and the metrics used by the node-classification benchmarks.
package training

import (
	"github.com/sarchlab/gnnbench/datasets"
	"github.com/sarchlab/gnnbench/graph"
	"github.com/sarchlab/gnnbench/layers"
	"github.com/sarchlab/gnnbench/tensor"
)

// A Network is a list of graph layers. Layer i propagates over block i of
// a mini-batch.
type Network struct {
	Layers []layers.Layer
}

// NumLayers returns the number of layers of the network.
func (n Network) NumLayers() int {
	return len(n.Layers)
}

// Randomize initializes all the layer parameters randomly.
func (n Network) Randomize() {
	for _, l := range n.Layers {
		l.Randomize()
	}
}

// SetTraining switches all the layers between training and evaluation
// behavior.
func (n Network) SetTraining(training bool) {
	for _, l := range n.Layers {
		l.SetTraining(training)
	}
}

// Forward runs forward propagation over the blocks of one mini-batch.
func (n Network) Forward(
	blocks []*graph.Block,
	input tensor.Tensor,
) tensor.Tensor {
	if len(blocks) != len(n.Layers) {
		panic("the number of blocks must match the number of layers")
	}

	h := input
	for i, l := range n.Layers {
		h = l.Forward(blocks[i], h)
	}
	return h
}

// Backward runs backward propagation over the blocks of one mini-batch,
// leaving the parameter gradients in the layers.
func (n Network) Backward(blocks []*graph.Block, lossGrad tensor.Tensor) {
	g := lossGrad
	for i := len(n.Layers) - 1; i >= 0; i-- {
		g = n.Layers[i].Backward(blocks[i], g)
	}
}

// GATNetworkConfig configures a GAT node-classification network.
type GATNetworkConfig struct {
	InDim      int
	HiddenDim  int
	NumClasses int

	// Heads holds the attention head count of every layer. The last entry
	// must be 1, matching the single-headed averaged output layer.
	Heads []int

	FeatDropout float64
	AttnDropout float64
}

// NewGATNetwork builds a GAT network. Hidden layers concatenate their
// heads and apply a ReLU; the output layer averages its heads.
func NewGATNetwork(
	to tensor.Operator,
	config GATNetworkConfig,
	seed int64,
) Network {
	numLayers := len(config.Heads)
	if numLayers == 0 {
		panic("a GAT network needs at least one layer")
	}
	if config.Heads[numLayers-1] != 1 {
		panic("the last GAT layer must have exactly one head")
	}

	n := Network{}
	for i := 0; i < numLayers; i++ {
		inDim := config.InDim
		if i > 0 {
			inDim = config.HiddenDim * config.Heads[i-1]
		}

		outDim := config.HiddenDim
		last := i == numLayers-1
		if last {
			outDim = config.NumClasses
		}

		n.Layers = append(n.Layers, layers.NewGATConvLayer(
			i, to,
			layers.GATConvConfig{
				InDim:       inDim,
				OutDim:      outDim,
				NumHeads:    config.Heads[i],
				FeatDropout: config.FeatDropout,
				AttnDropout: config.AttnDropout,
				Activation:  !last,
				CombineMean: last,
			},
			seed+int64(i),
		))
	}

	return n
}

// SAGENetworkConfig configures a GraphSAGE node-classification network.
type SAGENetworkConfig struct {
	InDim      int
	HiddenDim  int
	NumClasses int
	NumLayers  int
	Dropout    float64
}

// NewSAGENetwork builds a GraphSAGE-mean network with ReLU activations and
// dropout between the layers.
func NewSAGENetwork(
	to tensor.Operator,
	config SAGENetworkConfig,
	seed int64,
) Network {
	if config.NumLayers < 1 {
		panic("a SAGE network needs at least one layer")
	}

	n := Network{}
	for i := 0; i < config.NumLayers; i++ {
		inDim := config.HiddenDim
		if i == 0 {
			inDim = config.InDim
		}
		outDim := config.HiddenDim
		last := i == config.NumLayers-1
		if last {
			outDim = config.NumClasses
		}

		dropout := config.Dropout
		if i == 0 {
			// The first layer consumes raw features, which are not
			// dropped in the reference model.
			dropout = 0
		}

		n.Layers = append(n.Layers, layers.NewSAGEConvLayer(
			i, to,
			layers.SAGEConvConfig{
				InDim:      inDim,
				OutDim:     outDim,
				Dropout:    dropout,
				Activation: !last,
			},
			seed+int64(i),
		))
	}

	return n
}

// NewNetwork builds the network selected by the model name, sized for the
// given dataset.
func NewNetwork(
	to tensor.Operator,
	model string,
	d *datasets.Dataset,
	hiddenDim int,
	heads []int,
	seed int64,
) Network {
	switch model {
	case "gat":
		return NewGATNetwork(to, GATNetworkConfig{
			InDim:       d.InDim,
			HiddenDim:   hiddenDim,
			NumClasses:  d.NumClasses,
			Heads:       heads,
			FeatDropout: 0.6,
			AttnDropout: 0.6,
		}, seed)
	case "sage":
		return NewSAGENetwork(to, SAGENetworkConfig{
			InDim:      d.InDim,
			HiddenDim:  hiddenDim,
			NumClasses: d.NumClasses,
			NumLayers:  3,
			Dropout:    0.2,
		}, seed)
	default:
		panic("unknown model " + model)
	}
}
