// Package layers provides the graph neural network layers that the
// node-classification benchmarks are assembled from.
package layers

import (
	"github.com/sarchlab/gnnbench/graph"
	"github.com/sarchlab/gnnbench/tensor"
)

// A Layer propagates node features over one message-flow block, and can
// run both forward and backward propagation.
type Layer interface {
	// Randomize creates random initial parameters for the layer.
	Randomize()

	// Forward performs forward propagation over the block. It stores the
	// intermediate results needed by Backward.
	Forward(block *graph.Block, input tensor.Tensor) tensor.Tensor

	// Backward takes the gradient of the loss with respect to the layer
	// output and calculates the parameter gradients. It returns the
	// gradient with respect to the layer input.
	Backward(block *graph.Block, outputGrad tensor.Tensor) tensor.Tensor

	// Parameters retrieves all the parameters of the layer as one flat
	// tensor.
	Parameters() tensor.Tensor

	// Gradients retrieves the gradients of the layer parameters as one
	// flat tensor, laid out like Parameters.
	Gradients() tensor.Tensor

	// OutputWidth returns the width of the feature rows the layer
	// produces.
	OutputWidth() int

	// SetTraining switches the layer between training and evaluation
	// behavior. Dropout only applies while training.
	SetTraining(training bool)
}
