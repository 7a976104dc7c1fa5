package training

import (
	"math"

	"github.com/sarchlab/gnnbench/tensor"
)

// A LossFunction calculates the training loss and its gradient with
// respect to the network output.
type LossFunction interface {
	Loss(output tensor.Tensor, labels []int) (float64, tensor.Tensor)
}

// SoftmaxCrossEntropy is the softmax cross-entropy loss averaged over the
// batch.
type SoftmaxCrossEntropy struct {
	to tensor.Operator
}

// NewSoftmaxCrossEntropy creates a softmax cross-entropy loss function.
func NewSoftmaxCrossEntropy(to tensor.Operator) *SoftmaxCrossEntropy {
	return &SoftmaxCrossEntropy{to: to}
}

// Loss calculates the loss value and the gradient with respect to the
// given logits.
func (s *SoftmaxCrossEntropy) Loss(
	output tensor.Tensor,
	labels []int,
) (float64, tensor.Tensor) {
	size := output.Size()
	batchSize := size[0]
	numClasses := size[1]

	if len(labels) != batchSize {
		panic("mismatch between the batch size and the label count")
	}

	probs := s.to.Softmax(output)
	probsV := probs.Vector()

	loss := 0.0
	grad := make([]float64, batchSize*numClasses)
	for i := 0; i < batchSize; i++ {
		p := probsV[i*numClasses+labels[i]]
		loss += -math.Log(math.Max(p, 1e-15))

		for c := 0; c < numClasses; c++ {
			g := probsV[i*numClasses+c]
			if c == labels[i] {
				g -= 1
			}
			grad[i*numClasses+c] = g / float64(batchSize)
		}
	}

	s.to.Free(probs)

	return loss / float64(batchSize),
		s.to.CreateWithData(grad, []int{batchSize, numClasses}, "loss_grad")
}
