// Package optimization provides the optimizers that update the layer
// parameters during training.
package optimization

import "github.com/sarchlab/gnnbench/tensor"

// A Layer is anything that exposes flat parameter and gradient tensors.
type Layer interface {
	Parameters() tensor.Tensor
	Gradients() tensor.Tensor
}

// Adam is the Adam optimizer with L2 weight decay.
type Adam struct {
	to tensor.Operator

	LR          float64
	WeightDecay float64
	Beta1       float64
	Beta2       float64

	historyV map[Layer]tensor.Tensor
	historyS map[Layer]tensor.Tensor
}

// NewAdam creates an Adam optimizer.
func NewAdam(to tensor.Operator, lr, weightDecay float64) *Adam {
	return &Adam{
		to:          to,
		LR:          lr,
		WeightDecay: weightDecay,
		Beta1:       0.9,
		Beta2:       0.999,
		historyV:    make(map[Layer]tensor.Tensor),
		historyS:    make(map[Layer]tensor.Tensor),
	}
}

// UpdateParameters runs one update step on the layer.
func (r *Adam) UpdateParameters(layer Layer) {
	params := layer.Parameters()
	grads := layer.Gradients()

	if params == nil || grads == nil {
		return
	}

	v, found := r.historyV[layer]
	if !found {
		v = r.to.Zeros(grads.Size())
		r.historyV[layer] = v

		s := r.to.Zeros(grads.Size())
		r.historyS[layer] = s
	}
	s := r.historyS[layer]

	effectiveGrads := grads
	if r.WeightDecay > 0 {
		effectiveGrads = r.to.ScaleAdd(1, r.WeightDecay, grads, params)
	}

	r.to.Adam(params, effectiveGrads, v, s, r.Beta1, r.Beta2, r.LR)

	if effectiveGrads != grads {
		r.to.Free(effectiveGrads)
	}
}
