package layers

import (
	"math"
	"math/rand"

	"github.com/sarchlab/gnnbench/graph"
	"github.com/sarchlab/gnnbench/tensor"
)

// GATConvConfig configures a graph attention layer.
type GATConvConfig struct {
	InDim    int
	OutDim   int
	NumHeads int

	FeatDropout float64
	AttnDropout float64

	// NegativeSlope is the slope of the LeakyReLU applied to the raw
	// attention logits.
	NegativeSlope float64

	// Activation applies a ReLU to the aggregated output.
	Activation bool

	// CombineMean averages the heads instead of concatenating them. The
	// output layer of a GAT network averages; hidden layers concatenate.
	CombineMean bool
}

// A GATConvLayer implements a multi-head graph attention convolution.
type GATConvLayer struct {
	layerIndex int
	to         tensor.Operator
	config     GATConvConfig
	rng        *rand.Rand
	training   bool

	parameters tensor.Tensor
	gradients  tensor.Tensor

	weights       tensor.Tensor
	attnSrc       tensor.Tensor
	attnDst       tensor.Tensor
	bias          tensor.Tensor
	weightGrad    tensor.Tensor
	attnSrcGrad   tensor.Tensor
	attnDstGrad   tensor.Tensor
	biasGrad      tensor.Tensor

	// Caches for backward propagation.
	forwardInput tensor.Tensor
	featMask     []float64
	projected    []float64 // [numSrc, heads, outDim]
	attnRaw      []float64 // pre-LeakyReLU logits, one per edge and head
	attnWeights  []float64 // post-softmax attention, one per edge and head
	attnMask     []float64
	output       []float64
}

// NewGATConvLayer creates a graph attention layer.
func NewGATConvLayer(
	index int,
	to tensor.Operator,
	config GATConvConfig,
	seed int64,
) *GATConvLayer {
	if config.NumHeads <= 0 {
		panic("a GAT layer needs at least one attention head")
	}
	if config.NegativeSlope == 0 {
		config.NegativeSlope = 0.2
	}

	numWeight := config.InDim * config.NumHeads * config.OutDim
	numAttn := config.NumHeads * config.OutDim
	numBias := config.NumHeads * config.OutDim
	numParams := numWeight + 2*numAttn + numBias

	l := &GATConvLayer{
		layerIndex: index,
		to:         to,
		config:     config,
		rng:        rand.New(rand.NewSource(seed)),
		parameters: to.Create([]int{numParams}),
		gradients:  to.Create([]int{numParams}),
	}

	l.weights = to.Slice(l.parameters, 0, numWeight)
	l.attnSrc = to.Slice(l.parameters, numWeight, numWeight+numAttn)
	l.attnDst = to.Slice(l.parameters, numWeight+numAttn, numWeight+2*numAttn)
	l.bias = to.Slice(l.parameters, numWeight+2*numAttn, numParams)

	l.weightGrad = to.Slice(l.gradients, 0, numWeight)
	l.attnSrcGrad = to.Slice(l.gradients, numWeight, numWeight+numAttn)
	l.attnDstGrad = to.Slice(l.gradients, numWeight+numAttn, numWeight+2*numAttn)
	l.biasGrad = to.Slice(l.gradients, numWeight+2*numAttn, numParams)

	return l
}

// Randomize initializes the parameters of the layer randomly.
func (l *GATConvLayer) Randomize() {
	xavier := math.Sqrt(2.0 / float64(l.config.InDim))
	numWeight := l.weights.NumElement()
	weights := make([]float64, numWeight)
	for i := range weights {
		weights[i] = (l.rng.Float64()*2 - 1) * xavier
	}
	l.to.Init(l.weights, weights)

	attnScale := math.Sqrt(2.0 / float64(l.config.OutDim))
	numAttn := l.attnSrc.NumElement()
	attnSrc := make([]float64, numAttn)
	attnDst := make([]float64, numAttn)
	for i := range attnSrc {
		attnSrc[i] = (l.rng.Float64()*2 - 1) * attnScale
		attnDst[i] = (l.rng.Float64()*2 - 1) * attnScale
	}
	l.to.Init(l.attnSrc, attnSrc)
	l.to.Init(l.attnDst, attnDst)

	l.to.Init(l.bias, make([]float64, l.bias.NumElement()))
}

// SetTraining switches dropout on or off.
func (l *GATConvLayer) SetTraining(training bool) {
	l.training = training
}

// OutputWidth returns the width of the output feature rows.
func (l *GATConvLayer) OutputWidth() int {
	if l.config.CombineMean {
		return l.config.OutDim
	}
	return l.config.NumHeads * l.config.OutDim
}

// Forward performs the forward propagation operation over the block.
func (l *GATConvLayer) Forward(
	block *graph.Block,
	input tensor.Tensor,
) tensor.Tensor {
	numSrc := block.NumSrc()
	numDst := block.NumDst()
	heads := l.config.NumHeads
	outDim := l.config.OutDim

	if input.Size()[0] != numSrc || input.Size()[1] != l.config.InDim {
		panic("input does not match the block source nodes")
	}

	x := l.to.Clone(input)
	if l.training && l.config.FeatDropout > 0 {
		l.featMask = dropoutMask(l.rng, x.NumElement(), l.config.FeatDropout)
		l.to.Init(x, applyMask(x.Vector(), l.featMask))
	} else {
		l.featMask = nil
	}
	l.forwardInput = x

	// Project the source features into the per-head output space.
	weightMat := l.to.Reshape(l.weights,
		[]int{l.config.InDim, heads * outDim})
	zeros := l.to.Zeros([]int{numSrc, heads * outDim})
	projected := l.to.Gemm(false, false, 1, 0, x, weightMat, zeros)
	l.projected = projected.Vector()
	l.to.Free(weightMat)
	l.to.Free(zeros)

	// Per-node halves of the attention logits.
	aSrc := l.attnSrc.Vector()
	aDst := l.attnDst.Vector()
	eSrc := make([]float64, numSrc*heads)
	eDst := make([]float64, numDst*heads)
	for i := 0; i < numSrc; i++ {
		for h := 0; h < heads; h++ {
			sum := 0.0
			base := (i*heads + h) * outDim
			for f := 0; f < outDim; f++ {
				sum += l.projected[base+f] * aSrc[h*outDim+f]
			}
			eSrc[i*heads+h] = sum
		}
	}
	for j := 0; j < numDst; j++ {
		for h := 0; h < heads; h++ {
			sum := 0.0
			base := (j*heads + h) * outDim
			for f := 0; f < outDim; f++ {
				sum += l.projected[base+f] * aDst[h*outDim+f]
			}
			eDst[j*heads+h] = sum
		}
	}

	// Raw per-edge logits through the LeakyReLU.
	numEdges := block.NumEdges()
	l.attnRaw = make([]float64, numEdges*heads)
	logits := make([]float64, numEdges*heads)
	slope := l.config.NegativeSlope
	for e := 0; e < numEdges; e++ {
		s := block.EdgeSrc[e]
		d := block.EdgeDst[e]
		for h := 0; h < heads; h++ {
			raw := eSrc[s*heads+h] + eDst[d*heads+h]
			l.attnRaw[e*heads+h] = raw
			if raw < 0 {
				raw *= slope
			}
			logits[e*heads+h] = raw
		}
	}

	// Softmax over the incoming edges of every destination node.
	l.attnWeights = edgeSoftmax(block, logits, heads)

	attn := l.attnWeights
	if l.training && l.config.AttnDropout > 0 {
		l.attnMask = dropoutMask(l.rng, len(attn), l.config.AttnDropout)
		attn = applyMask(attn, l.attnMask)
	} else {
		l.attnMask = nil
	}

	// Aggregate the projected neighbor features.
	rst := make([]float64, numDst*heads*outDim)
	for e := 0; e < numEdges; e++ {
		s := block.EdgeSrc[e]
		d := block.EdgeDst[e]
		for h := 0; h < heads; h++ {
			a := attn[e*heads+h]
			srcBase := (s*heads + h) * outDim
			dstBase := (d*heads + h) * outDim
			for f := 0; f < outDim; f++ {
				rst[dstBase+f] += a * l.projected[srcBase+f]
			}
		}
	}

	biasV := l.bias.Vector()
	for j := 0; j < numDst; j++ {
		for i := 0; i < heads*outDim; i++ {
			rst[j*heads*outDim+i] += biasV[i]
		}
	}

	out := rst
	if l.config.CombineMean {
		out = make([]float64, numDst*outDim)
		for j := 0; j < numDst; j++ {
			for f := 0; f < outDim; f++ {
				sum := 0.0
				for h := 0; h < heads; h++ {
					sum += rst[(j*heads+h)*outDim+f]
				}
				out[j*outDim+f] = sum / float64(heads)
			}
		}
	}

	if l.config.Activation {
		for i, v := range out {
			if v < 0 {
				out[i] = 0
			}
		}
	}
	l.output = out

	return l.to.CreateWithData(out,
		[]int{numDst, l.OutputWidth()}, "gat_out")
}

// Backward calculates the parameter gradients and the input gradient.
func (l *GATConvLayer) Backward(
	block *graph.Block,
	outputGrad tensor.Tensor,
) tensor.Tensor {
	numSrc := block.NumSrc()
	numDst := block.NumDst()
	heads := l.config.NumHeads
	outDim := l.config.OutDim
	numEdges := block.NumEdges()

	l.to.Clear(l.gradients)

	dOut := append([]float64{}, outputGrad.Vector()...)
	if l.config.Activation {
		for i := range dOut {
			if l.output[i] <= 0 {
				dOut[i] = 0
			}
		}
	}

	// Undo the head combination.
	dRst := dOut
	if l.config.CombineMean {
		dRst = make([]float64, numDst*heads*outDim)
		for j := 0; j < numDst; j++ {
			for f := 0; f < outDim; f++ {
				g := dOut[j*outDim+f] / float64(heads)
				for h := 0; h < heads; h++ {
					dRst[(j*heads+h)*outDim+f] = g
				}
			}
		}
	}

	biasGrad := l.biasGrad.Vector()
	for j := 0; j < numDst; j++ {
		for i := 0; i < heads*outDim; i++ {
			biasGrad[i] += dRst[j*heads*outDim+i]
		}
	}

	attn := l.attnWeights
	if l.attnMask != nil {
		attn = applyMask(attn, l.attnMask)
	}

	// Gradients through the aggregation: toward the attention weights and
	// toward the projected source features.
	dProjected := make([]float64, numSrc*heads*outDim)
	dAttn := make([]float64, numEdges*heads)
	for e := 0; e < numEdges; e++ {
		s := block.EdgeSrc[e]
		d := block.EdgeDst[e]
		for h := 0; h < heads; h++ {
			srcBase := (s*heads + h) * outDim
			dstBase := (d*heads + h) * outDim
			a := attn[e*heads+h]
			sum := 0.0
			for f := 0; f < outDim; f++ {
				g := dRst[dstBase+f]
				sum += g * l.projected[srcBase+f]
				dProjected[srcBase+f] += a * g
			}
			dAttn[e*heads+h] = sum
		}
	}

	if l.attnMask != nil {
		dAttn = applyMask(dAttn, l.attnMask)
	}

	// Softmax backward per destination node and head.
	dLogits := edgeSoftmaxBackward(block, l.attnWeights, dAttn, heads)

	// LeakyReLU backward.
	slope := l.config.NegativeSlope
	for i := range dLogits {
		if l.attnRaw[i] < 0 {
			dLogits[i] *= slope
		}
	}

	// Split the logit gradients into the source and destination halves.
	dESrc := make([]float64, numSrc*heads)
	dEDst := make([]float64, numDst*heads)
	for e := 0; e < numEdges; e++ {
		s := block.EdgeSrc[e]
		d := block.EdgeDst[e]
		for h := 0; h < heads; h++ {
			g := dLogits[e*heads+h]
			dESrc[s*heads+h] += g
			dEDst[d*heads+h] += g
		}
	}

	aSrc := l.attnSrc.Vector()
	aDst := l.attnDst.Vector()
	aSrcGrad := l.attnSrcGrad.Vector()
	aDstGrad := l.attnDstGrad.Vector()
	for i := 0; i < numSrc; i++ {
		for h := 0; h < heads; h++ {
			g := dESrc[i*heads+h]
			if g == 0 {
				continue
			}
			base := (i*heads + h) * outDim
			for f := 0; f < outDim; f++ {
				aSrcGrad[h*outDim+f] += g * l.projected[base+f]
				dProjected[base+f] += g * aSrc[h*outDim+f]
			}
		}
	}
	for j := 0; j < numDst; j++ {
		for h := 0; h < heads; h++ {
			g := dEDst[j*heads+h]
			if g == 0 {
				continue
			}
			base := (j*heads + h) * outDim
			for f := 0; f < outDim; f++ {
				aDstGrad[h*outDim+f] += g * l.projected[base+f]
				dProjected[base+f] += g * aDst[h*outDim+f]
			}
		}
	}

	// Gradients through the projection.
	dProjectedT := l.to.CreateWithData(dProjected,
		[]int{numSrc, heads * outDim}, "")
	weightMat := l.to.Reshape(l.weights,
		[]int{l.config.InDim, heads * outDim})

	zerosW := l.to.Zeros([]int{l.config.InDim, heads * outDim})
	dW := l.to.Gemm(true, false, 1, 0, l.forwardInput, dProjectedT, zerosW)
	l.to.Copy(l.weightGrad, dW)

	zerosX := l.to.Zeros([]int{numSrc, l.config.InDim})
	dX := l.to.Gemm(false, true, 1, 0, dProjectedT, weightMat, zerosX)

	l.to.Free(dProjectedT)
	l.to.Free(weightMat)
	l.to.Free(zerosW)
	l.to.Free(dW)
	l.to.Free(zerosX)

	if l.featMask != nil {
		l.to.Init(dX, applyMask(dX.Vector(), l.featMask))
	}

	l.to.Free(l.forwardInput)

	return dX
}

// Parameters returns the parameters of the layer.
func (l *GATConvLayer) Parameters() tensor.Tensor {
	return l.parameters
}

// Gradients returns the gradients of the layer.
func (l *GATConvLayer) Gradients() tensor.Tensor {
	return l.gradients
}

// edgeSoftmax normalizes the per-edge logits over the incoming edges of
// every destination node, independently per head.
func edgeSoftmax(block *graph.Block, logits []float64, heads int) []float64 {
	numDst := block.NumDst()
	numEdges := block.NumEdges()

	maxPerDst := make([]float64, numDst*heads)
	for i := range maxPerDst {
		maxPerDst[i] = math.Inf(-1)
	}
	for e := 0; e < numEdges; e++ {
		d := block.EdgeDst[e]
		for h := 0; h < heads; h++ {
			if logits[e*heads+h] > maxPerDst[d*heads+h] {
				maxPerDst[d*heads+h] = logits[e*heads+h]
			}
		}
	}

	out := make([]float64, len(logits))
	denominator := make([]float64, numDst*heads)
	for e := 0; e < numEdges; e++ {
		d := block.EdgeDst[e]
		for h := 0; h < heads; h++ {
			v := math.Exp(logits[e*heads+h] - maxPerDst[d*heads+h])
			out[e*heads+h] = v
			denominator[d*heads+h] += v
		}
	}
	for e := 0; e < numEdges; e++ {
		d := block.EdgeDst[e]
		for h := 0; h < heads; h++ {
			out[e*heads+h] /= denominator[d*heads+h]
		}
	}

	return out
}

// edgeSoftmaxBackward calculates the gradient of the edge softmax given
// the softmax output and the gradient with respect to it.
func edgeSoftmaxBackward(
	block *graph.Block,
	softmax, grad []float64,
	heads int,
) []float64 {
	numDst := block.NumDst()
	numEdges := block.NumEdges()

	dot := make([]float64, numDst*heads)
	for e := 0; e < numEdges; e++ {
		d := block.EdgeDst[e]
		for h := 0; h < heads; h++ {
			dot[d*heads+h] += softmax[e*heads+h] * grad[e*heads+h]
		}
	}

	out := make([]float64, len(softmax))
	for e := 0; e < numEdges; e++ {
		d := block.EdgeDst[e]
		for h := 0; h < heads; h++ {
			out[e*heads+h] = softmax[e*heads+h] *
				(grad[e*heads+h] - dot[d*heads+h])
		}
	}

	return out
}
