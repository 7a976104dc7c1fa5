package layers

import (
	"math/rand"

	"github.com/sarchlab/gnnbench/graph"
	"github.com/sarchlab/gnnbench/tensor"
)

// SAGEConvConfig configures a GraphSAGE-mean convolution layer.
type SAGEConvConfig struct {
	InDim  int
	OutDim int

	// Dropout is applied to the input features while training.
	Dropout float64

	// Activation applies a ReLU to the output.
	Activation bool
}

// A SAGEConvLayer implements the GraphSAGE convolution with mean
// aggregation: the destination features and the mean of the in-neighbor
// features go through separate linear transforms and are added.
type SAGEConvLayer struct {
	layerIndex int
	to         tensor.Operator
	config     SAGEConvConfig
	rng        *rand.Rand
	training   bool

	parameters tensor.Tensor
	gradients  tensor.Tensor

	selfWeights   tensor.Tensor
	neighWeights  tensor.Tensor
	bias          tensor.Tensor
	selfGrad      tensor.Tensor
	neighGrad     tensor.Tensor
	biasGrad      tensor.Tensor

	forwardInput tensor.Tensor
	featMask     []float64
	neighMean    tensor.Tensor
	inDegree     []int
	output       []float64
}

// NewSAGEConvLayer creates a GraphSAGE-mean layer.
func NewSAGEConvLayer(
	index int,
	to tensor.Operator,
	config SAGEConvConfig,
	seed int64,
) *SAGEConvLayer {
	numWeight := config.InDim * config.OutDim
	numParams := 2*numWeight + config.OutDim

	l := &SAGEConvLayer{
		layerIndex: index,
		to:         to,
		config:     config,
		rng:        rand.New(rand.NewSource(seed)),
		parameters: to.Create([]int{numParams}),
		gradients:  to.Create([]int{numParams}),
	}

	l.selfWeights = to.Slice(l.parameters, 0, numWeight)
	l.neighWeights = to.Slice(l.parameters, numWeight, 2*numWeight)
	l.bias = to.Slice(l.parameters, 2*numWeight, numParams)

	l.selfGrad = to.Slice(l.gradients, 0, numWeight)
	l.neighGrad = to.Slice(l.gradients, numWeight, 2*numWeight)
	l.biasGrad = to.Slice(l.gradients, 2*numWeight, numParams)

	return l
}

// Randomize initializes the parameters of the layer randomly.
func (l *SAGEConvLayer) Randomize() {
	numWeight := l.config.InDim * l.config.OutDim
	selfW := make([]float64, numWeight)
	neighW := make([]float64, numWeight)
	for i := 0; i < numWeight; i++ {
		selfW[i] = (l.rng.Float64() - 0.5) / float64(l.config.InDim) * 2
		neighW[i] = (l.rng.Float64() - 0.5) / float64(l.config.InDim) * 2
	}
	l.to.Init(l.selfWeights, selfW)
	l.to.Init(l.neighWeights, neighW)
	l.to.Init(l.bias, make([]float64, l.config.OutDim))
}

// SetTraining switches dropout on or off.
func (l *SAGEConvLayer) SetTraining(training bool) {
	l.training = training
}

// OutputWidth returns the width of the output feature rows.
func (l *SAGEConvLayer) OutputWidth() int {
	return l.config.OutDim
}

// Forward performs the forward propagation operation over the block.
func (l *SAGEConvLayer) Forward(
	block *graph.Block,
	input tensor.Tensor,
) tensor.Tensor {
	numSrc := block.NumSrc()
	numDst := block.NumDst()
	inDim := l.config.InDim
	outDim := l.config.OutDim

	if input.Size()[0] != numSrc || input.Size()[1] != inDim {
		panic("input does not match the block source nodes")
	}

	x := l.to.Clone(input)
	if l.training && l.config.Dropout > 0 {
		l.featMask = dropoutMask(l.rng, x.NumElement(), l.config.Dropout)
		l.to.Init(x, applyMask(x.Vector(), l.featMask))
	} else {
		l.featMask = nil
	}
	l.forwardInput = x

	// Mean of the in-neighbor features per destination node.
	xV := x.Vector()
	mean := make([]float64, numDst*inDim)
	l.inDegree = make([]int, numDst)
	for e := 0; e < block.NumEdges(); e++ {
		s := block.EdgeSrc[e]
		d := block.EdgeDst[e]
		l.inDegree[d]++
		for f := 0; f < inDim; f++ {
			mean[d*inDim+f] += xV[s*inDim+f]
		}
	}
	for j := 0; j < numDst; j++ {
		if l.inDegree[j] == 0 {
			continue
		}
		inv := 1.0 / float64(l.inDegree[j])
		for f := 0; f < inDim; f++ {
			mean[j*inDim+f] *= inv
		}
	}
	l.neighMean = l.to.CreateWithData(mean, []int{numDst, inDim}, "mean")

	xDst := l.to.CreateWithData(
		xV[:numDst*inDim], []int{numDst, inDim}, "x_dst")

	selfMat := l.to.Reshape(l.selfWeights, []int{inDim, outDim})
	neighMat := l.to.Reshape(l.neighWeights, []int{inDim, outDim})

	biasMat := l.to.Repeat(l.bias, numDst)
	biasReshaped := l.to.Reshape(biasMat, []int{numDst, outDim})

	selfOut := l.to.Gemm(false, false, 1, 1, xDst, selfMat, biasReshaped)
	zeros := l.to.Zeros([]int{numDst, outDim})
	neighOut := l.to.Gemm(false, false, 1, 0, l.neighMean, neighMat, zeros)

	out := l.to.ScaleAdd(1, 1, selfOut, neighOut)

	l.to.Free(xDst)
	l.to.Free(selfMat)
	l.to.Free(neighMat)
	l.to.Free(biasMat)
	l.to.Free(biasReshaped)
	l.to.Free(selfOut)
	l.to.Free(zeros)
	l.to.Free(neighOut)

	outV := out.Vector()
	if l.config.Activation {
		for i, v := range outV {
			if v < 0 {
				outV[i] = 0
			}
		}
	}
	l.output = outV

	return out
}

// Backward calculates the parameter gradients and the input gradient.
func (l *SAGEConvLayer) Backward(
	block *graph.Block,
	outputGrad tensor.Tensor,
) tensor.Tensor {
	numSrc := block.NumSrc()
	numDst := block.NumDst()
	inDim := l.config.InDim
	outDim := l.config.OutDim

	l.to.Clear(l.gradients)

	dOutData := append([]float64{}, outputGrad.Vector()...)
	if l.config.Activation {
		for i := range dOutData {
			if l.output[i] <= 0 {
				dOutData[i] = 0
			}
		}
	}
	dOut := l.to.CreateWithData(dOutData, []int{numDst, outDim}, "")

	// Bias gradient.
	biasSum := l.to.Sum(dOut, []int{0})
	l.to.Copy(l.biasGrad, biasSum)
	l.to.Free(biasSum)

	// Weight gradients.
	xV := l.forwardInput.Vector()
	xDst := l.to.CreateWithData(
		xV[:numDst*inDim], []int{numDst, inDim}, "")

	zerosW := l.to.Zeros([]int{inDim, outDim})
	dSelfW := l.to.Gemm(true, false, 1, 0, xDst, dOut, zerosW)
	l.to.Copy(l.selfGrad, dSelfW)

	dNeighW := l.to.Gemm(true, false, 1, 0, l.neighMean, dOut, zerosW)
	l.to.Copy(l.neighGrad, dNeighW)

	// Input gradients.
	selfMat := l.to.Reshape(l.selfWeights, []int{inDim, outDim})
	neighMat := l.to.Reshape(l.neighWeights, []int{inDim, outDim})

	zerosDst := l.to.Zeros([]int{numDst, inDim})
	dXDst := l.to.Gemm(false, true, 1, 0, dOut, selfMat, zerosDst)
	dMean := l.to.Gemm(false, true, 1, 0, dOut, neighMat, zerosDst)

	dX := make([]float64, numSrc*inDim)
	copy(dX, dXDst.Vector())

	dMeanV := dMean.Vector()
	for e := 0; e < block.NumEdges(); e++ {
		s := block.EdgeSrc[e]
		d := block.EdgeDst[e]
		inv := 1.0 / float64(l.inDegree[d])
		for f := 0; f < inDim; f++ {
			dX[s*inDim+f] += dMeanV[d*inDim+f] * inv
		}
	}

	if l.featMask != nil {
		dX = applyMask(dX, l.featMask)
	}

	l.to.Free(dOut)
	l.to.Free(xDst)
	l.to.Free(zerosW)
	l.to.Free(dSelfW)
	l.to.Free(dNeighW)
	l.to.Free(selfMat)
	l.to.Free(neighMat)
	l.to.Free(zerosDst)
	l.to.Free(dXDst)
	l.to.Free(dMean)
	l.to.Free(l.forwardInput)
	l.to.Free(l.neighMean)

	return l.to.CreateWithData(dX, []int{numSrc, inDim}, "sage_dx")
}

// Parameters returns the parameters of the layer.
func (l *SAGEConvLayer) Parameters() tensor.Tensor {
	return l.parameters
}

// Gradients returns the gradients of the layer.
func (l *SAGEConvLayer) Gradients() tensor.Tensor {
	return l.gradients
}
