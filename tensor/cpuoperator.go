package tensor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CPUOperator can process tensors in host memory.
type CPUOperator struct {
}

// Create creates a zero-filled tensor.
func (to *CPUOperator) Create(size []int) Tensor {
	return to.Zeros(size)
}

// CreateWithData creates a tensor and fills it with data.
func (to *CPUOperator) CreateWithData(
	data []float64,
	size []int,
	descriptor string,
) Tensor {
	t := &SimpleTensor{
		descriptor: descriptor,
		size:       append([]int{}, size...),
	}

	if len(data) != t.NumElement() {
		panic("data size does not match tensor size")
	}

	t.v = append([]float64{}, data...)

	return t
}

// Zeros creates a tensor filled with zeros.
func (to *CPUOperator) Zeros(size []int) Tensor {
	t := &SimpleTensor{
		size: append([]int{}, size...),
	}
	t.v = make([]float64, t.NumElement())
	return t
}

// Init sets the data of the tensor.
func (to *CPUOperator) Init(t Tensor, data []float64) {
	if t.NumElement() != len(data) {
		panic("mismatch in buffer shape")
	}

	copy(t.Vector(), data)
}

// Clone duplicates the input tensor.
func (to *CPUOperator) Clone(t Tensor) Tensor {
	return to.CreateWithData(
		append([]float64{}, t.Vector()...),
		t.Size(),
		t.Descriptor(),
	)
}

// Slice returns a view of the elements in the range [start, end) of the
// flattened tensor. The view shares storage with the input tensor.
func (to *CPUOperator) Slice(t Tensor, start, end int) Tensor {
	if start < 0 || end > t.NumElement() || start > end {
		panic("slice out of range")
	}

	return &SimpleTensor{
		descriptor: t.Descriptor(),
		size:       []int{end - start},
		v:          t.Vector()[start:end],
	}
}

// Repeat duplicates the flattened input tensor `times` times.
func (to *CPUOperator) Repeat(t Tensor, times int) Tensor {
	in := t.Vector()
	out := make([]float64, 0, len(in)*times)
	for i := 0; i < times; i++ {
		out = append(out, in...)
	}

	return &SimpleTensor{
		size: []int{len(in) * times},
		v:    out,
	}
}

// Reshape creates a tensor with the same data and a new shape.
func (to *CPUOperator) Reshape(t Tensor, newSize []int) Tensor {
	out := &SimpleTensor{
		descriptor: t.Descriptor(),
		size:       append([]int{}, newSize...),
	}

	if out.NumElement() != t.NumElement() {
		panic("mismatch in the number of elements")
	}

	out.v = append([]float64{}, t.Vector()...)

	return out
}

// Transpose reorders the dimensions of the tensor.
func (to *CPUOperator) Transpose(t Tensor, order []int) Tensor {
	inSize := t.Size()
	if len(order) != len(inSize) {
		panic("order length does not match tensor dimension")
	}

	outSize := make([]int, len(inSize))
	for i, o := range order {
		outSize[i] = inSize[o]
	}

	inStride := strides(inSize)
	outStride := strides(outSize)

	in := t.Vector()
	out := make([]float64, len(in))

	index := make([]int, len(inSize))
	for i := range in {
		rem := i
		for d := range inSize {
			index[d] = rem / inStride[d]
			rem = rem % inStride[d]
		}

		outIndex := 0
		for d, o := range order {
			outIndex += index[o] * outStride[d]
		}

		out[outIndex] = in[i]
	}

	return &SimpleTensor{
		size: outSize,
		v:    out,
	}
}

func strides(size []int) []int {
	s := make([]int, len(size))
	acc := 1
	for i := len(size) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= size[i]
	}
	return s
}

// Copy copies data between two tensors of the same number of elements.
func (to *CPUOperator) Copy(dst, src Tensor) {
	if dst.NumElement() != src.NumElement() {
		panic("mismatch in the number of elements")
	}

	copy(dst.Vector(), src.Vector())
}

// Clear sets all the elements to 0.
func (to *CPUOperator) Clear(t Tensor) {
	v := t.Vector()
	for i := range v {
		v[i] = 0
	}
}

// Free releases the tensor. The CPU operator relies on the garbage
// collector, so nothing needs to happen here.
func (to *CPUOperator) Free(t Tensor) {
}

// Gemm calculates alpha * op(a) * op(b) + beta * c.
func (to *CPUOperator) Gemm(
	transA, transB bool,
	alpha, beta float64,
	a, b, c Tensor,
) Tensor {
	if a.Dim() != 2 || b.Dim() != 2 || c.Dim() != 2 {
		panic("gemm only takes 2D tensors")
	}

	matA := denseFromTensor(a)
	matB := denseFromTensor(b)

	if transA {
		matA = matA.T()
	}
	if transB {
		matB = matB.T()
	}

	m, _ := matA.Dims()
	_, n := matB.Dims()

	out := mat.NewDense(m, n, nil)
	out.Mul(matA, matB)
	out.Scale(alpha, out)

	scaledC := mat.NewDense(m, n, nil)
	scaledC.Scale(beta, denseFromTensor(c))
	out.Add(out, scaledC)

	return &SimpleTensor{
		size: []int{m, n},
		v:    append([]float64{}, out.RawMatrix().Data...),
	}
}

func denseFromTensor(t Tensor) mat.Matrix {
	size := t.Size()
	return mat.NewDense(size[0], size[1], t.Vector())
}

// Sum reduces the tensor along the given axes.
func (to *CPUOperator) Sum(t Tensor, axes []int) Tensor {
	inSize := t.Size()

	reduce := make([]bool, len(inSize))
	for _, a := range axes {
		reduce[a] = true
	}

	outSize := make([]int, 0)
	for d, s := range inSize {
		if !reduce[d] {
			outSize = append(outSize, s)
		}
	}
	if len(outSize) == 0 {
		outSize = []int{1}
	}

	inStride := strides(inSize)
	out := make([]float64, numElement(outSize))
	outStride := strides(outSize)

	in := t.Vector()
	index := make([]int, len(inSize))
	for i := range in {
		rem := i
		for d := range inSize {
			index[d] = rem / inStride[d]
			rem = rem % inStride[d]
		}

		outIndex := 0
		outDim := 0
		for d := range inSize {
			if !reduce[d] {
				outIndex += index[d] * outStride[outDim]
				outDim++
			}
		}

		out[outIndex] += in[i]
	}

	return &SimpleTensor{
		size: outSize,
		v:    out,
	}
}

func numElement(size []int) int {
	n := 1
	for _, s := range size {
		n *= s
	}
	return n
}

// Softmax calculates the softmax over the last dimension of the tensor.
func (to *CPUOperator) Softmax(t Tensor) Tensor {
	size := t.Size()
	lastDim := size[len(size)-1]
	numRow := t.NumElement() / lastDim

	in := t.Vector()
	out := make([]float64, len(in))

	for r := 0; r < numRow; r++ {
		row := in[r*lastDim : (r+1)*lastDim]

		max := row[0]
		for _, v := range row {
			if v > max {
				max = v
			}
		}

		denominator := 0.0
		for i, v := range row {
			e := math.Exp(v - max)
			out[r*lastDim+i] = e
			denominator += e
		}

		for i := range row {
			out[r*lastDim+i] /= denominator
		}
	}

	return &SimpleTensor{
		size: append([]int{}, size...),
		v:    out,
	}
}

// ScaleAdd calculates alpha*a + beta*b element-wise.
func (to *CPUOperator) ScaleAdd(alpha, beta float64, a, b Tensor) Tensor {
	if a.NumElement() != b.NumElement() {
		panic("mismatch in the number of elements")
	}

	av := a.Vector()
	bv := b.Vector()
	out := make([]float64, len(av))
	for i := range av {
		out[i] = alpha*av[i] + beta*bv[i]
	}

	return &SimpleTensor{
		size: append([]int{}, a.Size()...),
		v:    out,
	}
}

// ElementWiseMul multiplies two tensors element-wise.
func (to *CPUOperator) ElementWiseMul(a, b Tensor) Tensor {
	if a.NumElement() != b.NumElement() {
		panic("mismatch in the number of elements")
	}

	av := a.Vector()
	bv := b.Vector()
	out := make([]float64, len(av))
	for i := range av {
		out[i] = av[i] * bv[i]
	}

	return &SimpleTensor{
		size: append([]int{}, a.Size()...),
		v:    out,
	}
}

// Gather collects rows of a 2D tensor.
func (to *CPUOperator) Gather(t Tensor, rows []int) Tensor {
	if t.Dim() != 2 {
		panic("gather only takes 2D tensors")
	}

	width := t.Size()[1]
	in := t.Vector()
	out := make([]float64, len(rows)*width)
	for i, r := range rows {
		copy(out[i*width:(i+1)*width], in[r*width:(r+1)*width])
	}

	return &SimpleTensor{
		size: []int{len(rows), width},
		v:    out,
	}
}

// ScatterAdd adds the rows of src into the given rows of dst.
func (to *CPUOperator) ScatterAdd(dst Tensor, rows []int, src Tensor) {
	if dst.Dim() != 2 || src.Dim() != 2 {
		panic("scatter-add only takes 2D tensors")
	}

	width := dst.Size()[1]
	if src.Size()[1] != width {
		panic("mismatch in row width")
	}

	dstV := dst.Vector()
	srcV := src.Vector()
	for i, r := range rows {
		for j := 0; j < width; j++ {
			dstV[r*width+j] += srcV[i*width+j]
		}
	}
}

// Adam runs one Adam update step.
func (to *CPUOperator) Adam(
	params, grads, v, s Tensor,
	beta1, beta2, lr float64,
) {
	const eps = 1e-8

	p := params.Vector()
	g := grads.Vector()
	vv := v.Vector()
	sv := s.Vector()

	for i := range p {
		vv[i] = beta1*vv[i] + (1-beta1)*g[i]
		sv[i] = beta2*sv[i] + (1-beta2)*g[i]*g[i]
		p[i] -= lr * vv[i] / (math.Sqrt(sv[i]) + eps)
	}
}
