package tensor

// An Operator can process tensors. All the tensor math used by the layers
// and the optimizers goes through an Operator so that the same layer code
// can run on different backends.
type Operator interface {
	// Create creates a new tensor with the given size, with all the elements
	// set to 0.
	Create(size []int) Tensor

	// CreateWithData creates a new tensor and fills it with the given data.
	CreateWithData(data []float64, size []int, descriptor string) Tensor

	// Zeros creates a tensor with all the elements set to 0.
	Zeros(size []int) Tensor

	// Init sets the content of the tensor.
	Init(t Tensor, data []float64)

	// Clone duplicates a tensor.
	Clone(t Tensor) Tensor

	// Slice returns a new tensor that contains the elements in the range
	// [start, end) of the flattened input tensor. The returned tensor shares
	// the storage with the input tensor.
	Slice(t Tensor, start, end int) Tensor

	// Repeat creates a tensor that duplicates the input tensor `times` times.
	Repeat(t Tensor, times int) Tensor

	// Reshape creates a tensor with the same data but a new shape.
	Reshape(t Tensor, newSize []int) Tensor

	// Transpose reorders the dimensions of the tensor according to the
	// permutation given in order.
	Transpose(t Tensor, order []int) Tensor

	// Copy copies the data from the src tensor to the dst tensor. The two
	// tensors must have the same number of elements.
	Copy(dst, src Tensor)

	// Clear sets all the elements of the tensor to 0.
	Clear(t Tensor)

	// Free releases the tensor.
	Free(t Tensor)

	// Gemm calculates alpha * op(a) * op(b) + beta * c, where op may
	// transpose the matrix.
	Gemm(transA, transB bool, alpha, beta float64, a, b, c Tensor) Tensor

	// Sum reduces the tensor along the given axes.
	Sum(t Tensor, axes []int) Tensor

	// Softmax calculates the softmax over the last dimension of the tensor.
	Softmax(t Tensor) Tensor

	// ScaleAdd calculates alpha*a + beta*b element-wise.
	ScaleAdd(alpha, beta float64, a, b Tensor) Tensor

	// ElementWiseMul multiplies two tensors element-wise.
	ElementWiseMul(a, b Tensor) Tensor

	// Gather collects the given rows of a 2D tensor into a new tensor.
	Gather(t Tensor, rows []int) Tensor

	// ScatterAdd adds the rows of a 2D src tensor into the given rows of the
	// 2D dst tensor.
	ScatterAdd(dst Tensor, rows []int, src Tensor)

	// Adam runs one Adam update step on the parameters, using the gradients
	// and the first and second moment history tensors.
	Adam(params, grads, v, s Tensor, beta1, beta2, lr float64)
}
