// Package tensor provides the numerical arrays and the operator that
// the GNN layers and the trainer compute with.
package tensor

// A Tensor is a multi-dimensional array of float64 numbers.
type Tensor interface {
	// Dim returns the number of dimensions of the tensor.
	Dim() int

	// NumElement returns the total number of elements in the tensor.
	NumElement() int

	// Size returns the size of the tensor in each dimension.
	Size() []int

	// Vector returns the flattened raw data of the tensor.
	Vector() []float64

	// Descriptor returns a string that annotates the purpose of the tensor.
	Descriptor() string
}

// SimpleTensor is a tensor that holds its data in host memory.
type SimpleTensor struct {
	descriptor string
	size       []int
	v          []float64
}

// Dim returns the number of dimensions of the tensor.
func (t *SimpleTensor) Dim() int {
	return len(t.size)
}

// NumElement returns the total number of elements in the tensor.
func (t *SimpleTensor) NumElement() int {
	n := 1
	for _, s := range t.size {
		n *= s
	}
	return n
}

// Size returns the size of the tensor in each dimension.
func (t *SimpleTensor) Size() []int {
	return t.size
}

// Vector returns the underlying data of the tensor.
func (t *SimpleTensor) Vector() []float64 {
	return t.v
}

// Descriptor returns the annotation of the tensor.
func (t *SimpleTensor) Descriptor() string {
	return t.descriptor
}
