package training

import "github.com/sarchlab/gnnbench/tensor"

// Accuracy returns the fraction of rows whose arg-max class matches the
// label.
func Accuracy(output tensor.Tensor, labels []int) float64 {
	size := output.Size()
	batchSize := size[0]
	numClasses := size[1]

	if batchSize == 0 {
		return 0
	}

	v := output.Vector()
	correct := 0
	for i := 0; i < batchSize; i++ {
		best := 0
		for c := 1; c < numClasses; c++ {
			if v[i*numClasses+c] > v[i*numClasses+best] {
				best = c
			}
		}
		if best == labels[i] {
			correct++
		}
	}

	return float64(correct) / float64(batchSize)
}
