package optimization

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gnnbench/tensor"
)

func TestOptimization(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Optimization Suite")
}

type fakeLayer struct {
	params tensor.Tensor
	grads  tensor.Tensor
}

func (l *fakeLayer) Parameters() tensor.Tensor { return l.params }
func (l *fakeLayer) Gradients() tensor.Tensor  { return l.grads }

var _ = Describe("Adam", func() {
	var (
		to    *tensor.CPUOperator
		layer *fakeLayer
	)

	BeforeEach(func() {
		to = &tensor.CPUOperator{}
		layer = &fakeLayer{
			params: to.CreateWithData([]float64{1, -1}, []int{2}, "p"),
			grads:  to.CreateWithData([]float64{0.5, -0.5}, []int{2}, "g"),
		}
	})

	It("should move parameters against the gradient", func() {
		adam := NewAdam(to, 0.01, 0)

		adam.UpdateParameters(layer)

		p := layer.params.Vector()
		Expect(p[0]).To(BeNumerically("<", 1))
		Expect(p[1]).To(BeNumerically(">", -1))
	})

	It("should keep per-layer history", func() {
		adam := NewAdam(to, 0.01, 0)

		adam.UpdateParameters(layer)
		first := append([]float64{}, layer.params.Vector()...)

		adam.UpdateParameters(layer)
		second := layer.params.Vector()

		Expect(second[0]).To(BeNumerically("<", first[0]))
		Expect(adam.historyV).To(HaveLen(1))
	})

	It("should shrink weights with weight decay", func() {
		to.Init(layer.grads, []float64{0, 0})
		adam := NewAdam(to, 0.01, 0.1)

		adam.UpdateParameters(layer)

		p := layer.params.Vector()
		Expect(p[0]).To(BeNumerically("<", 1))
		Expect(p[1]).To(BeNumerically(">", -1))
	})

	It("should skip layers without parameters", func() {
		adam := NewAdam(to, 0.01, 0)
		empty := &fakeLayer{}

		Expect(func() {
			adam.UpdateParameters(empty)
		}).ToNot(Panic())
	})
})
