package tensor

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTensor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Tensor Suite")
}

var _ = Describe("CPU Operator", func() {
	var to *CPUOperator

	BeforeEach(func() {
		to = &CPUOperator{}
	})

	It("should create tensors", func() {
		t := to.Create([]int{2, 3})

		Expect(t.Dim()).To(Equal(2))
		Expect(t.NumElement()).To(Equal(6))
		Expect(t.Vector()).To(Equal([]float64{0, 0, 0, 0, 0, 0}))
	})

	It("should create tensors with data", func() {
		t := to.CreateWithData([]float64{1, 2, 3, 4}, []int{2, 2}, "t")

		Expect(t.Size()).To(Equal([]int{2, 2}))
		Expect(t.Vector()).To(Equal([]float64{1, 2, 3, 4}))
		Expect(t.Descriptor()).To(Equal("t"))
	})

	It("should slice tensors as views", func() {
		t := to.CreateWithData([]float64{1, 2, 3, 4}, []int{4}, "")

		s := to.Slice(t, 1, 3)
		Expect(s.Vector()).To(Equal([]float64{2, 3}))

		s.Vector()[0] = 9
		Expect(t.Vector()[1]).To(Equal(9.0))
	})

	It("should repeat tensors", func() {
		t := to.CreateWithData([]float64{1, 2}, []int{2}, "")

		r := to.Repeat(t, 3)

		Expect(r.Vector()).To(Equal([]float64{1, 2, 1, 2, 1, 2}))
	})

	It("should calculate gemm", func() {
		a := to.CreateWithData([]float64{1, 2, 3, 4, 5, 6}, []int{2, 3}, "a")
		b := to.CreateWithData([]float64{1, 2, 3, 4, 5, 6}, []int{3, 2}, "b")
		c := to.CreateWithData([]float64{1, 1, 1, 1}, []int{2, 2}, "c")

		out := to.Gemm(false, false, 1, 1, a, b, c)

		Expect(out.Size()).To(Equal([]int{2, 2}))
		Expect(out.Vector()).To(Equal([]float64{23, 29, 50, 65}))
	})

	It("should calculate gemm with transpose", func() {
		a := to.CreateWithData([]float64{1, 2, 3, 4, 5, 6}, []int{3, 2}, "a")
		b := to.CreateWithData([]float64{1, 2, 3, 4, 5, 6}, []int{3, 2}, "b")
		c := to.Zeros([]int{2, 2})

		out := to.Gemm(true, false, 1, 0, a, b, c)

		Expect(out.Vector()).To(Equal([]float64{35, 44, 44, 56}))
	})

	It("should transpose tensors", func() {
		t := to.CreateWithData([]float64{1, 2, 3, 4, 5, 6}, []int{2, 3}, "")

		out := to.Transpose(t, []int{1, 0})

		Expect(out.Size()).To(Equal([]int{3, 2}))
		Expect(out.Vector()).To(Equal([]float64{1, 4, 2, 5, 3, 6}))
	})

	It("should sum along axes", func() {
		t := to.CreateWithData([]float64{1, 2, 3, 4, 5, 6}, []int{2, 3}, "")

		out := to.Sum(t, []int{0})

		Expect(out.Size()).To(Equal([]int{3}))
		Expect(out.Vector()).To(Equal([]float64{5, 7, 9}))
	})

	It("should calculate softmax rows that sum to 1", func() {
		t := to.CreateWithData(
			[]float64{1, 2, 3, -1, 0, 1},
			[]int{2, 3}, "")

		out := to.Softmax(t)

		row1 := out.Vector()[0:3]
		row2 := out.Vector()[3:6]
		Expect(row1[0] + row1[1] + row1[2]).To(BeNumerically("~", 1.0, 1e-12))
		Expect(row2[0] + row2[1] + row2[2]).To(BeNumerically("~", 1.0, 1e-12))
		Expect(row1[2]).To(BeNumerically(">", row1[0]))
	})

	It("should gather rows", func() {
		t := to.CreateWithData(
			[]float64{1, 2, 3, 4, 5, 6},
			[]int{3, 2}, "")

		out := to.Gather(t, []int{2, 0})

		Expect(out.Size()).To(Equal([]int{2, 2}))
		Expect(out.Vector()).To(Equal([]float64{5, 6, 1, 2}))
	})

	It("should scatter-add rows", func() {
		dst := to.Zeros([]int{3, 2})
		src := to.CreateWithData([]float64{1, 1, 2, 2, 3, 3}, []int{3, 2}, "")

		to.ScatterAdd(dst, []int{1, 1, 0}, src)

		Expect(dst.Vector()).To(Equal([]float64{3, 3, 3, 3, 0, 0}))
	})

	It("should run Adam updates that reduce the parameter", func() {
		params := to.CreateWithData([]float64{1.0}, []int{1}, "p")
		grads := to.CreateWithData([]float64{0.5}, []int{1}, "g")
		v := to.Zeros([]int{1})
		s := to.Zeros([]int{1})

		to.Adam(params, grads, v, s, 0.9, 0.999, 0.01)

		Expect(params.Vector()[0]).To(BeNumerically("<", 1.0))
		Expect(v.Vector()[0]).To(BeNumerically("~", 0.05, 1e-12))
	})
})
