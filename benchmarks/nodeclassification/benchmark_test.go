package nodeclassification

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestNodeClassification(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Node Classification Benchmark Suite")
}

var _ = Describe("Benchmark", func() {
	var config Config

	BeforeEach(func() {
		config = Config{
			DatasetName: "synthetic",
			Model:       "gat",
			Epochs:      1,
			HiddenDim:   4,
			Heads:       []int{2, 1},
			BatchSize:   32,
			Fanouts:     []int{5, 5},
			Seed:        1,
		}
	})

	It("should train and verify on a single device", func() {
		b := NewBenchmark(config)
		b.SelectGPU([]int{0})

		b.Run()
		b.Verify()

		Expect(b.Result().Epochs).To(HaveLen(1))
	})

	It("should train and verify on two devices", func() {
		b := NewBenchmark(config)
		b.SelectGPU([]int{0, 1})

		b.Run()
		b.Verify()

		Expect(b.Result().TestAccuracy).To(BeNumerically(">=", 0))
	})

	It("should append the run output to the log file", func() {
		dir := GinkgoT().TempDir()
		config.LogDir = dir

		b := NewBenchmark(config)
		b.SelectGPU([]int{0})
		b.Run()

		data, err := os.ReadFile(
			filepath.Join(dir, "synthetic_1x1_gat.log"))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("Test accuracy"))
	})

	It("should accept every training mode", func() {
		for _, mode := range []string{"mixed", "puregpu", "benchmark"} {
			config.Mode = mode

			Expect(func() { NewBenchmark(config) }).ToNot(Panic())
		}
	})

	It("should reject an unknown mode", func() {
		config.Mode = "distributed"

		Expect(func() { NewBenchmark(config) }).To(Panic())
	})

	It("should reject an empty device list", func() {
		b := NewBenchmark(config)

		Expect(func() { b.SelectGPU(nil) }).To(Panic())
	})
})
