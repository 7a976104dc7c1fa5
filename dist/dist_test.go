package dist

import (
	"bytes"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gnnbench/datasets"
)

func TestDist(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dist Suite")
}

var _ = Describe("Communicator", func() {
	It("should sum the buffers of every rank", func() {
		comm := NewCommunicator(3)

		results := make([][]float64, 3)
		var wg sync.WaitGroup
		for r := 0; r < 3; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()
				data := []float64{float64(r), 1}
				comm.AllReduceSum(data)
				results[r] = data
			}(r)
		}
		wg.Wait()

		for r := 0; r < 3; r++ {
			Expect(results[r]).To(Equal([]float64{3, 3}))
		}
	})

	It("should average the buffers of every rank", func() {
		comm := NewCommunicator(4)

		results := make([][]float64, 4)
		var wg sync.WaitGroup
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()
				data := []float64{float64(r)}
				comm.AllReduceMean(data)
				results[r] = data
			}(r)
		}
		wg.Wait()

		for r := 0; r < 4; r++ {
			Expect(results[r]).To(Equal([]float64{1.5}))
		}
	})

	It("should keep back-to-back rounds separate", func() {
		comm := NewCommunicator(2)

		first := make([][]float64, 2)
		second := make([][]float64, 2)
		var wg sync.WaitGroup
		for r := 0; r < 2; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()

				a := []float64{float64(r + 1)}
				comm.AllReduceSum(a)
				first[r] = a

				b := []float64{float64(10 * (r + 1))}
				comm.AllReduceSum(b)
				second[r] = b
			}(r)
		}
		wg.Wait()

		for r := 0; r < 2; r++ {
			Expect(first[r]).To(Equal([]float64{3}))
			Expect(second[r]).To(Equal([]float64{30}))
		}
	})

	It("should pass a barrier with a single rank", func() {
		comm := NewCommunicator(1)

		Expect(func() { comm.Barrier() }).ToNot(Panic())
	})
})

var _ = Describe("Trainer", func() {
	var d *datasets.Dataset

	BeforeEach(func() {
		cfg := datasets.DefaultSyntheticConfig()
		cfg.NumNodes = 200
		d = datasets.Synthetic(cfg)
	})

	It("should keep the replicas identical", func() {
		trainer := NewTrainer(d, Config{
			Model:     "gat",
			HiddenDim: 4,
			Heads:     []int{2, 1},
			Epochs:    2,
			BatchSize: 16,
			Fanouts:   []int{5, 5},
			DeviceIDs: []int{0, 1},
			Seed:      1,
		}, nil)

		res := trainer.Run()

		Expect(res.Epochs).To(HaveLen(2))
		Expect(res.Epochs[0].Seconds).To(BeNumerically(">", 0))

		nets := trainer.Networks()
		Expect(nets).To(HaveLen(2))
		for i := range nets[0].Layers {
			p0 := nets[0].Layers[i].Parameters().Vector()
			p1 := nets[1].Layers[i].Parameters().Vector()
			Expect(p1).To(Equal(p0))
		}
	})

	It("should log the epoch metrics and the test accuracy", func() {
		var buf bytes.Buffer
		trainer := NewTrainer(d, Config{
			Model:     "sage",
			HiddenDim: 8,
			Epochs:    1,
			BatchSize: 32,
			Fanouts:   []int{5, 5, 5},
			DeviceIDs: []int{0},
			Seed:      2,
		}, &buf)

		res := trainer.Run()

		Expect(buf.String()).To(ContainSubstring("Epoch 00000"))
		Expect(buf.String()).To(ContainSubstring("Avg epoch time"))
		Expect(buf.String()).To(ContainSubstring("Test accuracy"))
		Expect(res.TestAccuracy).To(BeNumerically(">=", 0))
		Expect(res.TestAccuracy).To(BeNumerically("<=", 1))
		Expect(res.Throughput).To(BeNumerically(">", 0))
	})

	It("should default the inference batch size to 1024", func() {
		trainer := NewTrainer(d, Config{
			Model:     "sage",
			Epochs:    1,
			DeviceIDs: []int{0},
		}, nil)

		Expect(trainer.config.InferenceBatchSize).To(Equal(1024))
	})

	It("should reject an empty device list", func() {
		Expect(func() {
			NewTrainer(d, Config{Model: "sage", Epochs: 1}, nil)
		}).To(Panic())
	})

	It("should reject fanouts that do not match the layers", func() {
		trainer := NewTrainer(d, Config{
			Model:     "sage",
			HiddenDim: 8,
			Epochs:    1,
			Fanouts:   []int{5, 5},
			DeviceIDs: []int{0},
		}, nil)

		Expect(func() { trainer.Run() }).To(Panic())
	})
})
