package datasets

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gnnbench/tensor"
)

func TestDatasets(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Datasets Suite")
}

var _ = Describe("Synthetic Dataset", func() {
	It("should generate a consistent dataset", func() {
		cfg := DefaultSyntheticConfig()
		cfg.NumNodes = 200

		d := Synthetic(cfg)

		Expect(d.Graph.NumNodes).To(Equal(200))
		Expect(d.Labels).To(HaveLen(200))
		Expect(d.Features).To(HaveLen(200 * cfg.InDim))
		Expect(d.NumClasses).To(Equal(cfg.NumClasses))

		Expect(len(d.TrainIdx) + len(d.ValIdx) + len(d.TestIdx)).
			To(Equal(200))
	})

	It("should be deterministic for the same seed", func() {
		a := Synthetic(DefaultSyntheticConfig())
		b := Synthetic(DefaultSyntheticConfig())

		Expect(a.Features).To(Equal(b.Features))
		Expect(a.Labels).To(Equal(b.Labels))
	})

	It("should gather feature tensors", func() {
		d := Synthetic(DefaultSyntheticConfig())
		to := &tensor.CPUOperator{}

		t := d.FeatureTensor(to, []int{3, 7})

		Expect(t.Size()).To(Equal([]int{2, d.InDim}))
		Expect(t.Vector()[:d.InDim]).
			To(Equal(d.Features[3*d.InDim : 4*d.InDim]))
	})
})

var _ = Describe("OGB Loader", func() {
	var dir string

	writeFile := func(relPath, content string) {
		path := filepath.Join(dir, relPath)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	}

	writeGzipFile := func(relPath, content string) {
		path := filepath.Join(dir, relPath)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())

		f, err := os.Create(path)
		Expect(err).ToNot(HaveOccurred())
		gz := gzip.NewWriter(f)
		_, err = gz.Write([]byte(content))
		Expect(err).ToNot(HaveOccurred())
		Expect(gz.Close()).To(Succeed())
		Expect(f.Close()).To(Succeed())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()

		writeFile("tiny/raw/node-feat.csv",
			"1.0,0.0\n0.0,1.0\n0.5,0.5\n1.0,1.0\n")
		writeFile("tiny/raw/node-label.csv", "0\n1\n0\n1\n")
		writeFile("tiny/raw/edge.csv", "0,1\n1,2\n2,3\n3,0\n")
		writeFile("tiny/split/train.csv", "0\n1\n")
		writeFile("tiny/split/valid.csv", "2\n")
		writeFile("tiny/split/test.csv", "3\n")
	})

	It("should load a dataset from plain csv files", func() {
		d, err := LoadOGB("tiny", dir)

		Expect(err).ToNot(HaveOccurred())
		Expect(d.Graph.NumNodes).To(Equal(4))
		Expect(d.Graph.NumEdges()).To(Equal(4))
		Expect(d.InDim).To(Equal(2))
		Expect(d.NumClasses).To(Equal(2))
		Expect(d.TrainIdx).To(Equal([]int{0, 1}))
		Expect(d.ValIdx).To(Equal([]int{2}))
		Expect(d.TestIdx).To(Equal([]int{3}))
		Expect(d.Graph.InNeighbors(1)).To(Equal([]int{0}))
	})

	It("should load gzipped files", func() {
		writeGzipFile("gz/raw/node-feat.csv.gz", "1.0\n2.0\n")
		writeGzipFile("gz/raw/node-label.csv.gz", "0\n1\n")
		writeGzipFile("gz/raw/edge.csv.gz", "0,1\n")
		writeGzipFile("gz/split/train.csv.gz", "0\n")
		writeGzipFile("gz/split/valid.csv.gz", "1\n")
		writeGzipFile("gz/split/test.csv.gz", "1\n")

		d, err := LoadOGB("gz", dir)

		Expect(err).ToNot(HaveOccurred())
		Expect(d.Graph.NumNodes).To(Equal(2))
		Expect(d.InDim).To(Equal(1))
	})

	It("should report missing files", func() {
		_, err := LoadOGB("absent", dir)

		Expect(err).To(HaveOccurred())
	})

	It("should open synthetic datasets by name", func() {
		d, err := Open("synthetic", "")

		Expect(err).ToNot(HaveOccurred())
		Expect(d.Name).To(Equal("synthetic"))
	})
})
