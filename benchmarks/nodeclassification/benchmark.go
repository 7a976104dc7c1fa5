// Package nodeclassification implements the multi-device GNN
// node-classification training benchmark.
package nodeclassification

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sarchlab/gnnbench/datasets"
	"github.com/sarchlab/gnnbench/dist"
)

// Config configures the benchmark.
type Config struct {
	// DatasetName names the dataset, e.g. "ogb-products". The name
	// "synthetic" selects a small generated dataset.
	DatasetName string

	// DatasetDir is the directory that holds the dataset files.
	DatasetDir string

	// Model selects the network, either "gat" or "sage".
	Model string

	// Mode selects where the training data lives. "mixed", "puregpu",
	// and "benchmark" are accepted; they coincide on the CPU operator.
	Mode string

	Epochs    int
	HiddenDim int

	// Heads holds the per-layer attention head counts of the GAT model.
	Heads []int

	BatchSize          int
	InferenceBatchSize int
	Fanouts            []int
	LR                 float64
	WeightDecay        float64
	NumWorkers         int
	Seed               int64

	// LogDir, when set, makes the benchmark append the run output to a
	// per-configuration log file in that directory.
	LogDir string
}

// Benchmark trains a GNN on a node-classification dataset across the
// selected devices and reports the test accuracy.
type Benchmark struct {
	config  Config
	dataset *datasets.Dataset

	gpus []int

	trainer *dist.Trainer
	result  *dist.Result
}

// NewBenchmark creates a new benchmark. It loads the dataset eagerly so
// that a missing dataset fails before any device is touched.
func NewBenchmark(config Config) *Benchmark {
	b := new(Benchmark)

	if config.Model == "" {
		config.Model = "gat"
	}
	if config.Mode == "" {
		config.Mode = "mixed"
	}
	switch config.Mode {
	case "mixed", "puregpu", "benchmark":
	default:
		panic("unknown mode " + config.Mode)
	}

	b.config = config

	dataset, err := datasets.Open(config.DatasetName, config.DatasetDir)
	if err != nil {
		panic(err)
	}
	b.dataset = dataset

	return b
}

// SelectGPU selects the devices to train on.
func (b *Benchmark) SelectGPU(gpuIDs []int) {
	if len(gpuIDs) == 0 {
		panic("at least one GPU must be selected")
	}
	b.gpus = gpuIDs
}

// Run executes the benchmark.
func (b *Benchmark) Run() {
	out, closeLog := b.openLog()
	defer closeLog()

	fmt.Fprintf(out, "Training with %d devices: %v\n", len(b.gpus), b.gpus)

	b.trainer = dist.NewTrainer(b.dataset, dist.Config{
		Model:              b.config.Model,
		HiddenDim:          b.config.HiddenDim,
		Heads:              b.config.Heads,
		Epochs:             b.config.Epochs,
		BatchSize:          b.config.BatchSize,
		InferenceBatchSize: b.config.InferenceBatchSize,
		Fanouts:            b.config.Fanouts,
		LR:                 b.config.LR,
		WeightDecay:        b.config.WeightDecay,
		NumWorkers:         b.config.NumWorkers,
		DeviceIDs:          b.gpus,
		Seed:               b.config.Seed,
	}, out)

	b.result = b.trainer.Run()
}

// Result returns the metrics of the finished run.
func (b *Benchmark) Result() *dist.Result {
	return b.result
}

// Verify checks that the model replicas of all the devices ended the run
// with identical parameters.
func (b *Benchmark) Verify() {
	networks := b.trainer.Networks()

	for r := 1; r < len(networks); r++ {
		for i := range networks[0].Layers {
			p0 := networks[0].Layers[i].Parameters().Vector()
			pr := networks[r].Layers[i].Parameters().Vector()

			for j := range p0 {
				if p0[j] != pr[j] {
					panic(fmt.Sprintf(
						"replica %d diverged at layer %d", r, i))
				}
			}
		}
	}

	fmt.Println("Passed!")
}

// openLog returns the writer the run output goes to. With a log
// directory configured, the output is appended to a file named after the
// run configuration and mirrored to stdout.
func (b *Benchmark) openLog() (io.Writer, func()) {
	if b.config.LogDir == "" {
		return os.Stdout, func() {}
	}

	name := fmt.Sprintf("%s_1x%d_%s.log",
		b.config.DatasetName, len(b.gpus), b.config.Model)
	path := filepath.Join(b.config.LogDir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic(err)
	}

	return io.MultiWriter(os.Stdout, f), func() { f.Close() }
}
