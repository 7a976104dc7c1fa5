// The sweep sample runs the node-classification benchmark over a series
// of device counts, mirroring a scaling study. The default series trains
// GAT on ogb-products with 8, 4, 2, and 1 devices.
package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/sarchlab/gnnbench/benchmarks/nodeclassification"
	"github.com/sarchlab/gnnbench/samples/runner"
)

var (
	configFlag = flag.String("config", "",
		"A YAML file that lists the runs to execute instead of the "+
			"default series.")
	datasetDir = flag.String("dataset_dir", "dataset",
		"The directory that holds the dataset files.")
	logDir = flag.String("log_dir", "",
		"The directory to append the run logs to.")
)

// A Run is one benchmark invocation of the sweep.
type Run struct {
	DatasetName string `yaml:"dataset_name"`
	Model       string `yaml:"model"`
	GPU         string `yaml:"gpu"`
	NumEpochs   int    `yaml:"num_epochs"`
	HiddenDim   int    `yaml:"hidden_dim"`
	Head        string `yaml:"head"`
}

func defaultRuns() []Run {
	series := []string{"0,1,2,3,4,5,6,7", "0,1,2,3", "0,1", "0"}

	var runs []Run
	for _, gpu := range series {
		runs = append(runs, Run{
			DatasetName: "ogb-products",
			Model:       "gat",
			GPU:         gpu,
			NumEpochs:   20,
			HiddenDim:   8,
			Head:        "4,4,1",
		})
	}

	return runs
}

func loadRuns(path string) []Run {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var runs []Run
	err = yaml.Unmarshal(data, &runs)
	if err != nil {
		panic(err)
	}

	return runs
}

// execute runs one sweep entry, converting a panic anywhere in the run
// into a failure so that the remaining entries still execute.
func execute(run Run) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	b := nodeclassification.NewBenchmark(nodeclassification.Config{
		DatasetName: run.DatasetName,
		DatasetDir:  *datasetDir,
		Model:       run.Model,
		Epochs:      run.NumEpochs,
		HiddenDim:   run.HiddenDim,
		Heads:       runner.ParseIDList(run.Head),
		LogDir:      *logDir,
	})
	b.SelectGPU(runner.ParseIDList(run.GPU))

	b.Run()
	b.Verify()

	return nil
}

func main() {
	flag.Parse()

	runs := defaultRuns()
	if *configFlag != "" {
		runs = loadRuns(*configFlag)
	}

	failed := 0
	for i, run := range runs {
		fmt.Printf("Run %d/%d: %s on GPUs %s\n",
			i+1, len(runs), run.Model, run.GPU)

		if err := execute(run); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Run %d failed: %v\n", i+1, err)
		}
	}

	fmt.Printf("Finished %d runs, %d failed\n", len(runs), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
