package main

import (
	"flag"

	"github.com/sarchlab/gnnbench/benchmarks/nodeclassification"
	"github.com/sarchlab/gnnbench/samples/runner"
)

var (
	datasetName = flag.String("dataset_name", "ogb-products",
		"The dataset to train on.")
	datasetDir = flag.String("dataset_dir", "dataset",
		"The directory that holds the dataset files.")
	model = flag.String("model", "gat",
		"The model to train, gat or sage.")
	mode = flag.String("mode", "mixed",
		"The training mode, mixed, puregpu, or benchmark.")
	numEpochs = flag.Int("num_epochs", 20,
		"The number of training epochs.")
	hiddenDim = flag.Int("hidden_dim", 8,
		"The hidden feature width per head.")
	head = flag.String("head", "4,4,1",
		"The comma-separated attention head counts, one per layer.")
	numWorkers = flag.Int("num_workers", 0,
		"The number of sampling workers per device.")
	logDir = flag.String("log_dir", "",
		"The directory to append the run logs to.")
)

func main() {
	flag.Parse()

	r := new(runner.Runner).ParseFlag().Init()

	benchmark := nodeclassification.NewBenchmark(nodeclassification.Config{
		DatasetName: *datasetName,
		DatasetDir:  *datasetDir,
		Model:       *model,
		Mode:        *mode,
		Epochs:      *numEpochs,
		HiddenDim:   *hiddenDim,
		Heads:       runner.ParseIDList(*head),
		NumWorkers:  *numWorkers,
		LogDir:      *logDir,
	})

	r.AddBenchmark(benchmark)

	r.Run()
}
