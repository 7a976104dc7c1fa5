// Package runner wires benchmarks to the command-line flags shared by
// all the samples.
package runner

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tebeka/atexit"
)

var (
	gpuFlag = flag.String("gpu", "0",
		"The comma-separated IDs of the devices to train on.")
	verifyFlag = flag.Bool("verify", false,
		"Verify the result after running the benchmark.")
)

// A Benchmark is a workload the runner can execute.
type Benchmark interface {
	SelectGPU(gpuIDs []int)
	Run()
	Verify()
}

// A Runner runs benchmarks on the selected devices.
type Runner struct {
	Verify bool

	gpuIDs     []int
	benchmarks []Benchmark
	start      time.Time
}

// ParseFlag applies the runner's command-line flags. The flags must have
// been parsed already.
func (r *Runner) ParseFlag() *Runner {
	r.Verify = *verifyFlag
	r.gpuIDs = ParseIDList(*gpuFlag)

	return r
}

// Init prepares the runner and registers the exit-time report.
func (r *Runner) Init() *Runner {
	r.start = time.Now()

	atexit.Register(func() {
		fmt.Printf("Total time: %.4f\n", time.Since(r.start).Seconds())
	})

	return r
}

// GPUIDs returns the devices the runner was asked to use.
func (r *Runner) GPUIDs() []int {
	return r.gpuIDs
}

// AddBenchmark adds a benchmark to run.
func (r *Runner) AddBenchmark(b Benchmark) {
	b.SelectGPU(r.gpuIDs)
	r.benchmarks = append(r.benchmarks, b)
}

// Run runs all the added benchmarks and exits.
func (r *Runner) Run() {
	for _, b := range r.benchmarks {
		b.Run()
		if r.Verify {
			b.Verify()
		}
	}

	atexit.Exit(0)
}

// ParseIDList parses a comma-separated integer list like "0,1,2".
func ParseIDList(s string) []int {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.Atoi(part)
		if err != nil {
			panic("invalid ID list " + s)
		}
		ids = append(ids, id)
	}

	return ids
}
