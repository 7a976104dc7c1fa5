package datasets

import (
	"math/rand"

	"github.com/sarchlab/gnnbench/graph"
)

// SyntheticConfig controls the shape of a generated dataset.
type SyntheticConfig struct {
	NumNodes   int
	AvgDegree  int
	InDim      int
	NumClasses int
	Seed       int64

	// NoiseLevel controls how far the node features drift away from the
	// class signature. Larger values make the classification task harder.
	NoiseLevel float64
}

// DefaultSyntheticConfig returns the configuration used for dry runs.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		NumNodes:   1000,
		AvgDegree:  8,
		InDim:      16,
		NumClasses: 4,
		Seed:       1,
		NoiseLevel: 0.3,
	}
}

// Synthetic generates a random graph whose node features carry the class
// label as a noisy one-hot signature, so a model that learns anything at
// all beats chance accuracy on it.
func Synthetic(cfg SyntheticConfig) *Dataset {
	rng := rand.New(rand.NewSource(cfg.Seed))

	labels := make([]int, cfg.NumNodes)
	for v := range labels {
		labels[v] = rng.Intn(cfg.NumClasses)
	}

	features := make([]float64, cfg.NumNodes*cfg.InDim)
	for v := 0; v < cfg.NumNodes; v++ {
		for f := 0; f < cfg.InDim; f++ {
			features[v*cfg.InDim+f] = rng.NormFloat64() * cfg.NoiseLevel
		}
		features[v*cfg.InDim+labels[v]%cfg.InDim] += 1.0
	}

	numEdges := cfg.NumNodes * cfg.AvgDegree
	src := make([]int, numEdges)
	dst := make([]int, numEdges)
	for e := 0; e < numEdges; e++ {
		src[e] = rng.Intn(cfg.NumNodes)
		dst[e] = rng.Intn(cfg.NumNodes)
	}

	d := &Dataset{
		Name:     "synthetic",
		Graph:    graph.NewGraphFromEdges(cfg.NumNodes, src, dst),
		Features: features,
		InDim:    cfg.InDim,
		Labels:   labels,
	}

	// 60/20/20 split.
	for v := 0; v < cfg.NumNodes; v++ {
		switch {
		case v%5 < 3:
			d.TrainIdx = append(d.TrainIdx, v)
		case v%5 == 3:
			d.ValIdx = append(d.ValIdx, v)
		default:
			d.TestIdx = append(d.TestIdx, v)
		}
	}

	d.finalize()

	return d
}
