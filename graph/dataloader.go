package graph

import "math/rand"

// A DataLoader iterates over a node-index set in batches. In data-parallel
// training every rank holds a shard of the full index set, so that the
// ranks together cover every index exactly once per epoch.
type DataLoader struct {
	indices   []int
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	cur       int
}

// NewDataLoader creates a data loader over the given indices.
func NewDataLoader(
	indices []int,
	batchSize int,
	shuffle bool,
	seed int64,
) *DataLoader {
	if batchSize <= 0 {
		panic("batch size must be positive")
	}

	return &DataLoader{
		indices:   append([]int{}, indices...),
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Shard returns a loader over the strided sub-set of the indices that
// belongs to the given rank. The shards of all the ranks are disjoint and
// together cover the full index set.
func (l *DataLoader) Shard(rank, world int) *DataLoader {
	if rank < 0 || rank >= world {
		panic("rank out of range")
	}

	shard := make([]int, 0, len(l.indices)/world+1)
	for i := rank; i < len(l.indices); i += world {
		shard = append(shard, l.indices[i])
	}

	return &DataLoader{
		indices:   shard,
		batchSize: l.batchSize,
		shuffle:   l.shuffle,
		rng:       rand.New(rand.NewSource(l.rng.Int63())),
	}
}

// NumIndices returns the number of indices the loader iterates over.
func (l *DataLoader) NumIndices() int {
	return len(l.indices)
}

// NumBatches returns the number of batches per epoch.
func (l *DataLoader) NumBatches() int {
	return (len(l.indices) + l.batchSize - 1) / l.batchSize
}

// NextBatch returns the indices of the next batch, or nil when the epoch
// is exhausted.
func (l *DataLoader) NextBatch() []int {
	if l.cur >= len(l.indices) {
		return nil
	}

	end := l.cur + l.batchSize
	if end > len(l.indices) {
		end = len(l.indices)
	}

	batch := l.indices[l.cur:end]
	l.cur = end

	return batch
}

// Reset rewinds the loader and reshuffles the indices if shuffling is
// enabled.
func (l *DataLoader) Reset() {
	l.cur = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.indices), func(i, j int) {
			l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
		})
	}
}
