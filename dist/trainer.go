package dist

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sarchlab/gnnbench/datasets"
	"github.com/sarchlab/gnnbench/graph"
	"github.com/sarchlab/gnnbench/tensor"
	"github.com/sarchlab/gnnbench/training"
	"github.com/sarchlab/gnnbench/training/optimization"
)

// Config configures a data-parallel training run.
type Config struct {
	// Model selects the network, either "gat" or "sage".
	Model     string
	HiddenDim int

	// Heads holds the per-layer attention head counts of the GAT model.
	// It is ignored by the SAGE model.
	Heads []int

	Epochs    int
	BatchSize int

	// InferenceBatchSize is the batch size of the layer-wise inference
	// pass. It defaults to 1024.
	InferenceBatchSize int

	// Fanouts holds the per-layer neighbor sampling fanouts. It must have
	// one entry per network layer.
	Fanouts []int

	LR          float64
	WeightDecay float64

	// NumWorkers is the number of sampling goroutines per device. Zero
	// samples on the training goroutine itself.
	NumWorkers int

	// DeviceIDs lists the devices to train on. One worker goroutine holds
	// a model replica per device.
	DeviceIDs []int

	Seed int64
}

// An EpochStat records the training metrics of one epoch.
type EpochStat struct {
	Epoch    int
	Loss     float64
	Accuracy float64
	Seconds  float64
}

// A Result summarizes a training run.
type Result struct {
	Epochs          []EpochStat
	AvgEpochSeconds float64
	Throughput      float64
	TestAccuracy    float64
}

// A Trainer trains one model replica per device. The replicas start from
// the same parameters and average their gradients every step, so they
// stay identical throughout the run.
type Trainer struct {
	dataset *datasets.Dataset
	config  Config
	log     io.Writer

	networks  []training.Network
	operators []*tensor.CPUOperator
}

// NewTrainer creates a trainer. Zero-valued hyper-parameters fall back to
// the defaults of the reference model.
func NewTrainer(d *datasets.Dataset, config Config, log io.Writer) *Trainer {
	if len(config.DeviceIDs) == 0 {
		panic("at least one device must be selected")
	}
	if config.Epochs <= 0 {
		panic("the number of epochs must be positive")
	}

	if config.BatchSize == 0 {
		config.BatchSize = 1000
	}
	if config.InferenceBatchSize == 0 {
		config.InferenceBatchSize = 1024
	}
	if len(config.Fanouts) == 0 {
		config.Fanouts = []int{10, 10, 10}
	}
	if config.LR == 0 {
		config.LR = 0.003
	}
	if config.WeightDecay == 0 {
		config.WeightDecay = 5e-4
	}
	if log == nil {
		log = io.Discard
	}

	return &Trainer{
		dataset: d,
		config:  config,
		log:     log,
	}
}

// Networks returns the per-device model replicas. It is only meaningful
// after Run.
func (t *Trainer) Networks() []training.Network {
	return t.networks
}

// Run trains the model and finishes with a layer-wise inference pass over
// the full graph that produces the test accuracy.
func (t *Trainer) Run() *Result {
	world := len(t.config.DeviceIDs)
	comm := NewCommunicator(world)

	t.buildReplicas(world)

	if len(t.config.Fanouts) != t.networks[0].NumLayers() {
		panic("the number of fanouts must match the number of layers")
	}

	trainShards, valShards := t.buildShards(world)

	// Every rank runs the same number of steps per epoch so that the
	// gradient reductions line up. Ranks whose shard is exhausted keep
	// participating with zero gradients.
	shardMax := (len(t.dataset.TrainIdx) + world - 1) / world
	steps := (shardMax + t.config.BatchSize - 1) / t.config.BatchSize

	numNodes := t.dataset.Graph.NumNodes
	buffers := make([][]float64, t.networks[0].NumLayers())
	for i, l := range t.networks[0].Layers {
		buffers[i] = make([]float64, numNodes*l.OutputWidth())
	}

	res := &Result{}

	var wg sync.WaitGroup
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			t.work(rank, comm, steps,
				trainShards[rank], valShards[rank], buffers, res)
		}(rank)
	}
	wg.Wait()

	t.testAccuracy(buffers, res)

	return res
}

func (t *Trainer) buildReplicas(world int) {
	t.networks = make([]training.Network, world)
	t.operators = make([]*tensor.CPUOperator, world)

	// Every replica is built from the same seed, so the ranks start from
	// identical parameters without a broadcast.
	for r := 0; r < world; r++ {
		t.operators[r] = &tensor.CPUOperator{}
		t.networks[r] = training.NewNetwork(
			t.operators[r], t.config.Model, t.dataset,
			t.config.HiddenDim, t.config.Heads, t.config.Seed)
		t.networks[r].Randomize()
	}
}

func (t *Trainer) buildShards(world int) (train, val []*graph.DataLoader) {
	trainMaster := graph.NewDataLoader(
		t.dataset.TrainIdx, t.config.BatchSize, true, t.config.Seed)
	valMaster := graph.NewDataLoader(
		t.dataset.ValIdx, t.config.BatchSize, false, t.config.Seed+1)

	for r := 0; r < world; r++ {
		train = append(train, trainMaster.Shard(r, world))
		val = append(val, valMaster.Shard(r, world))
	}

	return train, val
}

func (t *Trainer) work(
	rank int,
	comm *Communicator,
	steps int,
	trainLoader, valLoader *graph.DataLoader,
	buffers [][]float64,
	res *Result,
) {
	to := t.operators[rank]
	net := t.networks[rank]

	numWorkers := t.config.NumWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}
	samplers := make([]*graph.NeighborSampler, numWorkers)
	for w := range samplers {
		samplers[w] = graph.NewNeighborSampler(t.config.Fanouts,
			t.config.Seed+int64(1000*(rank+1)+w))
	}
	evalSampler := graph.NewNeighborSampler(
		t.config.Fanouts, t.config.Seed+int64(1000*(rank+1))+500)

	lossFunc := training.NewSoftmaxCrossEntropy(to)
	adam := optimization.NewAdam(to, t.config.LR, t.config.WeightDecay)

	totalSeconds := 0.0
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		start := time.Now()

		loss, batches := t.trainEpoch(
			comm, steps, net, to, samplers, trainLoader, lossFunc, adam)
		correct, seen := t.evaluate(net, to, evalSampler, valLoader)

		stats := []float64{
			loss, float64(batches), correct, seen,
			time.Since(start).Seconds(),
		}
		comm.AllReduceSum(stats)

		if rank == 0 {
			meanLoss := 0.0
			if stats[1] > 0 {
				meanLoss = stats[0] / stats[1]
			}
			accuracy := 0.0
			if stats[3] > 0 {
				accuracy = stats[2] / stats[3]
			}

			// Epoch time is the mean over the ranks.
			seconds := stats[4] / float64(comm.World())

			fmt.Fprintf(t.log,
				"Epoch %05d | Loss %.4f | Accuracy %.4f | Time %.4f\n",
				epoch, meanLoss, accuracy, seconds)

			res.Epochs = append(res.Epochs, EpochStat{
				Epoch:    epoch,
				Loss:     meanLoss,
				Accuracy: accuracy,
				Seconds:  seconds,
			})
			totalSeconds += seconds
		}
	}

	if rank == 0 {
		avg := totalSeconds / float64(t.config.Epochs)
		res.AvgEpochSeconds = avg
		res.Throughput = float64(len(t.dataset.TrainIdx)) / avg

		fmt.Fprintf(t.log, "Avg epoch time: %.4f, Throughput: %.4f\n",
			avg, res.Throughput)
	}

	t.inferLayerwise(rank, comm, net, to, buffers)
}

// A miniBatch is a seed set with its sampled message-flow blocks.
type miniBatch struct {
	seeds  []int
	blocks []*graph.Block
}

func (t *Trainer) trainEpoch(
	comm *Communicator,
	steps int,
	net training.Network,
	to tensor.Operator,
	samplers []*graph.NeighborSampler,
	loader *graph.DataLoader,
	lossFunc *training.SoftmaxCrossEntropy,
	adam *optimization.Adam,
) (loss float64, batches int) {
	net.SetTraining(true)
	loader.Reset()

	var seedSets [][]int
	for {
		batch := loader.NextBatch()
		if batch == nil {
			break
		}
		seedSets = append(seedSets, append([]int{}, batch...))
	}

	sampled := t.sampleBatches(samplers, seedSets)

	for step := 0; step < steps; step++ {
		if step < len(seedSets) {
			mb := <-sampled

			input := t.dataset.FeatureTensor(to, mb.blocks[0].SrcNodes)
			output := net.Forward(mb.blocks, input)

			batchLoss, grad := lossFunc.Loss(
				output, t.dataset.LabelsOf(mb.seeds))
			net.Backward(mb.blocks, grad)

			loss += batchLoss
			batches++
		} else {
			for _, l := range net.Layers {
				to.Clear(l.Gradients())
			}
		}

		for _, l := range net.Layers {
			comm.AllReduceMean(l.Gradients().Vector())
			adam.UpdateParameters(l)
		}
	}

	return loss, batches
}

// sampleBatches fans the seed sets out over the sampling workers. The
// mini-batches arrive in completion order, which is fine because the
// gradients of a shuffled epoch are order-free anyway.
func (t *Trainer) sampleBatches(
	samplers []*graph.NeighborSampler,
	seedSets [][]int,
) <-chan *miniBatch {
	jobs := make(chan []int, len(seedSets))
	for _, s := range seedSets {
		jobs <- s
	}
	close(jobs)

	out := make(chan *miniBatch, len(seedSets))

	var wg sync.WaitGroup
	for _, sampler := range samplers {
		wg.Add(1)
		go func(sampler *graph.NeighborSampler) {
			defer wg.Done()
			for seeds := range jobs {
				out <- &miniBatch{
					seeds:  seeds,
					blocks: sampler.Sample(t.dataset.Graph, seeds),
				}
			}
		}(sampler)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func (t *Trainer) evaluate(
	net training.Network,
	to tensor.Operator,
	sampler *graph.NeighborSampler,
	loader *graph.DataLoader,
) (correct, seen float64) {
	net.SetTraining(false)
	loader.Reset()

	for {
		batch := loader.NextBatch()
		if batch == nil {
			break
		}

		blocks := sampler.Sample(t.dataset.Graph, batch)
		input := t.dataset.FeatureTensor(to, blocks[0].SrcNodes)
		output := net.Forward(blocks, input)

		accuracy := training.Accuracy(output, t.dataset.LabelsOf(batch))
		correct += accuracy * float64(len(batch))
		seen += float64(len(batch))
	}

	return correct, seen
}

func (t *Trainer) testAccuracy(buffers [][]float64, res *Result) {
	if len(t.dataset.TestIdx) == 0 {
		return
	}

	logits := buffers[len(buffers)-1]
	numClasses := t.networks[0].Layers[len(buffers)-1].OutputWidth()

	correct := 0
	for _, n := range t.dataset.TestIdx {
		row := logits[n*numClasses : (n+1)*numClasses]

		best := 0
		for c, v := range row {
			if v > row[best] {
				best = c
			}
		}

		if best == t.dataset.Labels[n] {
			correct++
		}
	}

	res.TestAccuracy = float64(correct) / float64(len(t.dataset.TestIdx))
	fmt.Fprintf(t.log, "Test accuracy %.4f\n", res.TestAccuracy)
}
