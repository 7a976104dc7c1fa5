// Package dist runs data-parallel mini-batch training. One worker
// goroutine drives each selected device, and a communicator keeps the
// model replicas synchronized by averaging their gradients.
package dist

import "sync"

// A Communicator synchronizes a fixed-size group of ranks. Every rank
// must call the collective operations in the same order, like a process
// group would.
type Communicator struct {
	world int

	mu      sync.Mutex
	cond    *sync.Cond
	phase   int
	arrived int
	reading int
	sum     []float64
}

// NewCommunicator creates a communicator for the given number of ranks.
func NewCommunicator(world int) *Communicator {
	if world < 1 {
		panic("the world size must be at least 1")
	}

	c := &Communicator{world: world}
	c.cond = sync.NewCond(&c.mu)

	return c
}

// World returns the number of ranks in the group.
func (c *Communicator) World() int {
	return c.world
}

// Barrier blocks until every rank has reached it.
func (c *Communicator) Barrier() {
	c.allReduce(nil, false)
}

// AllReduceSum replaces the buffer of every rank with the element-wise
// sum of the buffers of all the ranks.
func (c *Communicator) AllReduceSum(data []float64) {
	c.allReduce(data, false)
}

// AllReduceMean replaces the buffer of every rank with the element-wise
// mean of the buffers of all the ranks.
func (c *Communicator) AllReduceMean(data []float64) {
	c.allReduce(data, true)
}

func (c *Communicator) allReduce(data []float64, mean bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A new round must not start before every rank has copied the result
	// of the previous one.
	for c.reading > 0 {
		c.cond.Wait()
	}

	if data != nil {
		if c.sum == nil {
			c.sum = make([]float64, len(data))
		}
		if len(c.sum) != len(data) {
			panic("all the ranks must reduce buffers of the same length")
		}
		for i, v := range data {
			c.sum[i] += v
		}
	}
	c.arrived++

	if c.arrived == c.world {
		if mean {
			inv := 1.0 / float64(c.world)
			for i := range c.sum {
				c.sum[i] *= inv
			}
		}
		c.arrived = 0
		c.reading = c.world
		c.phase++
		c.cond.Broadcast()
	} else {
		myPhase := c.phase
		for c.phase == myPhase {
			c.cond.Wait()
		}
	}

	if data != nil {
		copy(data, c.sum)
	}

	c.reading--
	if c.reading == 0 {
		c.sum = nil
		c.cond.Broadcast()
	}
}
