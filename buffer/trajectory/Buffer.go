// Package trajectory implements a bounded buffer of on-policy
// transitions from which randomized mini-batches can be drawn.
package trajectory

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Buffer is a fixed-capacity store of transitions. When the buffer is
// full, pushing a new transition evicts the oldest one, so the buffer
// always holds the most recent Capacity() transitions. Buffer is not
// safe for concurrent use.
type Buffer struct {
	capacity   int
	stateDims  int
	actionDims int

	// next is the position of the next write and size the number of
	// transitions stored. The oldest transition is at
	// (next - size) mod capacity.
	next int
	size int

	stateCache     []float64
	actionCache    []float64
	logProbCache   []float64
	rewardCache    []float64
	nextStateCache []float64
	doneCache      []bool

	source rand.Source
}

// New returns a new Buffer that stores at most capacity transitions
// with stateDims-dimensional states and actionDims-dimensional actions.
// The seed determines the order of sampled transitions.
func New(capacity, stateDims, actionDims int, seed uint64) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("new: capacity must be positive but got %v",
			capacity)
	}
	if stateDims <= 0 || actionDims <= 0 {
		return nil, fmt.Errorf("new: state and action dimensions must be "+
			"positive but got %v and %v", stateDims, actionDims)
	}

	return &Buffer{
		capacity:       capacity,
		stateDims:      stateDims,
		actionDims:     actionDims,
		stateCache:     make([]float64, capacity*stateDims),
		actionCache:    make([]float64, capacity*actionDims),
		logProbCache:   make([]float64, capacity),
		rewardCache:    make([]float64, capacity),
		nextStateCache: make([]float64, capacity*stateDims),
		doneCache:      make([]bool, capacity),
		source:         rand.NewSource(seed),
	}, nil
}

// Push adds a transition to the buffer, evicting the oldest transition
// if the buffer is full. The transition's data is copied.
//
// Push panics if the transition's states or action have the wrong
// number of dimensions.
func (b *Buffer) Push(t Transition) {
	if len(t.State) != b.stateDims || len(t.NextState) != b.stateDims {
		panic(fmt.Sprintf("push: illegal state length\n\twant(%v)"+
			"\n\thave(%v, %v)", b.stateDims, len(t.State), len(t.NextState)))
	}
	if len(t.Action) != b.actionDims {
		panic(fmt.Sprintf("push: illegal action length\n\twant(%v)"+
			"\n\thave(%v)", b.actionDims, len(t.Action)))
	}

	i := b.next
	copy(b.stateCache[i*b.stateDims:(i+1)*b.stateDims], t.State)
	copy(b.actionCache[i*b.actionDims:(i+1)*b.actionDims], t.Action)
	copy(b.nextStateCache[i*b.stateDims:(i+1)*b.stateDims], t.NextState)
	b.logProbCache[i] = t.LogProb
	b.rewardCache[i] = t.Reward
	b.doneCache[i] = t.Done

	b.next = (b.next + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Sample returns batchSize distinct transitions drawn uniformly at
// random without replacement. Sampling does not remove transitions
// from the buffer. If the buffer holds fewer than batchSize
// transitions, an error satisfying IsInsufficientData is returned.
func (b *Buffer) Sample(batchSize int) (Batch, error) {
	if batchSize <= 0 {
		return Batch{}, &Error{Op: "sample", Err: errInvalidBatchSize}
	}
	if b.size < batchSize {
		return Batch{}, &Error{
			Op: "sample",
			Err: fmt.Errorf("%w: requested %v transitions but only %v "+
				"are stored", errInsufficientData, batchSize, b.size),
		}
	}

	indices := make([]int, batchSize)
	sampleuv.WithoutReplacement(indices, b.size, b.source)

	return b.gather(indices), nil
}

// At returns the ith oldest transition in the buffer
func (b *Buffer) At(i int) Transition {
	if i < 0 || i >= b.size {
		panic(fmt.Sprintf("at: index %v out of range [0, %v)", i, b.size))
	}

	batch := b.gather([]int{i})
	return Transition{
		State:     batch.States,
		Action:    batch.Actions,
		LogProb:   batch.LogProbs[0],
		Reward:    batch.Rewards[0],
		NextState: batch.NextStates,
		Done:      batch.Dones[0],
	}
}

// gather copies the transitions at the argument logical indices into a
// Batch, where logical index 0 is the oldest stored transition
func (b *Buffer) gather(indices []int) Batch {
	n := len(indices)
	batch := Batch{
		Size:       n,
		StateDims:  b.stateDims,
		ActionDims: b.actionDims,
		States:     make([]float64, n*b.stateDims),
		Actions:    make([]float64, n*b.actionDims),
		LogProbs:   make([]float64, n),
		Rewards:    make([]float64, n),
		NextStates: make([]float64, n*b.stateDims),
		Dones:      make([]bool, n),
	}

	oldest := (b.next - b.size + b.capacity) % b.capacity
	for row, index := range indices {
		i := (oldest + index) % b.capacity

		copy(batch.States[row*b.stateDims:(row+1)*b.stateDims],
			b.stateCache[i*b.stateDims:(i+1)*b.stateDims])
		copy(batch.Actions[row*b.actionDims:(row+1)*b.actionDims],
			b.actionCache[i*b.actionDims:(i+1)*b.actionDims])
		copy(batch.NextStates[row*b.stateDims:(row+1)*b.stateDims],
			b.nextStateCache[i*b.stateDims:(i+1)*b.stateDims])
		batch.LogProbs[row] = b.logProbCache[i]
		batch.Rewards[row] = b.rewardCache[i]
		batch.Dones[row] = b.doneCache[i]
	}

	return batch
}

// Clear removes all transitions from the buffer
func (b *Buffer) Clear() {
	b.next = 0
	b.size = 0
}

// Len returns the number of transitions in the buffer
func (b *Buffer) Len() int {
	return b.size
}

// Capacity returns the maximum number of transitions the buffer holds
func (b *Buffer) Capacity() int {
	return b.capacity
}

// StateDims returns the dimension of states stored in the buffer
func (b *Buffer) StateDims() int {
	return b.stateDims
}

// ActionDims returns the dimension of actions stored in the buffer
func (b *Buffer) ActionDims() int {
	return b.actionDims
}
