package trajectory

// Transition is a single step of agent-environment interaction as
// collected by a rollout. LogProb is the log-probability of Action
// under the policy that selected it, recorded at collection time.
type Transition struct {
	State     []float64
	Action    []float64
	LogProb   float64
	Reward    float64
	NextState []float64
	Done      bool
}

// Batch is a collection of transitions stored row-major so that each
// field can be used directly as the backing data of a tensor. Row i of
// States is States[i*StateDims : (i+1)*StateDims].
type Batch struct {
	Size       int
	StateDims  int
	ActionDims int

	States     []float64
	Actions    []float64
	LogProbs   []float64
	Rewards    []float64
	NextStates []float64
	Dones      []bool
}

// State returns the state of the ith transition in the batch
func (b Batch) State(i int) []float64 {
	return b.States[i*b.StateDims : (i+1)*b.StateDims]
}

// NextState returns the next state of the ith transition in the batch
func (b Batch) NextState(i int) []float64 {
	return b.NextStates[i*b.StateDims : (i+1)*b.StateDims]
}

// Action returns the action of the ith transition in the batch
func (b Batch) Action(i int) []float64 {
	return b.Actions[i*b.ActionDims : (i+1)*b.ActionDims]
}

// Masks returns 1 - done for each transition in the batch
func (b Batch) Masks() []float64 {
	masks := make([]float64, b.Size)
	for i, done := range b.Dones {
		if !done {
			masks[i] = 1.0
		}
	}
	return masks
}
