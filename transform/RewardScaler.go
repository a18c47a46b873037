package transform

import "math"

// RewardScaler divides rewards by the running standard deviation of
// all rewards it has seen. Until two rewards have been seen, rewards
// are not scaled.
type RewardScaler struct {
	count int
	mean  float64
	m2    float64 // Sum of squared deviations from the mean
}

// NewRewardScaler returns a new RewardScaler
func NewRewardScaler() *RewardScaler {
	return &RewardScaler{}
}

// ScaleRewards updates the running statistics with rewards and returns
// the rewards scaled by the updated standard deviation
func (r *RewardScaler) ScaleRewards(rewards []float64) []float64 {
	for _, reward := range rewards {
		r.count++
		delta := reward - r.mean
		r.mean += delta / float64(r.count)
		r.m2 += delta * (reward - r.mean)
	}

	std := r.StdDev()
	scaled := make([]float64, len(rewards))
	for i, reward := range rewards {
		scaled[i] = reward / (std + scaleEpsilon)
	}
	return scaled
}

// StdDev returns the unbiased standard deviation of all rewards seen,
// or 1 if fewer than two rewards have been seen
func (r *RewardScaler) StdDev() float64 {
	if r.count < 2 {
		return 1
	}
	return math.Sqrt(r.m2 / float64(r.count-1))
}

// Count returns the number of rewards seen
func (r *RewardScaler) Count() int {
	return r.count
}
