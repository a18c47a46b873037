package policy

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DiagonalGaussian is a multivariate Gaussian distribution with a
// diagonal covariance matrix. Each dimension is an independent
// univariate Gaussian.
type DiagonalGaussian struct {
	dims []distuv.Normal
}

// NewDiagonalGaussian returns a new DiagonalGaussian with the given
// mean and standard deviation in each dimension. Samples are drawn
// using src.
func NewDiagonalGaussian(mean, stddev []float64,
	src rand.Source) (*DiagonalGaussian, error) {
	if len(mean) != len(stddev) {
		return nil, fmt.Errorf("newdiagonalgaussian: mean and standard "+
			"deviation dimensions differ: %v != %v", len(mean), len(stddev))
	}

	dims := make([]distuv.Normal, len(mean))
	for i := range mean {
		if stddev[i] <= 0 {
			return nil, fmt.Errorf("newdiagonalgaussian: standard deviation "+
				"must be positive but got %v in dimension %v", stddev[i], i)
		}
		dims[i] = distuv.Normal{Mu: mean[i], Sigma: stddev[i], Src: src}
	}

	return &DiagonalGaussian{dims: dims}, nil
}

// Sample draws a sample from the distribution
func (d *DiagonalGaussian) Sample() *mat.VecDense {
	sample := mat.NewVecDense(len(d.dims), nil)
	for i := range d.dims {
		sample.SetVec(i, d.dims[i].Rand())
	}
	return sample
}

// LogProb returns the log probability density of x, summed over each
// dimension
func (d *DiagonalGaussian) LogProb(x mat.Vector) float64 {
	if x.Len() != len(d.dims) {
		panic(fmt.Sprintf("logprob: illegal dimensions\n\twant(%v)"+
			"\n\thave(%v)", len(d.dims), x.Len()))
	}

	logProb := 0.0
	for i := range d.dims {
		logProb += d.dims[i].LogProb(x.AtVec(i))
	}
	return logProb
}

// Mean returns the mean of the distribution
func (d *DiagonalGaussian) Mean() *mat.VecDense {
	mean := mat.NewVecDense(len(d.dims), nil)
	for i := range d.dims {
		mean.SetVec(i, d.dims[i].Mu)
	}
	return mean
}

// StdDev returns the standard deviation of each dimension
func (d *DiagonalGaussian) StdDev() *mat.VecDense {
	std := mat.NewVecDense(len(d.dims), nil)
	for i := range d.dims {
		std.SetVec(i, d.dims[i].Sigma)
	}
	return std
}

// Entropy returns the mean entropy over each dimension of the
// distribution
func (d *DiagonalGaussian) Entropy() float64 {
	entropy := 0.0
	for i := range d.dims {
		entropy += d.dims[i].Entropy()
	}
	return entropy / float64(len(d.dims))
}
