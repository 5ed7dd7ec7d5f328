// Package soliton implements the Ideal Soliton and Robust Soliton
// degree distributions used to pick how many input symbols are mixed
// into each coded symbol.
package soliton

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// ErrInvalidK is returned when a distribution is built over a
// non-positive input block size.
var ErrInvalidK = errors.New("soliton: K must be positive")

// IdealPMF returns the Ideal Soliton probability mass at degree d for
// an input block of K symbols: 1/K at d=1, 1/(d*(d-1)) for 2<=d<=K,
// and 0 outside [1,K].
func IdealPMF(K, d int) float64 {
	switch {
	case d == 1:
		return 1 / float64(K)
	case d >= 2 && d <= K:
		return 1 / (float64(d) * float64(d-1))
	default:
		return 0
	}
}

// RobustS returns the Robust Soliton ripple-size parameter
// S = c * ln(K/delta) * sqrt(K).
func RobustS(K int, c, delta float64) float64 {
	return c * math.Log(float64(K)/delta) * math.Sqrt(float64(K))
}

// RobustPivot returns the degree K/S (rounded to the nearest integer)
// at which the Robust Soliton distribution places its spike.
func RobustPivot(K int, c, delta float64) int {
	s := RobustS(K, c, delta)
	return int(math.Round(float64(K) / s))
}

// robustTau returns the Robust Soliton correction term tau(d), the
// extra mass added on top of the Ideal Soliton to guarantee, with high
// probability, a ripple large enough to keep the decoder running.
func robustTau(K int, c, delta float64, d int) float64 {
	s := RobustS(K, c, delta)
	pivot := RobustPivot(K, c, delta)
	switch {
	case d >= 1 && d < pivot:
		return s / (float64(d) * float64(K))
	case d == pivot:
		return s * math.Log(s/delta) / float64(K)
	default:
		return 0
	}
}

// robustNormalizer returns Z, the sum over d=1..K of
// IdealPMF(K,d)+robustTau(K,c,delta,d), used to turn the unnormalized
// mu(d) = rho(d)+tau(d) into a proper probability mass function.
func robustNormalizer(K int, c, delta float64) float64 {
	z := 0.0
	for d := 1; d <= K; d++ {
		z += IdealPMF(K, d) + robustTau(K, c, delta, d)
	}
	return z
}

// RobustPMF returns the Robust Soliton probability mass at degree d:
// (IdealPMF(K,d) + tau(d)) / Z.
func RobustPMF(K int, c, delta float64, d int) float64 {
	if d < 1 || d > K {
		return 0
	}
	z := robustNormalizer(K, c, delta)
	return (IdealPMF(K, d) + robustTau(K, c, delta, d)) / z
}

// Sampler draws degrees in [1,K] from a fixed probability mass
// function via inverse transform sampling over its cumulative
// distribution, mirroring std::discrete_distribution's behavior in
// the original C++ engine.
type Sampler struct {
	k    int
	cdf  []float64 // cdf[i] = P(degree <= i+1)
}

// NewSampler builds a sampler over degrees 1..K using the given pmf
// function. pmf need not already sum to exactly 1; the cumulative
// distribution is built from whatever values pmf returns and the
// final entry is normalized to 1 to absorb floating-point drift.
func NewSampler(K int, pmf func(d int) float64) (*Sampler, error) {
	if K <= 0 {
		return nil, ErrInvalidK
	}
	cdf := make([]float64, K)
	sum := 0.0
	for d := 1; d <= K; d++ {
		sum += pmf(d)
		cdf[d-1] = sum
	}
	if sum > 0 {
		for i := range cdf {
			cdf[i] /= sum
		}
	}
	return &Sampler{k: K, cdf: cdf}, nil
}

// NewIdealSampler builds a sampler over the Ideal Soliton distribution
// for block size K.
func NewIdealSampler(K int) (*Sampler, error) {
	return NewSampler(K, func(d int) float64 { return IdealPMF(K, d) })
}

// NewRobustSampler builds a sampler over the Robust Soliton
// distribution with the given (K, c, delta) parameters.
func NewRobustSampler(K int, c, delta float64) (*Sampler, error) {
	return NewSampler(K, func(d int) float64 {
		return IdealPMF(K, d) + robustTau(K, c, delta, d)
	})
}

// K returns the degree domain's upper bound.
func (s *Sampler) K() int { return s.k }

// Sample draws a single degree in [1,K] using rng.
func (s *Sampler) Sample(rng *rand.Rand) int {
	u := rng.Float64()
	i := sort.Search(len(s.cdf), func(i int) bool { return s.cdf[i] >= u })
	if i >= len(s.cdf) {
		i = len(s.cdf) - 1
	}
	return i + 1
}
