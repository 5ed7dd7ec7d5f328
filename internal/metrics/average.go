// Package metrics holds the engine's observability surface: simple
// running averages used internally by the codec layers, and the
// Prometheus collectors exported by the transport layer.
package metrics

import "time"

// AverageCounter is a running mean accumulator, used to track things
// like the average time spent running message passing per push. It
// is not safe for concurrent use.
type AverageCounter struct {
	count uint64
	sum   float64
}

// Add folds a new sample into the running mean.
func (a *AverageCounter) Add(sample float64) {
	a.count++
	a.sum += sample
}

// AddDuration is a convenience wrapper around Add for timing samples,
// recorded in fractional seconds.
func (a *AverageCounter) AddDuration(d time.Duration) {
	a.Add(d.Seconds())
}

// Mean returns the running average, or 0 if no sample was ever added.
func (a *AverageCounter) Mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// Count returns the number of samples folded into the average.
func (a *AverageCounter) Count() uint64 { return a.count }

// Reset clears the accumulator back to its zero state.
func (a *AverageCounter) Reset() {
	a.count = 0
	a.sum = 0
}
