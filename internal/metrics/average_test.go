package metrics

import (
	"testing"
	"time"
)

func TestAverageCounterMean(t *testing.T) {
	var a AverageCounter
	if got := a.Mean(); got != 0 {
		t.Fatalf("Mean() on empty counter = %v, want 0", got)
	}
	a.Add(1)
	a.Add(2)
	a.Add(3)
	if got := a.Mean(); got != 2 {
		t.Fatalf("Mean() = %v, want 2", got)
	}
	if a.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", a.Count())
	}
}

func TestAverageCounterAddDuration(t *testing.T) {
	var a AverageCounter
	a.AddDuration(500 * time.Millisecond)
	a.AddDuration(1500 * time.Millisecond)
	if got := a.Mean(); got != 1.0 {
		t.Fatalf("Mean() = %v, want 1.0 second", got)
	}
}

func TestAverageCounterReset(t *testing.T) {
	var a AverageCounter
	a.Add(10)
	a.Reset()
	if a.Count() != 0 || a.Mean() != 0 {
		t.Fatal("Reset should clear count and mean")
	}
}
