// Package seqcounter implements the saturating and circular sequence
// counters used to number coded packets and blocks.
package seqcounter

import "github.com/pkg/errors"

// ErrOverflow is returned by Counter.Next once the counter has already
// produced its maximum value.
var ErrOverflow = errors.New("seqcounter: overflow")

// ErrDomainMismatch is returned when two counters with different max
// values are compared.
var ErrDomainMismatch = errors.New("seqcounter: domain mismatch")

// Counter produces 0, 1, ..., Max() and then fails with ErrOverflow.
type Counter struct {
	max        uint32
	next       uint32
	overflowed bool
}

// NewCounter builds a counter that saturates at max.
func NewCounter(max uint32) *Counter {
	return &Counter{max: max}
}

// Max returns the counter's configured maximum value.
func (c *Counter) Max() uint32 { return c.max }

// Next returns the next value and advances the counter, or
// ErrOverflow if the counter has already produced Max().
func (c *Counter) Next() (uint32, error) {
	if c.overflowed {
		return 0, ErrOverflow
	}
	n := c.next
	if n == c.max {
		c.overflowed = true
	} else {
		c.next++
	}
	return n, nil
}

// Last returns the most recently produced value. Before the first
// call to Next it returns 0.
func (c *Counter) Last() uint32 {
	if c.overflowed {
		return c.max
	}
	if c.next == 0 {
		return 0
	}
	return c.next - 1
}

// Reset returns the counter to its initial state.
func (c *Counter) Reset() {
	c.next = 0
	c.overflowed = false
}

// CircularCounter wraps modulo Max()+1 instead of saturating.
type CircularCounter struct {
	max  uint32
	next uint32
	// loopedOnce distinguishes "never produced a value" from "wrapped
	// back to the initial value" when computing Last().
	loopedOnce bool
}

// NewCircularCounter builds a circular counter modulo max+1.
func NewCircularCounter(max uint32) *CircularCounter {
	return &CircularCounter{max: max}
}

// Max returns the counter's modulus minus one.
func (c *CircularCounter) Max() uint32 { return c.max }

// Next returns the next value, wrapping to 0 after Max().
func (c *CircularCounter) Next() uint32 {
	n := c.next
	if n == c.max {
		c.loopedOnce = true
		c.next = 0
	} else {
		c.next++
	}
	return n
}

// Last returns the most recently produced value.
func (c *CircularCounter) Last() uint32 {
	if c.next == 0 {
		if c.loopedOnce {
			return c.max
		}
		return 0
	}
	return c.next - 1
}

// Set forces the counter's Last() to value by fast-forwarding Next().
func (c *CircularCounter) Set(value uint32) error {
	if value > c.max {
		return errors.New("seqcounter: value exceeds max")
	}
	c.next = value
	c.loopedOnce = true
	c.Next()
	return nil
}

// Reset returns the counter to its initial state.
func (c *CircularCounter) Reset() {
	c.next = 0
	c.loopedOnce = false
}

// ForwardDistance returns (other.Last() - c.Last()) mod (Max()+1), the
// number of increments needed to go from c's last value to other's.
func (c *CircularCounter) ForwardDistance(other *CircularCounter) (uint32, error) {
	if c.max != other.max {
		return 0, ErrDomainMismatch
	}
	modulus := uint64(c.max) + 1
	a, b := uint64(c.Last()), uint64(other.Last())
	if b >= a {
		return uint32(b - a), nil
	}
	return uint32(modulus - a + b), nil
}

// Window is half of the modulus, the threshold past which a forward
// distance is considered stale rather than recent.
func (c *CircularCounter) Window() uint32 {
	return (c.max + 1) / 2
}

// IsAfter reports whether c comes strictly after other within the
// window, i.e. 0 < ForwardDistance(other, c) <= Window().
func (c *CircularCounter) IsAfter(other *CircularCounter) (bool, error) {
	d, err := other.ForwardDistance(c)
	if err != nil {
		return false, err
	}
	return d > 0 && d <= c.Window(), nil
}
