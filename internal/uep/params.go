// Package uep implements unequal error protection on top of the
// stream-level LT codec in internal/lt: packets are grouped into
// priority sub-blocks, each repeated a priority-dependent number of
// times and then globally expanded, before being handed to the
// standard LT encoder; the decoder reverses the mapping and
// deduplicates the repeated copies back into a single output stream.
package uep

import "github.com/pkg/errors"

// ErrSizeMismatch is returned by Validate when Ks and RFs have
// different lengths.
var ErrSizeMismatch = errors.New("uep: Ks and RFs must have the same length")

// ErrInvalidParams is returned by Validate when any sub-block size,
// repetition factor, or the expansion factor is not positive.
var ErrInvalidParams = errors.New("uep: sub-block sizes, repetition factors and EF must be positive")

// Params collects the unequal error protection configuration: the
// sizes of each priority sub-block, their repetition factors, and the
// global expansion factor, alongside the LT degree distribution
// parameters shared by every expanded block.
type Params struct {
	// Ks holds the size of each priority sub-block, most important
	// first.
	Ks []int
	// RFs holds the repetition factor of each sub-block. If empty
	// when Validate runs, it is populated from RFM/RFL
	// following the original two-level fallback: the sub-block at
	// index 0 (the highest priority) gets RFM, all others get RFL.
	RFs []int
	// RFM and RFL are used to synthesize RFs when it is left empty:
	// the most important sub-block's repetition factor and every
	// other sub-block's, respectively.
	RFM, RFL int
	// EF is the global expansion factor applied after repetition.
	EF int
	// C and Delta are the Robust Soliton parameters used for the
	// underlying expanded-block LT code.
	C, Delta float64
}

// Validate fills in RFs from RFM/RFL when left empty and checks that
// every size is consistent and positive.
func (p *Params) Validate() error {
	if len(p.RFs) == 0 {
		p.RFs = make([]int, len(p.Ks))
		for i := range p.RFs {
			if i == 0 {
				p.RFs[i] = p.RFM
			} else {
				p.RFs[i] = p.RFL
			}
		}
	}
	if len(p.Ks) != len(p.RFs) {
		return ErrSizeMismatch
	}
	if p.EF <= 0 {
		return ErrInvalidParams
	}
	for i := range p.Ks {
		if p.Ks[i] <= 0 || p.RFs[i] <= 0 {
			return ErrInvalidParams
		}
	}
	return nil
}

// OrigSize returns the total number of packets in one undeduplicated
// UEP block, i.e. the sum of the sub-block sizes.
func (p *Params) OrigSize() int {
	sum := 0
	for _, k := range p.Ks {
		sum += k
	}
	return sum
}

// ExpandedSize returns the block size passed to the underlying LT
// encoder/decoder: EF times the sum of each sub-block's size times
// its repetition factor.
func (p *Params) ExpandedSize() int {
	sum := 0
	for i := range p.Ks {
		sum += p.Ks[i] * p.RFs[i]
	}
	return p.EF * sum
}

// NumPriorities returns the number of priority classes.
func (p *Params) NumPriorities() int { return len(p.Ks) }
