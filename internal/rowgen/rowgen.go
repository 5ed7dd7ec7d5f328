// Package rowgen generates the pseudo-random input-symbol selections
// ("rows") mixed into each coded output symbol by an LT encoder.
package rowgen

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/ARwMq9b6/uepfountain/internal/soliton"
)

// ErrInvalidK is returned when a generator is built over a
// non-positive input block size.
var ErrInvalidK = errors.New("rowgen: K must be positive")

// DefaultSeed is a fixed seed value for callers that need no
// particular one. Nothing in this package falls back to it: Reset
// always takes an explicit seed.
const DefaultSeed = 1

// Generator draws, for each call to Next, a degree from a soliton
// distribution and then that many distinct input symbol indices in
// [0,K), mirroring fountain<IntType>::next_packet_selection.
//
// A Generator is not safe for concurrent use; callers that need
// concurrent row generation should give each goroutine its own
// Generator seeded independently.
type Generator struct {
	k       int
	rng     *rand.Rand
	degrees *soliton.Sampler
	seed    int64
	count   uint64
}

// New builds a generator over block size K using the Ideal Soliton
// degree distribution, seeded with seed.
func New(K int, seed int64) (*Generator, error) {
	if K <= 0 {
		return nil, ErrInvalidK
	}
	s, err := soliton.NewIdealSampler(K)
	if err != nil {
		return nil, err
	}
	return &Generator{
		k:       K,
		rng:     rand.New(rand.NewSource(seed)),
		degrees: s,
		seed:    seed,
	}, nil
}

// NewRobust builds a generator over block size K using the Robust
// Soliton degree distribution with parameters (c, delta), seeded with
// seed.
func NewRobust(K int, c, delta float64, seed int64) (*Generator, error) {
	if K <= 0 {
		return nil, ErrInvalidK
	}
	s, err := soliton.NewRobustSampler(K, c, delta)
	if err != nil {
		return nil, err
	}
	return &Generator{
		k:       K,
		rng:     rand.New(rand.NewSource(seed)),
		degrees: s,
		seed:    seed,
	}, nil
}

// K returns the input block size the generator selects rows over.
func (g *Generator) K() int { return g.k }

// GeneratedCount returns how many row selections Next has produced
// since the generator was built or last Reset.
func (g *Generator) GeneratedCount() uint64 { return g.count }

// Next draws a degree and returns that many distinct input symbol
// indices in [0,K), sorted ascending for deterministic downstream
// processing (the original keeps selection order, but the message
// passing graph below treats a row as a set so a canonical order
// makes the generator's output easier to compare in tests).
func (g *Generator) Next() []int {
	degree := g.degrees.Sample(g.rng)
	chosen := make(map[int]struct{}, degree)
	row := make([]int, 0, degree)
	for len(row) < degree {
		idx := g.rng.Intn(g.k)
		if _, dup := chosen[idx]; dup {
			continue
		}
		chosen[idx] = struct{}{}
		row = append(row, idx)
	}
	sortInts(row)
	g.count++
	return row
}

// Reset returns the generator to its initial state using seed.
func (g *Generator) Reset(seed int64) {
	g.rng = rand.New(rand.NewSource(seed))
	g.seed = seed
	g.count = 0
}

// sortInts is a tiny insertion sort: rows are small (bounded by the
// degree, itself bounded by K), so this avoids pulling in sort.Ints
// for what is typically a handful of elements.
func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		v := a[i]
		j := i - 1
		for j >= 0 && a[j] > v {
			a[j+1] = a[j]
			j--
		}
		a[j+1] = v
	}
}
