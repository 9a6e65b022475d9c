// Package sampler draws the candidate set a related-products query scores.
package sampler

import (
	"math/rand/v2"

	id "armory/pkg/domain"
)

// Sampler draws uniform candidate subsets.
type Sampler struct {
	seed uint64
}

// New returns a Sampler. A non-zero seed makes every draw a pure function of
// the seed and the target, so identical queries see identical candidates.
// A zero seed draws from a fresh random source on each call.
func New(seed uint64) *Sampler {
	return &Sampler{seed: seed}
}

// Seeded reports whether draws are reproducible.
func (s *Sampler) Seeded() bool { return s.seed != 0 }

// Seed is the configured seed, zero when unseeded.
func (s *Sampler) Seed() uint64 { return s.seed }

// Sample returns min(n, |universe \ {exclude}|) distinct IDs chosen uniformly
// from universe without exclude. universe is never modified.
func (s *Sampler) Sample(universe []id.ProductID, exclude id.ProductID, n int) []id.ProductID {
	if n <= 0 || len(universe) == 0 {
		return []id.ProductID{}
	}

	pool := make([]id.ProductID, 0, len(universe))
	for _, pid := range universe {
		if pid != exclude {
			pool = append(pool, pid)
		}
	}
	k := min(n, len(pool))

	rng := s.source(exclude)
	// Partial Fisher-Yates: the first k slots end up a uniform k-subset.
	for i := range k {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k:k]
}

func (s *Sampler) source(target id.ProductID) *rand.Rand {
	if s.seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(s.seed, uint64(target)))
}
