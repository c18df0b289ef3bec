package sweep

import (
	"math/rand/v2"
)

// Chooser makes the random selections of multi-prompt experiments from an
// explicit seed, so a run can be reproduced.
type Chooser struct {
	seed uint64
	rng  *rand.Rand
}

// NewChooser returns a Chooser seeded with seed.
func NewChooser(seed uint64) *Chooser {
	return &Chooser{seed: seed, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Seed returns the seed the Chooser was created with.
func (c *Chooser) Seed() uint64 { return c.seed }

// Sample returns min(n, len(items)) distinct items in selection order.
// items is not modified.
func (c *Chooser) Sample(items []string, n int) []string {
	pool := append([]string(nil), items...)
	n = min(max(n, 0), len(pool))
	for i := 0; i < n; i++ {
		j := i + c.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// Choice returns one item, or "" for an empty slice.
func (c *Chooser) Choice(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[c.rng.IntN(len(items))]
}
