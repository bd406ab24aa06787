package matching

import "sync/atomic"

// SequenceGenerator hands out strictly increasing trade sequence numbers
// Uniqueness is guaranteed by the atomic counter, so readers on other goroutines may call
// Current while the matching loop calls Next.
type SequenceGenerator struct {
	counter atomic.Uint64
}

// NewSequenceGenerator creates a generator whose first Next returns start+1
func NewSequenceGenerator(start uint64) *SequenceGenerator {
	g := &SequenceGenerator{}
	g.counter.Store(start)
	return g
}

// Next generates the next sequence number
func (g *SequenceGenerator) Next() uint64 {
	return g.counter.Add(1)
}

// Current returns the last number handed out
func (g *SequenceGenerator) Current() uint64 {
	return g.counter.Load()
}
