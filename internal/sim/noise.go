package sim

import (
	"math/rand/v2"
	"sync"

	"github.com/arloliu/go-robolink/transport"
)

// NoisyTransport corrupts outgoing bytes to emulate line noise: each byte is
// dropped with probability dropRate, or else has one bit flipped with
// probability flipRate.
type NoisyTransport struct {
	transport.Transport

	mu       sync.Mutex
	rng      *rand.Rand
	flipRate float64
	dropRate float64
}

// NewNoisyTransport wraps t. seed makes the corruption reproducible.
func NewNoisyTransport(t transport.Transport, flipRate, dropRate float64, seed uint64) *NoisyTransport {
	return &NoisyTransport{
		Transport: t,
		rng:       rand.New(rand.NewPCG(seed, ^seed)),
		flipRate:  flipRate,
		dropRate:  dropRate,
	}
}

// Write writes p after corrupting it.
func (n *NoisyTransport) Write(p []byte) error {
	n.mu.Lock()
	out := make([]byte, 0, len(p))
	for _, b := range p {
		switch {
		case n.rng.Float64() < n.dropRate:
			continue
		case n.rng.Float64() < n.flipRate:
			b ^= 1 << n.rng.IntN(7)
		}
		out = append(out, b)
	}
	n.mu.Unlock()

	return n.Transport.Write(out)
}
