package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeqAllocator_ZeroValueStartsAtOne(t *testing.T) {
	var a SeqAllocator
	assert.Equal(t, uint8(1), a.Next())
	assert.Equal(t, uint8(2), a.Next())
	assert.Equal(t, uint8(2), a.Current())
}

func TestSeqAllocator_Wrap(t *testing.T) {
	a := NewSeqAllocator(254)
	assert.Equal(t, uint8(255), a.Next())
	assert.Equal(t, uint8(0), a.Next())
	assert.Equal(t, uint8(1), a.Next())
}

func TestSeqAllocator_FullCycle(t *testing.T) {
	a := NewSeqAllocator(0)

	values := make([]uint8, 0, 257)
	for i := 0; i < 257; i++ {
		values = append(values, a.Next())
	}

	// 256 calls return to the starting point, and call 257 repeats call 1.
	assert.Equal(t, uint8(0), values[255])
	assert.Equal(t, values[0], values[256])

	seen := make(map[uint8]bool)
	for _, v := range values[:256] {
		seen[v] = true
	}
	assert.Len(t, seen, 256, "every sequence value is used once per cycle")
}
