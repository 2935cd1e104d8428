package frame

// SeqAllocator hands out outgoing sequence numbers, wrapping modulo 256.
//
// The zero value is ready to use and its first Next returns 1.
// SeqAllocator is NOT goroutine-safe; a link has at most one request in
// flight and the allocator is only touched by the request engine.
type SeqAllocator struct {
	cur uint8
}

// NewSeqAllocator returns an allocator whose first Next returns start+1.
func NewSeqAllocator(start uint8) *SeqAllocator {
	return &SeqAllocator{cur: start}
}

// Next returns the previous value plus one, wrapping from 255 to 0.
func (a *SeqAllocator) Next() uint8 {
	a.cur++ // uint8 arithmetic wraps

	return a.cur
}

// Current returns the most recently allocated value.
func (a *SeqAllocator) Current() uint8 {
	return a.cur
}
