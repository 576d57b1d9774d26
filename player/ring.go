package player

// ring holds decoded samples between the card and the output. The read
// position is the absolute cursor masked to the capacity; the write
// position follows it by the buffered count.
type ring struct {
	buf      []uint16
	mask     uint32
	buffered int
}

func newRing(capacity int) ring {
	return ring{buf: make([]uint16, capacity), mask: uint32(capacity - 1)}
}

func (r *ring) reset() {
	r.buffered = 0
}

func (r *ring) capacity() int {
	return len(r.buf)
}

// push stores the two little-endian samples in four.
func (r *ring) push(four *[4]byte, cursor uint32) {
	w := cursor + uint32(r.buffered)
	r.buf[w&r.mask] = uint16(four[0]) | uint16(four[1])<<8
	r.buf[(w+1)&r.mask] = uint16(four[2]) | uint16(four[3])<<8
	r.buffered += fastReadSamples
}

// pop returns the sample at cursor.
func (r *ring) pop(cursor uint32) uint16 {
	r.buffered--
	return r.buf[cursor&r.mask]
}
