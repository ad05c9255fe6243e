package codec

// sextetReader reads big-endian bit fields from a sequence of 6-bit groups,
// the packing used by the graph6 family of formats.
type sextetReader struct {
	groups []byte
	pos    int // bit position
}

func (r *sextetReader) remaining() int {
	return 6*len(r.groups) - r.pos
}

// read returns the next n bits. Reads past the end are truncated to the
// bits that remain.
func (r *sextetReader) read(n int) uint64 {
	if n > r.remaining() {
		n = r.remaining()
	}
	var v uint64
	for i := 0; i < n; i++ {
		g := r.groups[r.pos/6]
		bit := (g >> (5 - uint(r.pos%6))) & 1
		v = v<<1 | uint64(bit)
		r.pos++
	}
	return v
}
