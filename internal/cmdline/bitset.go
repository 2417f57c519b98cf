package cmdline

import "math/bits"

// Bitset is a fixed size set of option indexes.
type Bitset []uint64

// NewBitset returns an empty set able to hold n bits.
func NewBitset(n int) Bitset {
	return make(Bitset, (n+63)/64)
}

// Set adds i.
func (b Bitset) Set(i int) {
	b[i/64] |= 1 << (uint(i) % 64)
}

// Clear removes i.
func (b Bitset) Clear(i int) {
	b[i/64] &^= 1 << (uint(i) % 64)
}

// Test reports whether i is in the set.
func (b Bitset) Test(i int) bool {
	if i/64 >= len(b) {
		return false
	}
	return b[i/64]&(1<<(uint(i)%64)) != 0
}

// First returns the lowest member, or -1 when the set is empty.
func (b Bitset) First() int {
	for w, word := range b {
		if word != 0 {
			return w*64 + bits.TrailingZeros64(word)
		}
	}
	return -1
}

// AndNot returns the members of b that are not in o.
func (b Bitset) AndNot(o Bitset) Bitset {
	out := make(Bitset, len(b))
	for i := range b {
		out[i] = b[i]
		if i < len(o) {
			out[i] &^= o[i]
		}
	}
	return out
}

// Empty reports whether the set has no members.
func (b Bitset) Empty() bool {
	return b.First() < 0
}
