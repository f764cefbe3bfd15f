// Package bloom remembers which fragments a run has already written.
package bloom

import (
	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"
)

// Filter records fragment texts. The Bloom filter answers most lookups
// for new texts; its positives are confirmed against the xxhash digests
// of every recorded text, so a text is never reported as seen by mistake
// short of a 64-bit digest collision.
type Filter struct {
	f       *bloom.BloomFilter
	digests map[uint64]struct{}
}

// NewFilter creates a filter sized for n expected fragments with the
// given Bloom false positive rate. Going past n costs lookups, not accuracy.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{
		f:       bloom.NewWithEstimates(n, fpRate),
		digests: make(map[uint64]struct{}),
	}
}

// Seen reports whether text was recorded before, and records it.
func (f *Filter) Seen(text string) bool {
	d := xxhash.Sum64String(text)
	if f.f.TestOrAddString(text) {
		if _, ok := f.digests[d]; ok {
			return true
		}
	}
	f.digests[d] = struct{}{}
	return false
}
