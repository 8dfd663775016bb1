package pow

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// fnv1aUTF16 folds the UTF-16LE code units of seed with 32-bit FNV-1a.
// Operating on code units (not bytes or runes) keeps the output identical
// to the JavaScript client, which hashes charCodeAt values.
func fnv1aUTF16(seed string) uint32 {
	h := uint32(2166136261)
	for _, unit := range utf16.Encode([]rune(seed)) {
		h ^= uint32(unit)
		h += (h << 1) + (h << 4) + (h << 7) + (h << 8) + (h << 24)
	}
	return h
}

// prng emits a deterministic lowercase-hex string of length n for the
// seed: the FNV-1a fold is iterated with xorshift32, eight hex characters
// per step, truncated to n. Both server and client recompute per-puzzle
// salts and targets from the challenge token with this generator, so the
// salts never travel on the wire.
func prng(seed string, n int) string {
	state := fnv1aUTF16(seed)
	var b strings.Builder
	b.Grow(n + 8)
	for b.Len() < n {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		fmt.Fprintf(&b, "%08x", state)
	}
	return b.String()[:n]
}
