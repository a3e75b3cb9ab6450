package similarity

import "strings"

// Ratio reports how alike two short strings look, as the Ratcliff/Obershelp
// matching-blocks ratio: 2*M / (len(a)+len(b)) where M is the total length
// of contiguous matching blocks found greedily. Comparison is
// case-insensitive. Two empty strings are identical (1.0); if exactly one
// side is empty the strings never match (0.0). Degenerate inputs are defined
// results, not errors.
func Ratio(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	m := matchingBlocks(ra, rb)
	return 2.0 * float64(m) / float64(len(ra)+len(rb))
}

// matchingBlocks finds the longest common block, then recurses on the
// pieces left of it and right of it. Greedy, same scheme as Ratcliff/Obershelp.
func matchingBlocks(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}

	total := size
	total += matchingBlocks(a[:ai], b[:bi])
	total += matchingBlocks(a[ai+size:], b[bi+size:])
	return total
}

// longestMatch returns the start positions and length of the longest
// contiguous matching block between a and b. Ties go to the earliest match.
func longestMatch(a, b []rune) (bestA, bestB, bestSize int) {
	// lengths[j] holds the length of the match ending at a[i], b[j]
	lengths := make(map[int]int, len(b))
	for i := range a {
		next := make(map[int]int, len(b))
		for j := range b {
			if a[i] != b[j] {
				continue
			}
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestA = i - k + 1
				bestB = j - k + 1
				bestSize = k
			}
		}
		lengths = next
	}
	return bestA, bestB, bestSize
}
