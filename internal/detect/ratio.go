package detect

import "strings"

// SimilarityRatio returns a symmetric similarity measure in [0,1] between two
// texts, computed over whitespace-delimited tokens: twice the number of
// matched tokens (found by recursively locating longest matching blocks)
// divided by the total token count. Identical texts score 1.0; texts with no
// tokens in common score 0.0. This is matching-subsequence based, not edit
// distance.
func SimilarityRatio(a, b string) float64 {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) == 0 && len(bt) == 0 {
		return 1.0
	}
	if len(at) == 0 || len(bt) == 0 {
		return 0.0
	}

	b2j := make(map[string][]int, len(bt))
	for j, tok := range bt {
		b2j[tok] = append(b2j[tok], j)
	}

	matched := matchTotal(at, b2j, 0, len(at), 0, len(bt))
	return 2.0 * float64(matched) / float64(len(at)+len(bt))
}

// Magnitude is the change magnitude between previous and current text:
// 1 − SimilarityRatio. A missing previous text against non-empty current
// text is a total change (1.0); two empty texts are no change (0.0).
func Magnitude(previous, current string) float64 {
	if strings.TrimSpace(previous) == "" {
		if strings.TrimSpace(current) == "" {
			return 0.0
		}
		return 1.0
	}
	return 1.0 - SimilarityRatio(previous, current)
}

// matchTotal counts matched tokens between a[alo:ahi] and b[blo:bhi] by
// finding the longest matching block and recursing on both sides of it.
func matchTotal(a []string, b2j map[string][]int, alo, ahi, blo, bhi int) int {
	besti, bestj, bestSize := longestMatch(a, b2j, alo, ahi, blo, bhi)
	if bestSize == 0 {
		return 0
	}
	total := bestSize
	total += matchTotal(a, b2j, alo, besti, blo, bestj)
	total += matchTotal(a, b2j, besti+bestSize, ahi, bestj+bestSize, bhi)
	return total
}

// longestMatch finds the longest block of tokens common to a[alo:ahi] and
// b[blo:bhi], preferring the earliest occurrence on ties.
func longestMatch(a []string, b2j map[string][]int, alo, ahi, blo, bhi int) (besti, bestj, bestSize int) {
	besti, bestj = alo, blo
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newJ2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestSize {
				besti, bestj, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return besti, bestj, bestSize
}
