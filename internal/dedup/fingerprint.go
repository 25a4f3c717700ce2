package dedup

import (
	"hash/fnv"
	"sort"
	"strings"
	"unicode"
)

// Signature builds a token-shingle signature over normalized text: k-word
// shingles hashed into a sorted, deduplicated set of 64-bit values. Texts
// shorter than k words degrade to single-token shingles so trivially short
// reviews still compare.
func Signature(text string, k int) []uint64 {
	if k <= 0 {
		k = 3
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) < k {
		k = 1
	}

	seen := make(map[uint64]struct{}, len(tokens))
	for i := 0; i+k <= len(tokens); i++ {
		seen[hashShingle(tokens[i:i+k])] = struct{}{}
	}

	shingles := make([]uint64, 0, len(seen))
	for h := range seen {
		shingles = append(shingles, h)
	}
	sort.Slice(shingles, func(i, j int) bool { return shingles[i] < shingles[j] })
	return shingles
}

// Jaccard computes set similarity over two sorted signatures.
func Jaccard(a, b []uint64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			intersection++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hashShingle(tokens []string) uint64 {
	h := fnv.New64a()
	for i, token := range tokens {
		if i > 0 {
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.Write([]byte(token))
	}
	return h.Sum64()
}
