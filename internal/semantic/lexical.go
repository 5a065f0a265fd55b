package semantic

import "strings"

// stopWords are function words excluded from lexical overlap. Short
// marketing text is mostly glue words; counting them would make every pair
// of sentences look related.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "our": {}, "that": {},
	"the": {}, "their": {}, "they": {}, "this": {}, "to": {}, "we": {},
	"who": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// lexicalOverlap scores two texts by content-word intersection over the
// smaller set's size. It is the fail-closed path when embeddings are
// unavailable: crude, but bounded in [0,1] and never wrong about exact
// word reuse.
func lexicalOverlap(a, b string, minTokenLen int) float64 {
	setA := contentWords(a, minTokenLen)
	setB := contentWords(b, minTokenLen)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	small, large := setA, setB
	if len(setB) < len(setA) {
		small, large = setB, setA
	}

	var shared int
	for w := range small {
		if _, ok := large[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// contentWords tokenizes on non-letter/digit boundaries, lowercases, and
// drops stop words and tokens shorter than minTokenLen.
func contentWords(text string, minTokenLen int) map[string]struct{} {
	if minTokenLen <= 0 {
		minTokenLen = 3
	}
	words := make(map[string]struct{})
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
	for _, t := range tokens {
		if len(t) < minTokenLen {
			continue
		}
		if _, stop := stopWords[t]; stop {
			continue
		}
		words[t] = struct{}{}
	}
	return words
}
