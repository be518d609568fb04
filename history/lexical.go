package history

import "strings"

// Matcher scores the similarity of two questions in [0, 1].
type Matcher interface {
	Score(a, b string) float64
}

// wordWeight and ngramWeight blend the two Jaccard components.
const (
	wordWeight  = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// stopWords are ignored when comparing questions word-by-word.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "is": {}, "are": {}, "was": {}, "be": {}, "by": {},
	"do": {}, "i": {}, "my": {}, "me": {}, "you": {}, "your": {},
}

// Lexical scores question similarity without any model calls. It is
// deterministic, symmetric, and bounded in [0, 1]; identical strings
// score 1.0.
type Lexical struct{}

// Score computes 0.7 x word-set Jaccard + 0.3 x 3-gram Jaccard over
// the normalized texts.
func (Lexical) Score(a, b string) float64 {
	aClean := normalize(a)
	bClean := normalize(b)

	aWords := significantWords(aClean)
	bWords := significantWords(bClean)
	if len(aWords) == 0 || len(bWords) == 0 {
		return 0
	}
	wordScore := jaccard(aWords, bWords)

	ngramScore := 0.0
	aGrams := ngrams(aClean)
	bGrams := ngrams(bClean)
	if len(aGrams) > 0 && len(bGrams) > 0 {
		ngramScore = jaccard(aGrams, bGrams)
	}

	return wordWeight*wordScore + ngramWeight*ngramScore
}

// normalize lowercases and strips everything except letters, digits,
// and spaces.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// significantWords drops stop words and anything 2 characters or less.
func significantWords(clean string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(clean) {
		if len(w) <= 2 {
			continue
		}
		if _, skip := stopWords[w]; skip {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}

// ngrams builds the 3-character n-gram set of the whitespace-stripped
// text.
func ngrams(clean string) map[string]struct{} {
	stripped := strings.ReplaceAll(clean, " ", "")
	grams := make(map[string]struct{})
	for i := 0; i+ngramSize <= len(stripped); i++ {
		grams[stripped[i:i+ngramSize]] = struct{}{}
	}
	return grams
}

func jaccard(a, b map[string]struct{}) float64 {
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
