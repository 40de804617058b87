// Package retrieval ranks document chunks against a question with a blended
// keyword relevance score.
package retrieval

import "strings"

// Signal weights of the combined score. They sum to 1.
const (
	WordWeight      = 0.5
	SubstringWeight = 0.3
	PhraseWeight    = 0.2
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {}, "might": {}, "can": {},
	"this": {}, "that": {}, "these": {}, "those": {},
}

// IsStopWord reports whether w (already lower-cased) is ignored in queries.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// Scores holds the individual signals and their weighted blend, each in [0, 1].
type Scores struct {
	Word      float64 `json:"word"`
	Substring float64 `json:"substring"`
	Phrase    float64 `json:"phrase"`
	Combined  float64 `json:"combined"`
}

// Query is a question prepared for scoring against many chunks.
type Query struct {
	lower string
	words []string // distinct, stop words removed, first-seen order
}

// NewQuery lower-cases q and extracts its distinct non-stop words.
func NewQuery(q string) Query {
	lower := strings.ToLower(q)
	seen := make(map[string]struct{})
	var words []string
	for _, w := range strings.Fields(lower) {
		if IsStopWord(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return Query{lower: lower, words: words}
}

// Words returns the filtered query words.
func (q Query) Words() []string { return q.words }

// Breakdown scores text against the query.
func (q Query) Breakdown(text string) Scores {
	var s Scores
	if len(q.words) == 0 {
		return s
	}

	lower := strings.ToLower(text)
	chunkWords := make(map[string]struct{})
	for _, w := range strings.Fields(lower) {
		chunkWords[w] = struct{}{}
	}

	overlap, contained := 0, 0
	for _, w := range q.words {
		if _, ok := chunkWords[w]; ok {
			overlap++
		}
		if strings.Contains(lower, w) {
			contained++
		}
	}
	n := float64(len(q.words))
	s.Word = float64(overlap) / n
	s.Substring = float64(contained) / n

	if len(q.words) > 1 && strings.Contains(lower, q.lower) {
		s.Phrase = 1
	}

	s.Combined = WordWeight*s.Word + SubstringWeight*s.Substring + PhraseWeight*s.Phrase
	return s
}

// Breakdown scores a single chunk text against query.
func Breakdown(query, text string) Scores {
	return NewQuery(query).Breakdown(text)
}

// Score returns the combined relevance of text to query.
func Score(query, text string) float64 {
	return Breakdown(query, text).Combined
}
