package index

import "math"

// Default BM25 parameters.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// keywordIndex is an inverted index with BM25 scoring.
// It is not safe for concurrent use; Dual serialises access.
type keywordIndex struct {
	k1, b    float64
	postings map[string]map[string]int // term -> chunk ID -> term frequency
	docTerms map[string][]string       // chunk ID -> distinct terms
	lengths  map[string]int            // chunk ID -> token count
	total    int                       // sum of lengths
}

func newKeywordIndex(k1, b float64) *keywordIndex {
	return &keywordIndex{
		k1:       k1,
		b:        b,
		postings: make(map[string]map[string]int),
		docTerms: make(map[string][]string),
		lengths:  make(map[string]int),
	}
}

// put replaces the postings of a chunk.
func (k *keywordIndex) put(id, text string) {
	k.remove(id)

	tokens := Tokenize(text)
	freqs := termFrequencies(tokens)
	terms := make([]string, 0, len(freqs))
	for term, tf := range freqs {
		docs, ok := k.postings[term]
		if !ok {
			docs = make(map[string]int)
			k.postings[term] = docs
		}
		docs[id] = tf
		terms = append(terms, term)
	}
	k.docTerms[id] = terms
	k.lengths[id] = len(tokens)
	k.total += len(tokens)
}

func (k *keywordIndex) remove(id string) {
	n, ok := k.lengths[id]
	if !ok {
		return
	}
	for _, term := range k.docTerms[id] {
		docs := k.postings[term]
		delete(docs, id)
		if len(docs) == 0 {
			delete(k.postings, term)
		}
	}
	delete(k.docTerms, id)
	delete(k.lengths, id)
	k.total -= n
}

// idf uses the BM25+ style smoothed form, which is never negative.
// Document frequency and N cover the whole index, not just the candidates.
func (k *keywordIndex) idf(term string) float64 {
	n := float64(len(k.lengths))
	df := float64(len(k.postings[term]))
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// score returns BM25 scores for candidates that contain at least one query
// term. A nil candidate set scores every document. The stop function is
// polled between terms; when it returns true scoring is abandoned.
func (k *keywordIndex) score(terms []string, candidates map[string]struct{}, stop func() bool) (map[string]float64, bool) {
	scores := make(map[string]float64)
	if len(k.lengths) == 0 || len(terms) == 0 {
		return scores, true
	}
	avgdl := float64(k.total) / float64(len(k.lengths))
	if avgdl == 0 {
		avgdl = 1
	}

	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		if stop() {
			return nil, false
		}

		docs := k.postings[term]
		if len(docs) == 0 {
			continue
		}
		idf := k.idf(term)
		for id, tf := range docs {
			if candidates != nil {
				if _, ok := candidates[id]; !ok {
					continue
				}
			}
			dl := float64(k.lengths[id])
			f := float64(tf)
			scores[id] += idf * (f * (k.k1 + 1)) / (f + k.k1*(1-k.b+k.b*dl/avgdl))
		}
	}
	return scores, true
}

func (k *keywordIndex) terms() int {
	return len(k.postings)
}
