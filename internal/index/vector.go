package index

import "math"

// vectorIndex holds embeddings for exact cosine search.
// It is not safe for concurrent use; Dual serialises access.
type vectorIndex struct {
	dims    int
	vectors map[string][]float32
	norms   map[string]float64
}

func newVectorIndex(dims int) *vectorIndex {
	return &vectorIndex{
		dims:    dims,
		vectors: make(map[string][]float32),
		norms:   make(map[string]float64),
	}
}

func (v *vectorIndex) put(id string, vec []float32) {
	cp := make([]float32, len(vec))
	copy(cp, vec)
	v.vectors[id] = cp
	v.norms[id] = norm(cp)
}

func (v *vectorIndex) remove(id string) {
	delete(v.vectors, id)
	delete(v.norms, id)
}

func (v *vectorIndex) has(id string) bool {
	_, ok := v.vectors[id]
	return ok
}

// score returns the cosine similarity of query to every candidate that has a
// vector. The stop function is polled periodically; when it returns true the
// search is abandoned.
func (v *vectorIndex) score(query []float32, candidates []string, stop func() bool) (map[string]float64, bool) {
	scores := make(map[string]float64)
	qn := norm(query)
	for i, id := range candidates {
		if i%256 == 0 && stop() {
			return nil, false
		}
		vec, ok := v.vectors[id]
		if !ok {
			continue
		}
		scores[id] = cosine(query, qn, vec, v.norms[id])
	}
	return scores, true
}

// Cosine returns the cosine similarity of a and b, or 0 if either is zero
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return cosine(a, norm(a), b, norm(b))
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
