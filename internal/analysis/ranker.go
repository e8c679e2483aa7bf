package analysis

import (
	"math"
	"sort"
)

// fallbackTop is how many chunks are returned by raw similarity when nothing
// clears the threshold. A query that matches nothing well still gets context.
const fallbackTop = 5

// Rank orders chunks by descending cosine similarity against the query
// vector and returns those at or above threshold, capped at topK. When no
// chunk clears the threshold the top 5 by raw similarity are returned
// instead; the result is never empty while chunks exist. Missing embeddings
// degrade to the first topK chunks in document order.
func Rank(queryVec []float32, chunkVecs [][]float32, chunks []Chunk, topK int, threshold float64) []Chunk {
	if len(chunks) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = fallbackTop
	}
	if len(queryVec) == 0 || len(chunkVecs) != len(chunks) {
		// Degraded mode: embeddings unavailable, keep document order.
		if topK > len(chunks) {
			topK = len(chunks)
		}
		out := make([]Chunk, topK)
		copy(out, chunks[:topK])
		return out
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(chunks))
	for i, v := range chunkVecs {
		scores[i] = scored{idx: i, score: CosineSimilarity(queryVec, v)}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })

	var selected []scored
	for _, s := range scores {
		if s.score >= threshold && len(selected) < topK {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		n := fallbackTop
		if n > len(scores) {
			n = len(scores)
		}
		selected = scores[:n]
	}

	out := make([]Chunk, len(selected))
	for i, s := range selected {
		out[i] = chunks[s.idx]
	}
	return out
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
