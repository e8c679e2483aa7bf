package analysis

import "strings"

// Chunk is one bounded segment of a document. Index is the position in the
// original document; adjacent indices are contiguous regions.
type Chunk struct {
	Index int
	Text  string
}

// ChunkWords splits text into word windows of the given size with optional
// overlap. Empty input yields an empty slice. No chunk is empty after
// trimming and joining the chunks (at zero overlap) preserves every word.
func ChunkWords(text string, size, overlap int) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		size = 300
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []Chunk
	step := size - overlap
	idx := 0
	for i := 0; i < len(words); i += step {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{Index: idx, Text: strings.Join(words[i:end], " ")})
		idx++
		if end == len(words) {
			break
		}
	}
	return chunks
}

// ChunkChars splits text into character windows, snapping each window end
// back to the nearest preceding sentence or line boundary. The snap is
// skipped when it would shrink the chunk below half its target size.
func ChunkChars(text string, size, overlap int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []Chunk
	idx := 0
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			if snap := snapBoundary(runes, start, end); snap > 0 {
				end = snap
			}
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Index: idx, Text: piece})
			idx++
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// snapBoundary finds the nearest '.' or '\n' before end, returning the
// position just after it, or 0 when snapping would halve the chunk.
func snapBoundary(runes []rune, start, end int) int {
	min := start + (end-start)/2
	for i := end - 1; i > min; i-- {
		if runes[i] == '.' || runes[i] == '\n' {
			return i + 1
		}
	}
	return 0
}
