// Package cache stores chunk embeddings keyed by document content so repeated
// analyses of the same file skip the embedding API entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is one cached embedding set. ChunkSize is recorded so entries written
// under a different chunking configuration are treated as misses.
type Entry struct {
	Chunks     []string    `json:"chunks"`
	Embeddings [][]float32 `json:"embeddings"`
	ChunkSize  int         `json:"chunk_size"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Cache is the embedding cache contract. Get returns (nil, nil) on a miss;
// backends never surface corrupt entries, they drop them and report a miss.
type Cache interface {
	Get(ctx context.Context, key string, chunkSize int) (*Entry, error)
	Put(ctx context.Context, key string, entry *Entry) error
}

// Key derives the cache key for a document's content.
func Key(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
