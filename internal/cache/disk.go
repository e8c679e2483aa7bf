package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Disk persists entries as one JSON file per key under a base directory.
type Disk struct {
	dir    string
	logger *log.Logger
}

func NewDisk(dir string, logger *log.Logger) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &Disk{dir: dir, logger: logger}, nil
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, key+".json")
}

func (d *Disk) Get(_ context.Context, key string, chunkSize int) (*Entry, error) {
	raw, err := os.ReadFile(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		d.logger.Printf("[CACHE] dropping corrupt entry %s: %v", key, err)
		_ = os.Remove(d.path(key))
		return nil, nil
	}
	if e.ChunkSize != chunkSize || len(e.Chunks) != len(e.Embeddings) {
		return nil, nil
	}
	return &e, nil
}

func (d *Disk) Put(_ context.Context, key string, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(d.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing cache temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publishing cache entry: %w", err)
	}
	return nil
}
