package cache

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testDisk(t *testing.T) *Disk {
	t.Helper()
	d, err := NewDisk(t.TempDir(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	return d
}

func TestDiskRoundTrip(t *testing.T) {
	d := testDisk(t)
	ctx := context.Background()
	key := Key("document content")

	entry := &Entry{
		Chunks:     []string{"chunk one", "chunk two"},
		Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		ChunkSize:  300,
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.Put(ctx, key, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := d.Get(ctx, key, 300)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected hit")
	}
	if len(got.Chunks) != 2 || got.Chunks[0] != "chunk one" {
		t.Fatalf("unexpected chunks %v", got.Chunks)
	}
	if len(got.Embeddings) != 2 || got.Embeddings[1][1] != 0.4 {
		t.Fatalf("unexpected embeddings %v", got.Embeddings)
	}
}

func TestDiskMissOnUnknownKey(t *testing.T) {
	d := testDisk(t)
	got, err := d.Get(context.Background(), Key("never stored"), 300)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatal("expected miss")
	}
}

func TestDiskChunkSizeMismatchIsMiss(t *testing.T) {
	d := testDisk(t)
	ctx := context.Background()
	key := Key("doc")
	entry := &Entry{Chunks: []string{"a"}, Embeddings: [][]float32{{1}}, ChunkSize: 300}
	if err := d.Put(ctx, key, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := d.Get(ctx, key, 500)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatal("expected miss for different chunk size")
	}
}

func TestDiskCorruptEntryDropped(t *testing.T) {
	d := testDisk(t)
	ctx := context.Background()
	key := Key("doc")
	path := filepath.Join(d.dir, key+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}
	got, err := d.Get(ctx, key, 300)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatal("expected miss for corrupt entry")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected corrupt entry file removed")
	}
}

func TestKeyStableAndContentSensitive(t *testing.T) {
	if Key("a") != Key("a") {
		t.Fatal("key not stable")
	}
	if Key("a") == Key("b") {
		t.Fatal("different content must produce different keys")
	}
}
