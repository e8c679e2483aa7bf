package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractBytesPlain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("Complaint 1\nComplaint 2"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Complaint 1\nComplaint 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytesCSVPassthrough(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("country,count\nIsrael,3"), ".csv")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "country,count\nIsrael,3" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytesInvalidUTF8Replaced(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("hello\x80world"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "hello�world" {
		t.Errorf("got %q", got)
	}
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractBytesDocx(t *testing.T) {
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p w:rsidR="00000000"><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	e := NewExtractor()
	got, err := e.ExtractBytes(buildDocx(t, doc), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if !strings.Contains(got, "First paragraph.") {
		t.Errorf("missing first paragraph: %q", got)
	}
	if !strings.Contains(got, "Second paragraph.") {
		t.Errorf("run text not joined: %q", got)
	}
}

func TestExtractBytesDocxNotAZip(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("plain bytes"), ".docx"); err == nil {
		t.Fatal("expected error for non-zip docx")
	}
}

func TestExtractBytesPDFInvalid(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a pdf"), ".pdf"); err == nil {
		t.Fatal("expected error for invalid pdf")
	}
}

func TestExtractPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.ppr-rx")
	if err := os.WriteFile(path, []byte("File content"), 0o600); err != nil {
		t.Fatal(err)
	}
	e := NewExtractor()
	got, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "File content" {
		t.Errorf("got %q", got)
	}
}
