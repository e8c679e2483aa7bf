package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxDocumentPath is where OOXML keeps the main document body.
const docxDocumentPath = "word/document.xml"

// extractDOCX extracts text from .docx bytes. A docx is a zip holding
// word/document.xml; the visible text lives in <w:t> nodes. Walking the XML
// token stream picks those up regardless of the attributes word processors
// attach to paragraphs and runs.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	var rc io.ReadCloser
	for _, f := range zr.File {
		if f.Name == docxDocumentPath {
			rc, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("extract DOCX: open %s: %w", f.Name, err)
			}
			break
		}
	}
	if rc == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docxDocumentPath)
	}
	defer rc.Close()

	var b strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("extract DOCX: parse %s: %w", docxDocumentPath, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			} else if t.Name.Local == "p" && b.Len() > 0 {
				b.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
