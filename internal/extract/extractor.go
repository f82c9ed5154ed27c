// Package extract provides text extraction for the supported corpus document kinds.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/tanya/internal/models"
)

// Kind is the closed set of document kinds the corpus accepts.
type Kind int

const (
	// KindText is a plain UTF-8 text file (.txt).
	KindText Kind = iota + 1
	// KindDoc is a legacy Word document (.doc).
	KindDoc
	// KindDocx is an Office Open XML Word document (.docx).
	KindDocx
)

// String returns the extension (without dot) for the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "txt"
	case KindDoc:
		return "doc"
	case KindDocx:
		return "docx"
	default:
		return "unknown"
	}
}

// KindFor maps a file extension (with or without the leading dot, any case) to a Kind.
// Any other extension yields models.ErrUnsupportedFileType.
func KindFor(ext string) (Kind, error) {
	e := strings.ToLower(strings.TrimPrefix(ext, "."))
	switch e {
	case "txt":
		return KindText, nil
	case "doc":
		return KindDoc, nil
	case "docx":
		return KindDocx, nil
	default:
		return 0, fmt.Errorf("%w: %q", models.ErrUnsupportedFileType, ext)
	}
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// Unsupported extensions fail with models.ErrUnsupportedFileType before the file is read;
// read and decoding failures wrap models.ErrLoad.
func (e *Extractor) Extract(path string) (string, error) {
	kind, err := KindFor(filepath.Ext(path))
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read file: %v", models.ErrLoad, err)
	}
	return e.ExtractBytes(content, kind)
}

// ExtractBytes extracts text from content of the given kind.
func (e *Extractor) ExtractBytes(content []byte, kind Kind) (string, error) {
	var (
		text string
		err  error
	)
	switch kind {
	case KindText:
		text, err = extractPlain(content)
	case KindDocx:
		text, err = extractDOCX(content)
	case KindDoc:
		text, err = extractDOC(content)
	default:
		return "", fmt.Errorf("%w: kind %d", models.ErrUnsupportedFileType, kind)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrLoad, err)
	}
	return text, nil
}
