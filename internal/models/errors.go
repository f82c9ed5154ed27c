package models

import (
	"errors"
	"fmt"
)

// Errors returned by the ingestion and conversation pipeline. Callers match them with errors.Is.
var (
	// ErrUnsupportedFileType indicates a corpus file whose extension is not txt, doc, or docx.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrLoad indicates a corpus file that could not be read or decoded.
	ErrLoad = errors.New("load error")

	// ErrPersistence indicates the ledger or index storage failed. Fatal to an ingestion pass.
	ErrPersistence = errors.New("persistence error")

	// ErrEmptyCorpus indicates no index exists yet and the corpus produced no chunks to build one.
	ErrEmptyCorpus = errors.New("empty corpus: no chunks to build an index from")

	// ErrEmbeddingUnavailable indicates the embedding model failed or timed out.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrGenerationUnavailable indicates the language model failed or timed out.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrNoUserTurnFound indicates an edit was requested on a transcript with no user turn.
	ErrNoUserTurnFound = errors.New("no user message found to edit")

	// ErrTurnCancelled indicates the turn was cancelled before it completed.
	ErrTurnCancelled = errors.New("turn cancelled")
)

// FileError is a per-file ingestion failure. Err wraps ErrUnsupportedFileType or ErrLoad.
type FileError struct {
	Source string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
