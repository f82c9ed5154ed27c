package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func collect(t *testing.T, l *Loader, dir string) ([]*models.SourceDocument, []error) {
	t.Helper()
	var docs []*models.SourceDocument
	var errs []error
	for doc, err := range l.Documents(context.Background(), dir) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

func TestDocuments_skipsUnsupportedAndMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "second")
	writeFile(t, dir, "a.txt", "first")
	writeFile(t, dir, "image.png", "binary")
	writeFile(t, dir, "broken.docx", "not a zip")
	writeFile(t, dir, "bad.txt", "bad\x80bytes")

	docs, errs := collect(t, NewLoader(nil), dir)

	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].ID)
	assert.Equal(t, "first", docs[0].Content)
	assert.Equal(t, "txt", docs[0].Ext)
	assert.Equal(t, "b.txt", docs[1].ID)

	require.Len(t, errs, 3)
	var unsupported, load int
	for _, err := range errs {
		var fe *models.FileError
		require.True(t, errors.As(err, &fe), "want FileError, got %v", err)
		switch {
		case errors.Is(err, models.ErrUnsupportedFileType):
			unsupported++
			assert.Equal(t, "image.png", fe.Source)
		case errors.Is(err, models.ErrLoad):
			load++
		}
	}
	assert.Equal(t, 1, unsupported)
	assert.Equal(t, 2, load)
}

func TestDocuments_topLevelOnlyByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top.txt", "top")
	writeFile(t, dir, "sub/nested.txt", "nested")

	docs, errs := collect(t, NewLoader(nil), dir)
	assert.Empty(t, errs)
	require.Len(t, docs, 1)
	assert.Equal(t, "top.txt", docs[0].ID)

	docs, errs = collect(t, NewLoader(nil, WithRecursive(true)), dir)
	assert.Empty(t, errs)
	require.Len(t, docs, 2)
	assert.Equal(t, "sub/nested.txt", docs[0].ID)
	assert.Equal(t, "top.txt", docs[1].ID)
}

func TestDocuments_exclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.txt", "keep")
	writeFile(t, dir, "draft-notes.txt", "skip")
	writeFile(t, dir, "archive/old.txt", "skip")

	l := NewLoader(nil, WithRecursive(true), WithExclude([]string{"draft-*", "archive/**"}))
	docs, errs := collect(t, l, dir)
	assert.Empty(t, errs)
	require.Len(t, docs, 1)
	assert.Equal(t, "keep.txt", docs[0].ID)
}

func TestDocuments_missingFolder(t *testing.T) {
	_, errs := collect(t, NewLoader(nil), filepath.Join(t.TempDir(), "missing"))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], models.ErrLoad)
}

func TestDocuments_stopsEarly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")
	writeFile(t, dir, "b.txt", "b")

	n := 0
	for doc, err := range NewLoader(nil).Documents(context.Background(), dir) {
		require.NoError(t, err)
		require.NotNil(t, doc)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestDocuments_cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got []error
	for _, err := range NewLoader(nil).Documents(ctx, dir) {
		got = append(got, err)
	}
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], context.Canceled)
}
