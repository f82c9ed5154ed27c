// Package corpus enumerates a document folder and loads each supported file as a SourceDocument.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/models"
	"go.uber.org/zap"
)

// Loader reads documents from a corpus folder.
type Loader struct {
	extractor *extract.Extractor
	recursive bool
	exclude   []string
	logger    *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRecursive makes the loader descend into subdirectories. Source ids then use the
// slash-separated path relative to the corpus root.
func WithRecursive(recursive bool) LoaderOption {
	return func(l *Loader) { l.recursive = recursive }
}

// WithExclude skips files whose root-relative path matches any of the doublestar patterns.
func WithExclude(patterns []string) LoaderOption {
	return func(l *Loader) { l.exclude = append([]string(nil), patterns...) }
}

// WithLogger sets a logger for per-file debug output.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader. By default only the top level of the folder is read.
func NewLoader(extractor *extract.Extractor, opts ...LoaderOption) *Loader {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	l := &Loader{extractor: extractor, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Documents returns a lazy sequence over the files in dir, in lexical path order. Each file
// yields either a document or a *models.FileError wrapping models.ErrUnsupportedFileType or
// models.ErrLoad; iteration continues after a per-file error. A folder that cannot be read
// yields a single error wrapping models.ErrLoad. Files are only read when the consumer pulls
// them, and iteration stops early when ctx is done.
func (l *Loader) Documents(ctx context.Context, dir string) iter.Seq2[*models.SourceDocument, error] {
	return func(yield func(*models.SourceDocument, error) bool) {
		paths, err := l.list(dir)
		if err != nil {
			yield(nil, fmt.Errorf("%w: list corpus %s: %v", models.ErrLoad, dir, err))
			return
		}
		for _, rel := range paths {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			doc, err := l.load(dir, rel)
			if err != nil {
				l.logger.Debug("corpus file skipped", zap.String("source", rel), zap.Error(err))
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// Load reads a single file relative to dir.
func (l *Loader) Load(dir, rel string) (*models.SourceDocument, error) {
	return l.load(dir, rel)
}

func (l *Loader) load(dir, rel string) (*models.SourceDocument, error) {
	ext := strings.ToLower(filepath.Ext(rel))
	if _, err := extract.KindFor(ext); err != nil {
		return nil, &models.FileError{Source: rel, Err: err}
	}
	path := filepath.Join(dir, filepath.FromSlash(rel))
	text, err := l.extractor.Extract(path)
	if err != nil {
		return nil, &models.FileError{Source: rel, Err: err}
	}
	return &models.SourceDocument{
		ID:      rel,
		Path:    path,
		Ext:     strings.TrimPrefix(ext, "."),
		Content: text,
	}, nil
}

// list returns the slash-separated, root-relative paths of regular files in dir, sorted.
func (l *Loader) list(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	var out []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == dir {
				return walkErr
			}
			l.logger.Warn("corpus walk error", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && (!l.recursive || strings.HasPrefix(d.Name(), ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		// Resolve symlinks so only regular files are loaded.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if l.excluded(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return nil, err
	}
	return out, nil
}

func (l *Loader) excluded(rel string) bool {
	for _, pattern := range l.exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
