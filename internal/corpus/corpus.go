// Package corpus lists case documents under a data folder and extracts their
// ordered sentence sequences.
package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Document is one source file of the corpus.
type Document struct {
	ID   string // Path relative to the corpus root, slash separated
	Path string // Absolute path on disk
}

// Filter decides which files under the corpus root are documents.
type Filter struct {
	Include []string
	Exclude []string
}

// Match reports whether a slash-separated relative path is selected.
// Patterns are tried against the full relative path and against the base name.
func (f Filter) Match(rel string) bool {
	base := filepath.Base(rel)
	for _, pattern := range f.Exclude {
		if matchPattern(pattern, rel) || matchPattern(pattern, base) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return Supported(rel)
	}
	for _, pattern := range f.Include {
		if matchPattern(pattern, rel) || matchPattern(pattern, base) {
			return Supported(rel)
		}
	}
	return false
}

func matchPattern(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	return err == nil && matched
}

// Walk returns the documents under root selected by filter, ordered by ID.
// The order is the id assignment order of the index build, so it must be stable.
func Walk(root string, filter Filter) ([]Document, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("corpus root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", absRoot)
	}

	var docs []Document
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !filter.Match(rel) {
			return nil
		}
		docs = append(docs, Document{ID: rel, Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Supported reports whether a file extension has a sentence reader.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xml", ".txt", ".pdf":
		return true
	default:
		return false
	}
}

// ReadSentences extracts the ordered sentences of a document.
func ReadSentences(doc Document) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(doc.Path))
	if ext == ".pdf" {
		text, err := readPDFText(doc.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", doc.ID, err)
		}
		return SplitSentences(text), nil
	}

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", doc.ID, err)
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", doc.ID, err)
	}

	switch ext {
	case ".xml":
		sentences, err := XMLSentences(strings.NewReader(text))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", doc.ID, err)
		}
		return sentences, nil
	case ".txt":
		return SplitSentences(text), nil
	default:
		return nil, fmt.Errorf("unsupported document type %q: %s", ext, doc.ID)
	}
}
