package config

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IndexDir returns the artifact root for this corpus. An explicit index.dir
// wins; otherwise it is ~/.caseindex/data/<corpus-name>-<hash of corpus path>.
func (c *Config) IndexDir() (string, error) {
	if c.Index.Dir != "" {
		return filepath.Abs(c.Index.Dir)
	}

	corpusRoot, err := c.CorpusRoot()
	if err != nil {
		return "", err
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	hash := sha1.Sum([]byte(corpusRoot))
	suffix := hex.EncodeToString(hash[:])[:12]
	name := fmt.Sprintf("%s-%s", sanitizeName(filepath.Base(corpusRoot)), suffix)
	return filepath.Join(homeDir, ".caseindex", "data", name), nil
}

// CorpusName returns a file-name-safe label for the corpus directory.
func (c *Config) CorpusName() (string, error) {
	root, err := c.CorpusRoot()
	if err != nil {
		return "", err
	}
	return sanitizeName(filepath.Base(root)), nil
}

// CorpusRoot returns the absolute, symlink-resolved corpus directory.
func (c *Config) CorpusRoot() (string, error) {
	absPath, err := filepath.Abs(c.Corpus.Path)
	if err != nil {
		return "", fmt.Errorf("resolve corpus path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}
	return absPath, nil
}

// sanitizeName replaces characters that are unsafe in file names.
func sanitizeName(name string) string {
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "corpus"
	}
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
