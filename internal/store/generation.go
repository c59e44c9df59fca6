package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	generationsDir  = "generations"
	currentFile     = "CURRENT"
	stagingPrefix   = ".staging-"
	databaseFile    = "artifacts.db"
	lexicalDir      = "lexical"
	stampPrefixSize = 12
)

// Generation is one immutable, fully written artifact set.
type Generation struct {
	Name string
	Dir  string
}

// DatabasePath returns the sqlite file of the generation.
func (g Generation) DatabasePath() string { return filepath.Join(g.Dir, databaseFile) }

// LexicalPath returns the bleve index directory of the generation.
func (g Generation) LexicalPath() string { return filepath.Join(g.Dir, lexicalDir) }

// Current resolves the generation the CURRENT pointer names.
func Current(root string) (Generation, error) {
	data, err := os.ReadFile(filepath.Join(root, currentFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Generation{}, fmt.Errorf("%w: no published generation in %s", ErrNotIndexed, root)
		}
		return Generation{}, fmt.Errorf("read current pointer: %w", err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" || strings.ContainsAny(name, `/\`) {
		return Generation{}, fmt.Errorf("%w: invalid current pointer %q", ErrNotIndexed, name)
	}

	gen := Generation{Name: name, Dir: filepath.Join(root, generationsDir, name)}
	for _, path := range []string{gen.DatabasePath(), gen.LexicalPath()} {
		if _, err := os.Stat(path); err != nil {
			return Generation{}, fmt.Errorf("%w: %s missing", ErrNotIndexed, path)
		}
	}
	return gen, nil
}

func newStaging(root string) (Generation, error) {
	parent := filepath.Join(root, generationsDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return Generation{}, fmt.Errorf("create generations dir: %w", err)
	}
	dir, err := os.MkdirTemp(parent, stagingPrefix)
	if err != nil {
		return Generation{}, fmt.Errorf("create staging dir: %w", err)
	}
	return Generation{Name: filepath.Base(dir), Dir: dir}, nil
}

// promote renames a staging generation to its final name and swaps CURRENT to it.
func promote(root string, staging Generation, stamp string, now time.Time) (Generation, error) {
	prefix := stamp
	if len(prefix) > stampPrefixSize {
		prefix = prefix[:stampPrefixSize]
	}
	name := fmt.Sprintf("%s-%d", prefix, now.UnixNano())
	final := Generation{Name: name, Dir: filepath.Join(root, generationsDir, name)}

	if err := os.Rename(staging.Dir, final.Dir); err != nil {
		return Generation{}, fmt.Errorf("finalize generation: %w", err)
	}

	tmp, err := os.CreateTemp(root, "."+currentFile+"-")
	if err != nil {
		return Generation{}, fmt.Errorf("create pointer temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(name + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Generation{}, fmt.Errorf("write pointer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Generation{}, fmt.Errorf("sync pointer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Generation{}, fmt.Errorf("close pointer: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(root, currentFile)); err != nil {
		os.Remove(tmpName)
		return Generation{}, fmt.Errorf("swap current pointer: %w", err)
	}
	return final, nil
}

// Prune removes published generations beyond the newest keep. The current
// generation and staging directories are never removed.
func Prune(root string, keep int) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, generationsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list generations: %w", err)
	}

	current := ""
	if gen, err := Current(root); err == nil {
		current = gen.Name
	}

	type published struct {
		name    string
		builtAt int64
	}
	var gens []published
	var removed []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == current {
			continue
		}
		if strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		builtAt, ok := generationTime(e.Name())
		if !ok {
			continue
		}
		gens = append(gens, published{name: e.Name(), builtAt: builtAt})
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i].builtAt > gens[j].builtAt })

	// The current generation counts toward keep.
	keepOthers := keep
	if current != "" {
		keepOthers--
	}
	for i, g := range gens {
		if i < keepOthers {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, generationsDir, g.name)); err != nil {
			return removed, fmt.Errorf("remove generation %s: %w", g.name, err)
		}
		removed = append(removed, g.name)
	}
	return removed, nil
}

func generationTime(name string) (int64, bool) {
	i := strings.LastIndexByte(name, '-')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(name[i+1:], 10, 64)
	return n, err == nil
}
