// Package discover finds analyzable source files in a project tree.
package discover

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path string // Relative to the project root, slash separated
	Abs  string // Root joined with Path
}

// Options controls which files are returned.
type Options struct {
	// Extensions lists the accepted file extensions, e.g. ".c".
	Extensions []string
	// Exclude holds doublestar patterns matched against the relative path.
	Exclude []string
	// Skip lists relative paths of files that are never accepted, such as
	// files the analyzer writes itself.
	Skip []string
}

var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	".vs":          {},
	".vscode":      {},
	".idea":        {},
	"node_modules": {},
	"build":        {},
	"dist":         {},
	"bin":          {},
	"obj":          {},
}

// Matcher decides which directories and files of a project tree take part
// in an analysis.
type Matcher struct {
	root    string
	exts    map[string]struct{}
	exclude []string
	skip    map[string]struct{}
	gi      *ignore.GitIgnore
}

// NewMatcher validates the exclude patterns of opts and loads the root
// .gitignore from fs.
func NewMatcher(fs afero.Fs, root string, opts Options) (*Matcher, error) {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, &PatternError{Pattern: pattern}
		}
	}

	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	skip := make(map[string]struct{}, len(opts.Skip))
	for _, s := range opts.Skip {
		skip[path.Clean(filepath.ToSlash(s))] = struct{}{}
	}
	return &Matcher{
		root:    root,
		exts:    exts,
		exclude: opts.Exclude,
		skip:    skip,
		gi:      loadGitignore(fs, root),
	}, nil
}

// SkipDir reports whether the directory at p is left out together with
// everything below it. The root itself is never skipped.
func (m *Matcher) SkipDir(p string) bool {
	rel, ok := m.rel(p)
	if !ok {
		return true
	}
	if rel == "." {
		return false
	}
	name := path.Base(rel)
	if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
		return true
	}
	return excluded(m.exclude, rel) || (m.gi != nil && m.gi.MatchesPath(rel+"/"))
}

// Accept reports whether the file at p is an analyzable source file.
func (m *Matcher) Accept(p string) bool {
	rel, ok := m.rel(p)
	if !ok || rel == "." {
		return false
	}
	name := path.Base(rel)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if _, ok := m.skip[rel]; ok {
		return false
	}
	if _, ok := m.exts[strings.ToLower(path.Ext(name))]; !ok {
		return false
	}
	return !excluded(m.exclude, rel) && (m.gi == nil || !m.gi.MatchesPath(rel))
}

func (m *Matcher) rel(p string) (string, bool) {
	rel, err := filepath.Rel(m.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Files discovers source files under root on fs. Files ignored by the root
// .gitignore, matching an exclude pattern, hidden, or symlinked are skipped.
// Results are sorted by path.
func Files(fs afero.Fs, root string, opts Options) ([]FileEntry, error) {
	m, err := NewMatcher(fs, root, opts)
	if err != nil {
		return nil, err
	}

	var results []FileEntry

	err = afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}

		if info.IsDir() {
			if p != root && m.SkipDir(p) {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		if !m.Accept(p) {
			return nil
		}

		rel, _ := m.rel(p)
		results = append(results, FileEntry{Path: rel, Abs: filepath.ToSlash(filepath.Join(root, rel))})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// Paths returns the absolute paths of entries.
func Paths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Abs
	}
	return out
}

// PatternError reports an invalid exclude pattern.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return "invalid exclude pattern " + `"` + e.Pattern + `"`
}

func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func loadGitignore(fs afero.Fs, root string) *ignore.GitIgnore {
	data, err := afero.ReadFile(fs, filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
}
