// Package resolve maps include references to files on disk.
package resolve

import (
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ExistsFunc reports whether path names an existing regular file.
type ExistsFunc func(path string) bool

// FileExists returns an ExistsFunc backed by fs.
func FileExists(fs afero.Fs) ExistsFunc {
	return func(p string) bool {
		info, err := fs.Stat(p)
		return err == nil && info.Mode().IsRegular()
	}
}

// Normalize converts every separator to '/' and cleans the result, so that
// mixed-separator spellings of one path compare equal.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// HasBackslash reports whether p uses the non-canonical separator.
func HasBackslash(p string) bool {
	return strings.Contains(p, `\`)
}

// Result describes a successful resolution.
type Result struct {
	Path         string // normalized path of the matched file
	Dir          string // directory the match was found in
	ViaSearchDir bool   // found in neither the current directory nor the root
	Backslash    bool   // the reference text contained a backslash
}

// Resolver searches the current directory, the project root and the
// registered extra search directories, in that order.
type Resolver struct {
	root   string
	exists ExistsFunc
	extra  []string
}

// New creates a resolver rooted at root.
func New(root string, exists ExistsFunc) *Resolver {
	return &Resolver{root: Normalize(root), exists: exists}
}

// Root returns the normalized project root.
func (r *Resolver) Root() string {
	return r.root
}

// AddSearchDir appends dir (relative to the root) to the search order.
// Directories are consulted in registration order by every later call.
func (r *Resolver) AddSearchDir(dir string) {
	r.extra = append(r.extra, dir)
}

// Resolve looks up ref starting from currentDir. The first existing
// candidate wins; ok is false when no candidate exists.
func (r *Resolver) Resolve(ref, currentDir string) (res Result, ok bool) {
	name := strings.ReplaceAll(ref, `\`, "/")
	backslash := HasBackslash(ref)
	current := Normalize(currentDir)

	candidates := make([]string, 0, 2+len(r.extra))
	candidates = append(candidates, current, r.root)
	for _, dir := range r.extra {
		candidates = append(candidates, Normalize(r.root+"/"+dir))
	}

	for i, dir := range candidates {
		p := Normalize(dir + "/" + name)
		if !r.exists(p) {
			continue
		}
		return Result{
			Path:         p,
			Dir:          dir,
			ViaSearchDir: i >= 2 && dir != r.root && dir != current,
			Backslash:    backslash,
		}, true
	}
	return Result{Backslash: backslash}, false
}
