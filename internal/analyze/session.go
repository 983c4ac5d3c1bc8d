// Package analyze walks include chains and builds the per-file records of an
// analysis run.
package analyze

import (
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/egammo/lite-c-dependency-analyzer/internal/classify"
	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
	"github.com/egammo/lite-c-dependency-analyzer/internal/registry"
	"github.com/egammo/lite-c-dependency-analyzer/internal/resolve"
)

const (
	// DefaultMaxDepth is the include depth used when Options.MaxDepth is unset.
	DefaultMaxDepth = 10
	// DefaultMaxFiles is the record capacity used when Options.MaxFiles is unset.
	DefaultMaxFiles = 1000
)

// SyntaxChecker counts syntax errors in a file's source.
type SyntaxChecker interface {
	CountErrors(path string, source []byte) int
}

// Options configures a Session.
type Options struct {
	// Root is the project root every include is resolved against.
	Root string
	// MaxDepth is the include depth beyond which a branch is abandoned.
	MaxDepth int
	// MaxFiles caps the number of file records; later files are ignored.
	MaxFiles int
	// Classifier defaults to the heuristic classifier with default options.
	Classifier classify.Classifier
	// Syntax, when set, is run over the source of every record.
	Syntax SyntaxChecker
	Logger *slog.Logger
}

// Session is one analysis run: it owns the visited-file map, the include
// stack, the name registries and the search directory list. A Session is not
// safe for concurrent use.
type Session struct {
	fs       afero.Fs
	opts     Options
	log      *slog.Logger
	resolver *resolve.Resolver
	names    *registry.Registry

	mode   model.Mode
	follow bool

	files      map[string]*model.FileRecord
	order      []string
	stack      []string
	searchDirs []model.SearchDir
	usage      []model.DirUsage
	usageIndex map[string]int
	cycles     [][]string
	unreadable []string
	unresolved int
	truncated  bool
}

// New creates a session reading files from fs.
func New(fs afero.Fs, opts Options) *Session {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.Classifier == nil {
		opts.Classifier = classify.NewHeuristic(classify.DefaultOptions())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Session{
		fs:         fs,
		opts:       opts,
		log:        logger,
		resolver:   resolve.New(opts.Root, resolve.FileExists(fs)),
		names:      registry.New(),
		mode:       model.IncludeTracking,
		follow:     true,
		files:      make(map[string]*model.FileRecord),
		usageIndex: make(map[string]int),
	}
}

// record returns the file record for a normalized path.
func (s *Session) record(p string) (*model.FileRecord, bool) {
	rec, ok := s.files[p]
	return rec, ok
}

// addRecord stores a new record. It returns false once MaxFiles is reached.
func (s *Session) addRecord(rec *model.FileRecord) bool {
	if len(s.files) >= s.opts.MaxFiles {
		if !s.truncated {
			s.log.Debug("file limit reached, ignoring further files", "limit", s.opts.MaxFiles)
		}
		s.truncated = true
		return false
	}
	s.files[rec.Path] = rec
	s.order = append(s.order, rec.Path)
	return true
}

// addSearchDir registers a directory declared by a source file. It is visible
// to every resolution from now on, including those of files already on the
// stack.
func (s *Session) addSearchDir(dir model.SearchDir) {
	s.searchDirs = append(s.searchDirs, dir)
	s.resolver.AddSearchDir(dir.Path)
}

// useDir counts one include satisfied by dir.
func (s *Session) useDir(dir string) {
	key := resolve.Normalize(dir)
	if i, ok := s.usageIndex[key]; ok {
		s.usage[i].Count++
		return
	}
	s.usageIndex[key] = len(s.usage)
	s.usage = append(s.usage, model.DirUsage{Path: key, Count: 1})
}

// relativeDir returns the directory of p relative to the project root, "."
// for the root itself. Paths outside the root keep their absolute directory.
func (s *Session) relativeDir(p string) string {
	dir := path.Dir(p)
	root := s.resolver.Root()
	if dir == root {
		return "."
	}
	if rel, ok := strings.CutPrefix(dir, strings.TrimSuffix(root, "/")+"/"); ok {
		return rel
	}
	return dir
}

// Snapshot returns a copy of everything recorded so far, files in discovery
// order.
func (s *Session) Snapshot() *model.Snapshot {
	snap := &model.Snapshot{
		Root:       s.resolver.Root(),
		Mode:       s.mode,
		SearchDirs: append([]model.SearchDir(nil), s.searchDirs...),
		DirUsage:   append([]model.DirUsage(nil), s.usage...),
		Unreadable: append([]string(nil), s.unreadable...),
		Unresolved: s.unresolved,
		Truncated:  s.truncated,
	}
	snap.OverloadedNames = nameCounts(s.names.DuplicateCallables())
	snap.DuplicateScoped = nameCounts(s.names.DuplicateScoped())
	for _, c := range s.cycles {
		snap.Cycles = append(snap.Cycles, append([]string(nil), c...))
	}

	stats := make(map[string]*model.DirStats)
	for _, p := range s.order {
		rec := s.files[p]
		cp := *rec
		cp.Includes = append([]model.Include(nil), rec.Includes...)
		cp.SearchDirs = append([]model.SearchDir(nil), rec.SearchDirs...)
		cp.Symbols = append([]model.Symbol(nil), rec.Symbols...)
		cp.Duplicates = append([]model.Symbol(nil), rec.Duplicates...)
		snap.Files = append(snap.Files, cp)

		st, ok := stats[rec.Dir]
		if !ok {
			st = &model.DirStats{Dir: rec.Dir}
			stats[rec.Dir] = st
		}
		st.Files++
		st.Includes += len(rec.Includes)
		for _, sym := range rec.Symbols {
			switch {
			case sym.Kind.IsCallable():
				st.Callables++
				if sym.Duplicate {
					st.Overloads++
					snap.DuplicateCallables++
				}
			case sym.Kind == model.Struct || sym.Kind == model.TypedefStruct:
				st.Structs++
			case sym.Kind == model.Static:
				st.Statics++
				if sym.Duplicate {
					st.Duplicates++
					snap.DuplicateStatics++
				}
			}
		}
	}

	for _, st := range stats {
		snap.DirStats = append(snap.DirStats, *st)
	}
	sort.Slice(snap.DirStats, func(i, j int) bool {
		return snap.DirStats[i].Dir < snap.DirStats[j].Dir
	})

	return snap
}

func nameCounts(entries []registry.Entry) []model.NameCount {
	var out []model.NameCount
	for _, e := range entries {
		out = append(out, model.NameCount{Name: e.Key, Count: e.Count})
	}
	return out
}
