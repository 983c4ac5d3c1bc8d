package analyze

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/egammo/lite-c-dependency-analyzer/internal/classify"
	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
	"github.com/egammo/lite-c-dependency-analyzer/internal/resolve"
)

const maxLineSize = 1 << 20

// Analyze runs include tracking from the start file mainFile. Problems
// below the start file are recorded on the snapshot; only a start file that
// cannot be read fails the run.
func (s *Session) Analyze(mainFile string) error {
	if s.resolver.Root() == "" {
		return ErrNoRoot
	}
	s.mode = model.IncludeTracking
	s.follow = true

	p := resolve.Normalize(mainFile)
	s.visit(p, 0)
	if _, ok := s.record(p); !ok {
		return fmt.Errorf("%w: %s", ErrUnreadableRoot, mainFile)
	}
	return nil
}

// AnalyzeTree classifies every file in paths independently at depth 0.
// Includes are resolved and recorded but never followed, and the used flag
// is not maintained.
func (s *Session) AnalyzeTree(paths []string) error {
	if s.resolver.Root() == "" {
		return ErrNoRoot
	}
	s.mode = model.WholeTree
	s.follow = false

	for _, p := range paths {
		s.visit(resolve.Normalize(p), 0)
	}
	return nil
}

// visit analyzes p and, depth first, every file it includes.
func (s *Session) visit(p string, depth int) {
	if depth > s.opts.MaxDepth {
		s.log.Warn("include depth limit reached", "file", p, "depth", depth, "limit", s.opts.MaxDepth)
		return
	}

	if i := s.stackIndex(p); i >= 0 {
		s.recordCycle(i, p)
	}

	if rec, ok := s.record(p); ok {
		if s.follow {
			rec.Used = true
		}
		rec.Visits++
		return
	}

	// A cycle closing on p always finds p's record above, so p is pushed at
	// most once.
	s.stack = append(s.stack, p)
	defer func() { s.stack = s.stack[:len(s.stack)-1] }()

	f, err := s.fs.Open(p)
	if err != nil {
		s.log.Warn("could not read file", "file", p, "error", err)
		s.unreadable = append(s.unreadable, p)
		return
	}
	defer f.Close()

	rec := &model.FileRecord{
		Path:      p,
		Name:      path.Base(p),
		Dir:       s.relativeDir(p),
		Depth:     depth,
		Visits:    1,
		Used:      s.follow,
		DeepChain: depth > s.opts.MaxDepth,
	}
	if !s.addRecord(rec) {
		return
	}

	s.log.Info("analyzing", "file", rec.Name, "depth", depth, "dir", rec.Dir)

	var src io.Reader = f
	var buf *bytes.Buffer
	if s.opts.Syntax != nil {
		buf = &bytes.Buffer{}
		src = io.TeeReader(f, buf)
	}

	s.scan(rec, src, depth)

	if buf != nil {
		rec.SyntaxErrors = s.opts.Syntax.CountErrors(p, buf.Bytes())
		if rec.SyntaxErrors > 0 {
			s.log.Debug("syntax errors", "file", rec.Name, "count", rec.SyntaxErrors)
		}
	}
}

// scan feeds every line of src to the classifier and applies the findings
// to rec.
func (s *Session) scan(rec *model.FileRecord, src io.Reader, depth int) {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	st := &classify.State{}
	currentDir := path.Dir(rec.Path)
	lineNum := 0

	for sc.Scan() {
		lineNum++
		for _, fd := range s.opts.Classifier.Classify(sc.Text(), st) {
			switch fd.Kind {
			case classify.SearchDirKind:
				dir := model.SearchDir{
					Path:      fd.Value,
					Directive: fd.Directive,
					Source:    rec.Path,
					Line:      lineNum,
					Backslash: fd.Backslash,
				}
				rec.SearchDirs = append(rec.SearchDirs, dir)
				s.addSearchDir(dir)
				s.log.Info("found search directory", "dir", fd.Value, "file", rec.Name, "line", lineNum, "backslash", fd.Backslash)
			case classify.IncludeKind:
				s.include(rec, fd, lineNum, currentDir, depth)
			case classify.SymbolKind:
				s.declare(rec, fd, lineNum)
			}
		}
	}
	if err := sc.Err(); err != nil {
		s.log.Warn("stopped reading file", "file", rec.Path, "line", lineNum, "error", err)
	}
}

func (s *Session) include(rec *model.FileRecord, fd classify.Finding, line int, currentDir string, depth int) {
	inc := model.Include{
		Name:      fd.Value,
		Line:      line,
		Style:     fd.Style,
		Backslash: fd.Backslash,
	}

	if fd.Style == model.Angled {
		inc.Skipped = true
		rec.Includes = append(rec.Includes, inc)
		s.log.Debug("skipping system include", "name", fd.Value, "file", rec.Name, "line", line)
		return
	}

	res, ok := s.resolver.Resolve(fd.Value, currentDir)
	if !ok {
		s.unresolved++
		rec.Includes = append(rec.Includes, inc)
		s.log.Warn("include file not found", "name", fd.Value, "file", rec.Name, "line", line)
		return
	}

	inc.Resolved = res.Path
	inc.FoundIn = res.Dir
	inc.ViaSearchDir = res.ViaSearchDir
	s.useDir(res.Dir)

	if s.follow {
		if depth+1 > s.opts.MaxDepth {
			rec.DeepChain = true
		}
		s.visit(res.Path, depth+1)
	}
	rec.Includes = append(rec.Includes, inc)
}

func (s *Session) declare(rec *model.FileRecord, fd classify.Finding, line int) {
	sym := model.Symbol{
		Kind:    fd.Symbol,
		Name:    fd.Value,
		Line:    line,
		Context: fd.Context,
	}

	count := 0
	switch {
	case sym.Kind.IsCallable():
		count = s.names.RegisterCallable(sym.Name)
	case sym.Kind == model.Static:
		count = s.names.RegisterScoped(sym.Name, sym.Context)
	}
	if count > 1 {
		sym.Duplicate = true
		sym.Count = count
		rec.Duplicates = append(rec.Duplicates, sym)
	}
	rec.Symbols = append(rec.Symbols, sym)
}

func (s *Session) stackIndex(p string) int {
	for i, q := range s.stack {
		if q == p {
			return i
		}
	}
	return -1
}

// recordCycle flags every file from stack[from] to the top of the stack and
// stores the chain closed by p.
func (s *Session) recordCycle(from int, p string) {
	chain := append(append([]string(nil), s.stack[from:]...), p)
	s.cycles = append(s.cycles, chain)

	names := make([]string, len(chain))
	for i, q := range chain {
		names[i] = path.Base(q)
		if rec, ok := s.record(q); ok {
			rec.Cyclic = true
		}
	}
	s.log.Warn("circular include detected", "chain", names)
}
