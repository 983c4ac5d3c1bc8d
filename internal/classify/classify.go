// Package classify extracts structural findings from single source lines.
//
// The classifier is a line-local heuristic, not a parser. It misreads
// declarations split across lines, declarations inside comments that do not
// start the line, and declarations preceded by qualifiers it does not know.
package classify

import (
	"regexp"
	"strings"

	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
)

// Kind is the category of a Finding.
type Kind int

const (
	SearchDirKind Kind = iota
	IncludeKind
	SymbolKind
)

// Finding is one structural fact extracted from a line.
type Finding struct {
	Kind Kind
	// Value is the directory for SearchDirKind, the referenced name for
	// IncludeKind and the declared name for SymbolKind.
	Value     string
	Style     model.IncludeStyle
	Symbol    model.SymbolKind
	Context   string
	Backslash bool
	// Directive is the macro name that declared a search directory.
	Directive string
}

// Classifier turns one line into zero or more findings, threading per-file
// state across the lines of a file.
type Classifier interface {
	Classify(line string, st *State) []Finding
}

// State is the running per-file context owned by the caller. A fresh
// State must be used for every file.
type State struct {
	Function   string
	InFunction bool
	Depth      int
	aliases    map[string]struct{}
}

// Context returns the enclosing callable name, or the global sentinel.
func (s *State) Context() string {
	if s.InFunction && s.Function != "" {
		return s.Function
	}
	return model.GlobalContext
}

func (s *State) seenAlias(name string) bool {
	if s.aliases == nil {
		s.aliases = make(map[string]struct{})
	}
	if _, ok := s.aliases[name]; ok {
		return true
	}
	s.aliases[name] = struct{}{}
	return false
}

// Callable pairs a leading keyword with the symbol kind it introduces.
type Callable struct {
	Keyword string
	Kind    model.SymbolKind
}

// Options configures a Heuristic classifier.
type Options struct {
	// Directives are the macro names whose quoted value registers an extra
	// include search directory, e.g. EXTRA_PATH.
	Directives []string
	Callables  []Callable
}

// DefaultOptions recognizes EXTRA_PATH and PRAGMA_PATH and the void,
// function and action callable keywords.
func DefaultOptions() Options {
	return Options{
		Directives: []string{"EXTRA_PATH", "PRAGMA_PATH"},
		Callables: []Callable{
			{Keyword: "void", Kind: model.VoidFunc},
			{Keyword: "function", Kind: model.ValueFunc},
			{Keyword: "action", Kind: model.Action},
		},
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Heuristic is the pattern-based Classifier.
type Heuristic struct {
	opts Options
}

// NewHeuristic creates a heuristic classifier.
func NewHeuristic(opts Options) *Heuristic {
	return &Heuristic{opts: opts}
}

// Classify implements Classifier.
func (h *Heuristic) Classify(line string, st *State) []Finding {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "/*") {
		return nil
	}

	var out []Finding

	for _, directive := range h.opts.Directives {
		if dir, ok := matchDirective(line, directive); ok {
			out = append(out, Finding{
				Kind:      SearchDirKind,
				Value:     dir,
				Backslash: strings.Contains(dir, `\`),
				Directive: directive,
			})
			break
		}
	}

	if name, style, ok := matchInclude(line); ok {
		out = append(out, Finding{
			Kind:      IncludeKind,
			Value:     name,
			Style:     style,
			Backslash: style == model.Quoted && strings.Contains(name, `\`),
		})
	}

	var callables []Finding
	for _, c := range h.opts.Callables {
		if name, ok := matchCallable(line, c.Keyword); ok {
			callables = append(callables, Finding{
				Kind:    SymbolKind,
				Value:   name,
				Symbol:  c.Kind,
				Context: model.GlobalContext,
			})
		}
	}
	if len(callables) > 0 {
		st.Function = callables[0].Value
		st.InFunction = true
		st.Depth = 0
	}
	st.Depth += strings.Count(line, "{") - strings.Count(line, "}")
	if st.InFunction && st.Depth <= 0 && strings.Contains(line, "}") {
		st.InFunction = false
		st.Function = ""
	}
	out = append(out, callables...)

	if name, ok := matchStruct(line); ok {
		out = append(out, Finding{Kind: SymbolKind, Value: name, Symbol: model.Struct, Context: st.Context()})
	}

	if name, ok := matchTypedefStruct(line); ok && !st.seenAlias(name) {
		out = append(out, Finding{Kind: SymbolKind, Value: name, Symbol: model.TypedefStruct, Context: st.Context()})
	}

	if name, ok := matchStatic(line); ok {
		out = append(out, Finding{Kind: SymbolKind, Value: name, Symbol: model.Static, Context: st.Context()})
	}

	return out
}

func matchDirective(line, directive string) (string, bool) {
	idx := strings.Index(line, "#define "+directive)
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimLeft(line[idx+len("#define ")+len(directive):], " \t")
	if !strings.HasPrefix(rest, `"`) {
		return "", false
	}
	rest = rest[1:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func matchInclude(line string) (string, model.IncludeStyle, bool) {
	idx := strings.Index(line, "#include")
	if idx < 0 {
		return "", "", false
	}
	rest := strings.TrimLeft(line[idx+len("#include"):], " \t")
	switch {
	case strings.HasPrefix(rest, `"`):
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return "", "", false
		}
		return rest[1 : end+1], model.Quoted, true
	case strings.HasPrefix(rest, "<"):
		end := strings.IndexByte(rest[1:], '>')
		if end < 0 {
			return "", "", false
		}
		return rest[1 : end+1], model.Angled, true
	}
	return "", "", false
}

func matchCallable(line, keyword string) (string, bool) {
	if !strings.HasPrefix(line, keyword+" ") {
		return "", false
	}
	rest := strings.TrimLeft(line[len(keyword)+1:], " \t")
	paren := strings.IndexByte(rest, '(')
	if paren < 0 {
		return "", false
	}
	name := strings.TrimSpace(rest[:paren])
	return name, name != ""
}

func matchStruct(line string) (string, bool) {
	if !strings.HasPrefix(line, "struct ") {
		return "", false
	}
	rest := strings.TrimLeft(line[len("struct "):], " \t")
	brace := strings.IndexByte(rest, '{')
	if brace < 0 {
		return "", false
	}
	name := strings.TrimSpace(rest[:brace])
	return name, name != ""
}

// matchTypedefStruct recognizes both the opening "typedef struct Name" line
// and a closing "} Alias;" line.
func matchTypedefStruct(line string) (string, bool) {
	if strings.HasPrefix(line, "typedef struct ") {
		rest := strings.TrimLeft(line[len("typedef struct "):], " \t")
		end := strings.IndexAny(rest, " \t{")
		if end < 0 {
			end = len(rest)
		}
		if end > 0 {
			return rest[:end], true
		}
	}

	brace := strings.IndexByte(line, '}')
	if brace < 0 {
		return "", false
	}
	rest := strings.TrimLeft(line[brace+1:], " \t")
	semi := strings.IndexByte(rest, ';')
	if semi <= 0 {
		return "", false
	}
	alias := strings.TrimSpace(rest[:semi])
	if !identRe.MatchString(alias) {
		return "", false
	}
	return alias, true
}

func matchStatic(line string) (string, bool) {
	if !strings.HasPrefix(line, "static ") {
		return "", false
	}
	rest := strings.TrimLeft(line[len("static "):], " \t")
	space := strings.IndexByte(rest, ' ')
	if space < 0 {
		return "", false
	}
	rest = strings.TrimLeft(rest[space+1:], " \t*&")
	end := strings.IndexAny(rest, " \t=;[(")
	if end < 0 {
		end = len(rest)
	}
	name := rest[:end]
	return name, name != ""
}
