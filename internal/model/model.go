// Package model defines core data structures for litec-analyzer.
package model

import "strings"

// SymbolKind indicates the syntactic kind of a declared symbol.
type SymbolKind string

const (
	VoidFunc      SymbolKind = "void"
	ValueFunc     SymbolKind = "function"
	Action        SymbolKind = "action"
	Struct        SymbolKind = "struct"
	TypedefStruct SymbolKind = "typedef_struct"
	Static        SymbolKind = "static"
)

// SymbolKinds lists every kind in report order.
var SymbolKinds = []SymbolKind{VoidFunc, ValueFunc, Action, Struct, TypedefStruct, Static}

// IsCallable reports whether k is one of the three callable kinds.
func (k SymbolKind) IsCallable() bool {
	return k == VoidFunc || k == ValueFunc || k == Action
}

// GlobalContext is the enclosing context of declarations outside any callable.
const GlobalContext = "global"

// IncludeStyle distinguishes "quoted" from <angled> include references.
type IncludeStyle string

const (
	Quoted IncludeStyle = "quoted"
	Angled IncludeStyle = "angled"
)

// Mode is the entry mode of an analysis run.
type Mode string

const (
	// IncludeTracking starts from one main file and follows includes.
	IncludeTracking Mode = "include"
	// WholeTree visits every source file of the tree independently.
	WholeTree Mode = "tree"
)

// Symbol is a single declaration found by the line classifier.
type Symbol struct {
	Kind      SymbolKind `json:"kind"`
	Name      string     `json:"name"`
	Line      int        `json:"line"`
	Context   string     `json:"context,omitempty"`
	Duplicate bool       `json:"duplicate,omitempty"`
	Count     int        `json:"count,omitempty"`
}

// Include is one #include reference of a file.
// Resolved is empty when the reference could not be matched.
type Include struct {
	Name         string       `json:"name"`
	Line         int          `json:"line"`
	Style        IncludeStyle `json:"style"`
	Resolved     string       `json:"resolved,omitempty"`
	FoundIn      string       `json:"foundIn,omitempty"`
	ViaSearchDir bool         `json:"viaSearchDir,omitempty"`
	Backslash    bool         `json:"backslash,omitempty"`
	Skipped      bool         `json:"skipped,omitempty"`
}

// IsResolved reports whether the include was matched to a file on disk.
func (i Include) IsResolved() bool {
	return i.Resolved != ""
}

// SearchDir is an extra include directory declared by a source file.
type SearchDir struct {
	Path      string `json:"path"`
	Directive string `json:"directive"`
	Source    string `json:"source"`
	Line      int    `json:"line"`
	Backslash bool   `json:"backslash,omitempty"`
}

// DirUsage counts how many includes were satisfied by a directory.
type DirUsage struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// FileRecord holds everything learned about one analyzed file.
type FileRecord struct {
	Path         string      `json:"path"`
	Name         string      `json:"name"`
	Dir          string      `json:"dir"`
	Depth        int         `json:"depth"`
	Visits       int         `json:"visits"`
	Used         bool        `json:"used"`
	DeepChain    bool        `json:"deepChain,omitempty"`
	Cyclic       bool        `json:"cyclic,omitempty"`
	SyntaxErrors int         `json:"syntaxErrors,omitempty"`
	Rank         float64     `json:"rank,omitempty"`
	Includes     []Include   `json:"includes,omitempty"`
	SearchDirs   []SearchDir `json:"searchDirs,omitempty"`
	Symbols      []Symbol    `json:"symbols,omitempty"`
	Duplicates   []Symbol    `json:"duplicates,omitempty"`
}

// SymbolsOf returns the symbols of the given kind in declaration order.
func (f *FileRecord) SymbolsOf(kind SymbolKind) []Symbol {
	var out []Symbol
	for _, s := range f.Symbols {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// DirStats aggregates declaration counts for one project directory.
type DirStats struct {
	Dir        string `json:"dir"`
	Files      int    `json:"files"`
	Callables  int    `json:"callables"`
	Structs    int    `json:"structs"`
	Includes   int    `json:"includes"`
	Statics    int    `json:"statics"`
	Overloads  int    `json:"overloads"`
	Duplicates int    `json:"duplicates"`
}

// NameCount is a registered name with the number of declarations seen for
// it across the run. Static names use the "context::name" key.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Dependency is an edge of the include graph: Source includes Target.
type Dependency struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Names  []string `json:"names"`
}

// Snapshot is the flat, read-only result of an analysis run.
type Snapshot struct {
	Root               string       `json:"root"`
	Mode               Mode         `json:"mode"`
	Files              []FileRecord `json:"files"`
	SearchDirs         []SearchDir  `json:"searchDirs,omitempty"`
	DirUsage           []DirUsage   `json:"dirUsage,omitempty"`
	DirStats           []DirStats   `json:"dirStats,omitempty"`
	Dependencies       []Dependency `json:"dependencies,omitempty"`
	Cycles             [][]string   `json:"cycles,omitempty"`
	CycleGroups        [][]string   `json:"cycleGroups,omitempty"`
	Unreadable         []string     `json:"unreadable,omitempty"`
	Unresolved         int          `json:"unresolved"`
	DuplicateCallables int          `json:"duplicateCallables"`
	DuplicateStatics   int          `json:"duplicateStatics"`
	OverloadedNames    []NameCount  `json:"overloadedNames,omitempty"`
	DuplicateScoped    []NameCount  `json:"duplicateScoped,omitempty"`
	Truncated          bool         `json:"truncated,omitempty"`
}

// UsedFiles returns the number of files marked used.
func (s *Snapshot) UsedFiles() int {
	n := 0
	for i := range s.Files {
		if s.Files[i].Used {
			n++
		}
	}
	return n
}

// CyclicFiles returns the number of files participating in an include cycle.
func (s *Snapshot) CyclicFiles() int {
	n := 0
	for i := range s.Files {
		if s.Files[i].Cyclic {
			n++
		}
	}
	return n
}

// DeepFiles returns the number of files flagged for an excessive include depth.
func (s *Snapshot) DeepFiles() int {
	n := 0
	for i := range s.Files {
		if s.Files[i].DeepChain {
			n++
		}
	}
	return n
}

// File returns the record for path, or nil.
func (s *Snapshot) File(path string) *FileRecord {
	for i := range s.Files {
		if s.Files[i].Path == path {
			return &s.Files[i]
		}
	}
	return nil
}

// Reportable returns the files that belong in a report: in include-tracking
// mode only used files, otherwise all.
func (s *Snapshot) Reportable() []FileRecord {
	if s.Mode != IncludeTracking {
		return s.Files
	}
	var out []FileRecord
	for _, f := range s.Files {
		if f.Used {
			out = append(out, f)
		}
	}
	return out
}

// Rel returns p relative to the snapshot root, or p itself when it lies
// outside the root.
func (s *Snapshot) Rel(p string) string {
	root := strings.TrimSuffix(s.Root, "/")
	if root == "" {
		return p
	}
	if rel, ok := strings.CutPrefix(p, root+"/"); ok {
		return rel
	}
	return p
}
