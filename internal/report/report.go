// Package report renders a snapshot as a human readable text report, a
// console summary or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
)

const separator = "----------------------------------------"

// heavyIncludes is the include count above which a file is a heavy dependency.
const heavyIncludes = 3

var kindHeadings = map[model.SymbolKind]string{
	model.VoidFunc:      "VOID FUNCTIONS",
	model.ValueFunc:     "FUNCTIONS",
	model.Action:        "ACTIONS",
	model.Struct:        "STRUCTS",
	model.TypedefStruct: "TYPEDEF STRUCTS",
	model.Static:        "STATIC VARIABLES",
}

// Text renders the full report. Files appear in discovery order; in
// include-tracking mode unused files are left out.
func Text(snap *model.Snapshot) string {
	var b strings.Builder
	tracking := snap.Mode == model.IncludeTracking

	b.WriteString("=== LITE-C DEPENDENCY ANALYSIS ===\n\n")
	fmt.Fprintf(&b, "Analysis Mode: %s\n", modeName(snap.Mode))
	fmt.Fprintf(&b, "Project Root: %s\n", snap.Root)
	fmt.Fprintf(&b, "Total Files Found: %d\n", len(snap.Files))
	fmt.Fprintf(&b, "Actually Used Files: %d\n", snap.UsedFiles())
	fmt.Fprintf(&b, "Search Directories Found: %d\n", len(snap.SearchDirs))
	fmt.Fprintf(&b, "Files with Circular Includes: %d\n", snap.CyclicFiles())
	fmt.Fprintf(&b, "Files with Performance Problems: %d\n", snap.DeepFiles())
	fmt.Fprintf(&b, "Unresolved Includes: %d\n", snap.Unresolved)
	if snap.Truncated {
		b.WriteString("File limit reached: further files were ignored\n")
	}
	b.WriteString("\n")

	if len(snap.Cycles) > 0 {
		b.WriteString("=== CIRCULAR INCLUDE WARNINGS ===\n")
		for _, f := range snap.Files {
			if f.Cyclic && (f.Used || !tracking) {
				fmt.Fprintf(&b, "WARNING: %s (depth %d) - Part of circular include chain\n", f.Name, f.Depth)
			}
		}
		for _, c := range snap.Cycles {
			fmt.Fprintf(&b, "CHAIN: %s\n", joinRel(snap, c, " -> "))
		}
		b.WriteString("\n")
	}

	if len(snap.SearchDirs) > 0 {
		b.WriteString("=== SEARCH DIRECTORIES ===\n")
		for _, d := range snap.SearchDirs {
			fmt.Fprintf(&b, "%04d  #define %s \"%s\" (in %s)%s\n",
				d.Line, d.Directive, d.Path, baseName(d.Source), backslash(d.Backslash))
		}
		b.WriteString("\n")
	}

	for _, f := range snap.Reportable() {
		writeFile(&b, snap, &f, tracking)
	}

	if len(snap.DirUsage) > 0 {
		b.WriteString("=== DIRECTORY USAGE ===\n")
		for _, u := range snap.DirUsage {
			fmt.Fprintf(&b, "%s: %d includes\n", displayDir(snap, u.Path), u.Count)
		}
		b.WriteString("\n")
	}

	if len(snap.DirStats) > 0 {
		b.WriteString("=== DIRECTORY STATISTICS ===\n")
		for _, st := range snap.DirStats {
			fmt.Fprintf(&b, "%s: %d files, %d callables, %d structs, %d includes, %d statics",
				st.Dir, st.Files, st.Callables, st.Structs, st.Includes, st.Statics)
			if st.Overloads > 0 || st.Duplicates > 0 {
				fmt.Fprintf(&b, " (%d overloads, %d duplicates)", st.Overloads, st.Duplicates)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(snap.OverloadedNames) > 0 || len(snap.DuplicateScoped) > 0 {
		b.WriteString("=== DUPLICATE NAMES ===\n")
		for _, n := range snap.OverloadedNames {
			fmt.Fprintf(&b, "callable %s: %d declarations\n", n.Name, n.Count)
		}
		for _, n := range snap.DuplicateScoped {
			fmt.Fprintf(&b, "static %s: %d declarations\n", n.Name, n.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("=== SUMMARY ===\n")
	fmt.Fprintf(&b, "Total Files Analyzed: %d\n", len(snap.Reportable()))
	fmt.Fprintf(&b, "Files with Circular Includes: %d\n", snap.CyclicFiles())
	fmt.Fprintf(&b, "Files with Performance Problems: %d\n", snap.DeepFiles())
	fmt.Fprintf(&b, "Search Directory Entries: %d\n", len(snap.SearchDirs))
	fmt.Fprintf(&b, "Duplicate Callables: %d\n", snap.DuplicateCallables)
	fmt.Fprintf(&b, "Duplicate Statics: %d\n", snap.DuplicateStatics)

	return b.String()
}

func writeFile(b *strings.Builder, snap *model.Snapshot, f *model.FileRecord, tracking bool) {
	fmt.Fprintf(b, "=== %s ===\n", f.Name)
	fmt.Fprintf(b, "Directory: %s\n", f.Dir)
	if tracking {
		fmt.Fprintf(b, "Include Depth: %d", f.Depth)
		if f.DeepChain {
			b.WriteString(" [PERFORMANCE WARNING: Deep Include Chain]")
		}
		if f.Cyclic {
			b.WriteString(" [CIRCULAR INCLUDE DETECTED]")
		}
		b.WriteString("\n")
		fmt.Fprintf(b, "Status: %s\n", usedName(f.Used))
		if f.Visits > 1 {
			fmt.Fprintf(b, "Multiple Includes: %d times\n", f.Visits)
		}
	}
	if f.SyntaxErrors > 0 {
		fmt.Fprintf(b, "Syntax Errors: %d\n", f.SyntaxErrors)
	}

	if len(f.SearchDirs) > 0 {
		b.WriteString("\nSEARCH DIRECTORIES:\n")
		for _, d := range f.SearchDirs {
			fmt.Fprintf(b, "%04d  #define %s \"%s\"%s\n", d.Line, d.Directive, d.Path, backslash(d.Backslash))
		}
	}

	if len(f.Includes) > 0 {
		b.WriteString("\nINCLUDES:\n")
		for _, inc := range f.Includes {
			b.WriteString(includeLine(snap, inc))
			b.WriteString("\n")
		}
	}

	for _, kind := range model.SymbolKinds {
		syms := f.SymbolsOf(kind)
		if len(syms) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n%s:\n", kindHeadings[kind])
		for _, sym := range syms {
			b.WriteString(symbolLine(sym))
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(b, "\n%s\n\n", separator)
}

func includeLine(snap *model.Snapshot, inc model.Include) string {
	var line string
	switch {
	case inc.Skipped:
		line = fmt.Sprintf("%04d  #include <%s> [SYSTEM]", inc.Line, inc.Name)
	case !inc.IsResolved():
		line = fmt.Sprintf("%04d  #include \"%s\" [NOT FOUND]", inc.Line, inc.Name)
	case inc.ViaSearchDir:
		line = fmt.Sprintf("%04d  #include \"%s\" is \"%s\"", inc.Line, inc.Name, snap.Rel(inc.Resolved))
	default:
		line = fmt.Sprintf("%04d  #include \"%s\"", inc.Line, inc.Name)
	}
	return line + backslash(inc.Backslash)
}

func symbolLine(sym model.Symbol) string {
	var line string
	switch sym.Kind {
	case model.VoidFunc, model.ValueFunc, model.Action:
		line = fmt.Sprintf("%04d  %s %s()", sym.Line, sym.Kind, sym.Name)
	case model.Struct:
		line = fmt.Sprintf("%04d  struct %s", sym.Line, sym.Name)
	case model.TypedefStruct:
		line = fmt.Sprintf("%04d  typedef struct %s", sym.Line, sym.Name)
	case model.Static:
		if sym.Context == "" || sym.Context == model.GlobalContext {
			line = fmt.Sprintf("%04d  static %s (global)", sym.Line, sym.Name)
		} else {
			line = fmt.Sprintf("%04d  static %s (in function: %s)", sym.Line, sym.Name, sym.Context)
		}
	}
	if sym.Duplicate {
		line += fmt.Sprintf(" [DUPLICATE #%d]", sym.Count)
	}
	return line
}

// Summary holds the totals printed after a run.
type Summary struct {
	TotalFiles          int
	UsedFiles           int
	IndependentFiles    int
	HeavyFiles          int
	SearchDirs          int
	UniqueDirs          int
	Overloads           int
	StaticDuplicates    int
	BackslashIncludes   int
	BackslashSearchDirs int
	DeepFiles           int
	CyclicFiles         int
	ViaSearchDir        int
	Unresolved          int
}

// Issues reports whether any problem counter is non-zero.
func (s Summary) Issues() bool {
	return s.Overloads > 0 || s.StaticDuplicates > 0 || s.BackslashIncludes > 0 ||
		s.BackslashSearchDirs > 0 || s.DeepFiles > 0 || s.CyclicFiles > 0 || s.Unresolved > 0
}

// Summarize computes the run totals over the reportable files.
func Summarize(snap *model.Snapshot) Summary {
	files := snap.Reportable()
	sum := Summary{
		TotalFiles: len(snap.Files),
		UsedFiles:  len(files),
		SearchDirs: len(snap.SearchDirs),
		UniqueDirs: len(snap.DirUsage),
		Unresolved: snap.Unresolved,
	}
	for i := range files {
		f := &files[i]
		for _, sym := range f.Duplicates {
			if sym.Kind.IsCallable() {
				sum.Overloads++
			} else {
				sum.StaticDuplicates++
			}
		}
		if f.DeepChain {
			sum.DeepFiles++
		}
		if f.Cyclic {
			sum.CyclicFiles++
		}
		switch n := len(f.Includes); {
		case n == 0:
			sum.IndependentFiles++
		case n > heavyIncludes:
			sum.HeavyFiles++
		}
		for _, inc := range f.Includes {
			if inc.Backslash {
				sum.BackslashIncludes++
			}
			if inc.ViaSearchDir {
				sum.ViaSearchDir++
			}
		}
		for _, d := range f.SearchDirs {
			if d.Backslash {
				sum.BackslashSearchDirs++
			}
		}
	}
	return sum
}

// SummaryText renders a console summary.
func SummaryText(s Summary) string {
	var b strings.Builder
	b.WriteString("=== SUMMARY ===\n")
	fmt.Fprintf(&b, "Total Files: %d\n", s.TotalFiles)
	fmt.Fprintf(&b, "Actually Used: %d\n", s.UsedFiles)
	fmt.Fprintf(&b, "Independent Files: %d\n", s.IndependentFiles)
	fmt.Fprintf(&b, "Heavy Dependencies: %d\n", s.HeavyFiles)
	fmt.Fprintf(&b, "Search Directory Entries: %d\n", s.SearchDirs)
	fmt.Fprintf(&b, "Unique Directories: %d\n", s.UniqueDirs)

	if !s.Issues() {
		b.WriteString("No issues found!\n")
		return b.String()
	}
	b.WriteString("Issues Found:\n")
	issue := func(label string, n int) {
		if n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", label, n)
		}
	}
	issue("Function Overloads", s.Overloads)
	issue("Static Variable Duplicates", s.StaticDuplicates)
	issue("Includes with Backslashes", s.BackslashIncludes)
	issue("Search Directories with Backslashes", s.BackslashSearchDirs)
	issue("Deep Include Chains", s.DeepFiles)
	issue("Circular Include Files", s.CyclicFiles)
	issue("Unresolved Includes", s.Unresolved)
	issue("Includes found via Search Directory", s.ViaSearchDir)
	return b.String()
}

// JSON encodes the snapshot as indented JSON.
func JSON(snap *model.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

func modeName(m model.Mode) string {
	if m == model.IncludeTracking {
		return "Include Tracking"
	}
	return "All Files"
}

func usedName(used bool) string {
	if used {
		return "USED"
	}
	return "UNUSED"
}

func backslash(b bool) string {
	if b {
		return " [BACKSLASH]"
	}
	return ""
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// displayDir renders a directory relative to the root, "." for the root.
func displayDir(snap *model.Snapshot, dir string) string {
	if dir == strings.TrimSuffix(snap.Root, "/") || dir == snap.Root {
		return "."
	}
	return snap.Rel(dir)
}

func joinRel(snap *model.Snapshot, paths []string, sep string) string {
	rel := make([]string, len(paths))
	for i, p := range paths {
		rel[i] = snap.Rel(p)
	}
	return strings.Join(rel, sep)
}
