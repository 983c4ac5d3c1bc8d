// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a Snapshot into TOON format. Paths are written relative to
// the snapshot root; only reportable files are listed.
func Encode(snap *model.Snapshot) string {
	var parts []string

	files := snap.Reportable()

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(snap.Root)))
	parts = append(parts, fmt.Sprintf("mode: %s", encodeValue(string(snap.Mode))))
	parts = append(parts, fmt.Sprintf("summary{files,used,cyclic,deep,unresolved,duplicate_callables,duplicate_statics,truncated}: %d,%d,%d,%d,%d,%d,%d,%t",
		len(snap.Files), snap.UsedFiles(), snap.CyclicFiles(), snap.DeepFiles(),
		snap.Unresolved, snap.DuplicateCallables, snap.DuplicateStatics, snap.Truncated))

	var fileRows [][]string
	for i := range files {
		f := &files[i]
		fileRows = append(fileRows, []string{
			snap.Rel(f.Path),
			itoa(f.Depth),
			itoa(f.Visits),
			flags(f),
			fmt.Sprintf("%.4f", f.Rank),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "depth", "visits", "flags", "rank"}, fileRows))

	var includeRows [][]string
	for i := range files {
		f := &files[i]
		for _, inc := range f.Includes {
			includeRows = append(includeRows, []string{
				snap.Rel(f.Path),
				itoa(inc.Line),
				inc.Name,
				snap.Rel(inc.Resolved),
				includeStatus(inc),
			})
		}
	}
	parts = append(parts, formatTabular("includes", []string{"file", "line", "name", "resolved", "status"}, includeRows))

	var symbolRows [][]string
	for i := range files {
		f := &files[i]
		for _, sym := range f.Symbols {
			count := ""
			if sym.Duplicate {
				count = itoa(sym.Count)
			}
			symbolRows = append(symbolRows, []string{
				snap.Rel(f.Path),
				sym.Name,
				string(sym.Kind),
				itoa(sym.Line),
				sym.Context,
				count,
			})
		}
	}
	parts = append(parts, formatTabular("symbols", []string{"file", "name", "kind", "line", "context", "duplicate"}, symbolRows))

	var dirRows [][]string
	for _, d := range snap.SearchDirs {
		dirRows = append(dirRows, []string{d.Path, snap.Rel(d.Source), itoa(d.Line)})
	}
	parts = append(parts, formatTabular("searchdirs", []string{"path", "source", "line"}, dirRows))

	var depRows [][]string
	for i := range snap.Dependencies {
		d := &snap.Dependencies[i]
		depRows = append(depRows, []string{
			snap.Rel(d.Source),
			snap.Rel(d.Target),
			strings.Join(d.Names, " "),
		})
	}
	parts = append(parts, formatTabular("dependencies", []string{"source", "target", "names"}, depRows))

	if len(snap.Cycles) > 0 {
		var cycleRows [][]string
		for _, c := range snap.Cycles {
			cycleRows = append(cycleRows, []string{joinRel(snap, c, " -> ")})
		}
		parts = append(parts, formatTabular("cycles", []string{"chain"}, cycleRows))
	}

	if len(snap.CycleGroups) > 0 {
		var groupRows [][]string
		for _, g := range snap.CycleGroups {
			groupRows = append(groupRows, []string{itoa(len(g)), joinRel(snap, g, " ")})
		}
		parts = append(parts, formatTabular("cyclegroups", []string{"size", "files"}, groupRows))
	}

	if len(snap.DirUsage) > 0 {
		var usageRows [][]string
		for _, u := range snap.DirUsage {
			usageRows = append(usageRows, []string{snap.Rel(u.Path), itoa(u.Count)})
		}
		parts = append(parts, formatTabular("dirusage", []string{"path", "count"}, usageRows))
	}

	if len(snap.Unreadable) > 0 {
		var rows [][]string
		for _, p := range snap.Unreadable {
			rows = append(rows, []string{snap.Rel(p)})
		}
		parts = append(parts, formatTabular("unreadable", []string{"path"}, rows))
	}

	return strings.Join(parts, "\n")
}

// flags renders the boolean state of a file as space separated words.
func flags(f *model.FileRecord) string {
	var out []string
	if f.Used {
		out = append(out, "used")
	}
	if f.Cyclic {
		out = append(out, "cyclic")
	}
	if f.DeepChain {
		out = append(out, "deep")
	}
	if f.SyntaxErrors > 0 {
		out = append(out, "syntax")
	}
	return strings.Join(out, " ")
}

func includeStatus(inc model.Include) string {
	switch {
	case inc.Skipped:
		return "system"
	case !inc.IsResolved():
		return "missing"
	case inc.ViaSearchDir:
		return "searchdir"
	}
	return "ok"
}

func joinRel(snap *model.Snapshot, paths []string, sep string) string {
	rel := make([]string, len(paths))
	for i, p := range paths {
		rel[i] = snap.Rel(p)
	}
	return strings.Join(rel, sep)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
