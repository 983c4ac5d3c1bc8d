// Package ranking selects and filters the files of a snapshot.
package ranking

import (
	"sort"
	"strings"

	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
)

// SelectFiles returns a new Snapshot with only the maxFiles highest ranked
// files, in rank order. Ties keep discovery order. If maxFiles is <= 0 or
// >= len(files), snap is returned unchanged.
func SelectFiles(snap *model.Snapshot, maxFiles int) *model.Snapshot {
	if maxFiles <= 0 || maxFiles >= len(snap.Files) {
		return snap
	}

	ranked := append([]model.FileRecord(nil), snap.Files...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rank > ranked[j].Rank
	})
	selected := ranked[:maxFiles]

	selectedPaths := make(map[string]struct{}, maxFiles)
	for i := range selected {
		selectedPaths[selected[i].Path] = struct{}{}
	}

	var deps []model.Dependency
	for i := range snap.Dependencies {
		d := &snap.Dependencies[i]
		_, srcOK := selectedPaths[d.Source]
		_, tgtOK := selectedPaths[d.Target]
		if srcOK && tgtOK {
			deps = append(deps, *d)
		}
	}

	out := *snap
	out.Files = selected
	out.Dependencies = deps
	return &out
}

// FilterBySymbol returns a new Snapshot containing the files that declare a
// symbol whose name contains substr (case-insensitive) plus the files that
// directly include them. Symbols of the declaring files are trimmed to the
// matches; includers keep no symbols.
func FilterBySymbol(snap *model.Snapshot, substr string) *model.Snapshot {
	lower := strings.ToLower(substr)

	declaring := make(map[string][]model.Symbol)
	for i := range snap.Files {
		f := &snap.Files[i]
		for _, sym := range f.Symbols {
			if strings.Contains(strings.ToLower(sym.Name), lower) {
				declaring[f.Path] = append(declaring[f.Path], sym)
			}
		}
	}

	includers := make(map[string]struct{})
	for i := range snap.Dependencies {
		d := &snap.Dependencies[i]
		if _, ok := declaring[d.Target]; ok {
			includers[d.Source] = struct{}{}
		}
	}

	matched := make(map[string]struct{})
	var files []model.FileRecord
	for i := range snap.Files {
		f := snap.Files[i]
		syms, isDecl := declaring[f.Path]
		_, isIncluder := includers[f.Path]
		if !isDecl && !isIncluder {
			continue
		}
		f.Symbols = syms
		f.Duplicates = filterDuplicates(f.Duplicates, syms)
		matched[f.Path] = struct{}{}
		files = append(files, f)
	}

	out := *snap
	out.Files = files
	out.Dependencies = touching(snap.Dependencies, matched)
	return &out
}

// FilterByFile returns a new Snapshot containing only files whose path
// contains substr (case-insensitive), with every dependency touching them.
func FilterByFile(snap *model.Snapshot, substr string) *model.Snapshot {
	lower := strings.ToLower(substr)

	matched := make(map[string]struct{})
	var files []model.FileRecord
	for i := range snap.Files {
		if strings.Contains(strings.ToLower(snap.Files[i].Path), lower) {
			matched[snap.Files[i].Path] = struct{}{}
			files = append(files, snap.Files[i])
		}
	}

	out := *snap
	out.Files = files
	out.Dependencies = touching(snap.Dependencies, matched)
	return &out
}

func touching(deps []model.Dependency, paths map[string]struct{}) []model.Dependency {
	var out []model.Dependency
	for i := range deps {
		_, srcOK := paths[deps[i].Source]
		_, tgtOK := paths[deps[i].Target]
		if srcOK || tgtOK {
			out = append(out, deps[i])
		}
	}
	return out
}

func filterDuplicates(dups, keep []model.Symbol) []model.Symbol {
	var out []model.Symbol
	for _, d := range dups {
		for _, k := range keep {
			if d.Kind == k.Kind && d.Name == k.Name && d.Line == k.Line {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
