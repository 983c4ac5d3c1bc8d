package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
)

func sampleSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Root: "/proj",
		Mode: model.IncludeTracking,
		Files: []model.FileRecord{
			{
				Path: "/proj/main.c", Name: "main.c", Dir: ".", Visits: 1, Used: true,
				SearchDirs: []model.SearchDir{
					{Path: `lib\inc`, Directive: "EXTRA_PATH", Source: "/proj/main.c", Line: 1, Backslash: true},
				},
				Includes: []model.Include{
					{Name: "util.h", Line: 2, Style: model.Quoted, Resolved: "/proj/lib/inc/util.h", FoundIn: "/proj/lib/inc", ViaSearchDir: true},
					{Name: "stdio.h", Line: 3, Style: model.Angled, Skipped: true},
					{Name: "gone.h", Line: 4, Style: model.Quoted},
					{Name: `a\b.h`, Line: 5, Style: model.Quoted, Resolved: "/proj/a/b.h", FoundIn: "/proj", Backslash: true},
				},
				Symbols: []model.Symbol{
					{Kind: model.Action, Name: "main", Line: 7, Context: model.GlobalContext},
					{Kind: model.Static, Name: "count", Line: 8, Context: "main"},
					{Kind: model.VoidFunc, Name: "tick", Line: 12, Context: model.GlobalContext, Duplicate: true, Count: 2},
				},
				Duplicates: []model.Symbol{
					{Kind: model.VoidFunc, Name: "tick", Line: 12, Context: model.GlobalContext, Duplicate: true, Count: 2},
				},
			},
			{
				Path: "/proj/lib/inc/util.h", Name: "util.h", Dir: "lib/inc", Depth: 1, Visits: 3, Used: true, Cyclic: true,
				Symbols: []model.Symbol{
					{Kind: model.VoidFunc, Name: "tick", Line: 1, Context: model.GlobalContext},
					{Kind: model.TypedefStruct, Name: "VEC", Line: 3, Context: model.GlobalContext},
					{Kind: model.Static, Name: "ready", Line: 6, Context: model.GlobalContext},
				},
			},
			{Path: "/proj/orphan.h", Name: "orphan.h", Dir: ".", Visits: 1},
		},
		SearchDirs: []model.SearchDir{
			{Path: `lib\inc`, Directive: "EXTRA_PATH", Source: "/proj/main.c", Line: 1, Backslash: true},
		},
		DirUsage: []model.DirUsage{
			{Path: "/proj/lib/inc", Count: 1},
			{Path: "/proj", Count: 1},
		},
		DirStats: []model.DirStats{
			{Dir: ".", Files: 1, Callables: 2, Includes: 4, Statics: 1, Overloads: 1},
		},
		Cycles:             [][]string{{"/proj/lib/inc/util.h", "/proj/lib/inc/util.h"}},
		Unresolved:         1,
		DuplicateCallables: 1,
		OverloadedNames:    []model.NameCount{{Name: "tick", Count: 2}},
	}
}

func TestText(t *testing.T) {
	t.Parallel()

	got := Text(sampleSnapshot())

	for _, want := range []string{
		"Analysis Mode: Include Tracking\n",
		"Total Files Found: 3\n",
		"Actually Used Files: 2\n",
		"Files with Circular Includes: 1\n",
		"Unresolved Includes: 1\n",
		"=== CIRCULAR INCLUDE WARNINGS ===\nWARNING: util.h (depth 1) - Part of circular include chain\n",
		"CHAIN: lib/inc/util.h -> lib/inc/util.h\n",
		"0001  #define EXTRA_PATH \"lib\\inc\" (in main.c) [BACKSLASH]\n",
		"=== main.c ===\nDirectory: .\nInclude Depth: 0\nStatus: USED\n",
		"0002  #include \"util.h\" is \"lib/inc/util.h\"\n",
		"0003  #include <stdio.h> [SYSTEM]\n",
		"0004  #include \"gone.h\" [NOT FOUND]\n",
		"0005  #include \"a\\b.h\" [BACKSLASH]\n",
		"\nACTIONS:\n0007  action main()\n",
		"0008  static count (in function: main)\n",
		"0012  void tick() [DUPLICATE #2]\n",
		"Include Depth: 1 [CIRCULAR INCLUDE DETECTED]\n",
		"Multiple Includes: 3 times\n",
		"\nTYPEDEF STRUCTS:\n0003  typedef struct VEC\n",
		"0006  static ready (global)\n",
		"lib/inc: 1 includes\n",
		".: 1 includes\n",
		".: 1 files, 2 callables, 0 structs, 4 includes, 1 statics (1 overloads, 0 duplicates)\n",
		"=== DUPLICATE NAMES ===\ncallable tick: 2 declarations\n\n=== SUMMARY ===\nTotal Files Analyzed: 2\n",
		"Duplicate Callables: 1\n",
	} {
		assert.Contains(t, got, want)
	}

	assert.NotContains(t, got, "orphan.h")
	assert.Less(t, strings.Index(got, "=== main.c ==="), strings.Index(got, "=== util.h ==="))
	assert.Less(t, strings.Index(got, "\nVOID FUNCTIONS:\n0001  void tick()"), strings.Index(got, "\nTYPEDEF STRUCTS:"))
}

func TestTextWholeTree(t *testing.T) {
	t.Parallel()

	snap := sampleSnapshot()
	snap.Mode = model.WholeTree

	got := Text(snap)
	assert.Contains(t, got, "Analysis Mode: All Files\n")
	assert.Contains(t, got, "=== orphan.h ===\nDirectory: .\n")
	assert.NotContains(t, got, "Include Depth:")
	assert.NotContains(t, got, "Status:")
}

func TestTextDuplicateNames(t *testing.T) {
	t.Parallel()

	snap := sampleSnapshot()
	snap.OverloadedNames = nil
	assert.NotContains(t, Text(snap), "=== DUPLICATE NAMES ===")

	snap.DuplicateScoped = []model.NameCount{{Name: "main::count", Count: 3}}
	assert.Contains(t, Text(snap), "=== DUPLICATE NAMES ===\nstatic main::count: 3 declarations\n")
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	sum := Summarize(sampleSnapshot())
	assert.Equal(t, Summary{
		TotalFiles:          3,
		UsedFiles:           2,
		IndependentFiles:    1,
		HeavyFiles:          1,
		SearchDirs:          1,
		UniqueDirs:          2,
		Overloads:           1,
		BackslashIncludes:   1,
		BackslashSearchDirs: 1,
		CyclicFiles:         1,
		ViaSearchDir:        1,
		Unresolved:          1,
	}, sum)
	assert.True(t, sum.Issues())
}

func TestSummaryText(t *testing.T) {
	t.Parallel()

	got := SummaryText(Summarize(sampleSnapshot()))
	assert.Contains(t, got, "Issues Found:\n")
	assert.Contains(t, got, "  Function Overloads: 1\n")
	assert.Contains(t, got, "  Unresolved Includes: 1\n")
	assert.NotContains(t, got, "Static Variable Duplicates")

	clean := SummaryText(Summary{TotalFiles: 1, UsedFiles: 1})
	assert.Contains(t, clean, "No issues found!\n")
}

func TestJSON(t *testing.T) {
	t.Parallel()

	data, err := JSON(sampleSnapshot())
	require.NoError(t, err)

	var decoded struct {
		Root  string `json:"root"`
		Mode  string `json:"mode"`
		Files []struct {
			Path     string `json:"path"`
			Includes []struct {
				Name    string `json:"name"`
				Skipped bool   `json:"skipped"`
			} `json:"includes"`
		} `json:"files"`
		Unresolved int `json:"unresolved"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "/proj", decoded.Root)
	assert.Equal(t, "include", decoded.Mode)
	require.Len(t, decoded.Files, 3)
	assert.True(t, decoded.Files[0].Includes[1].Skipped)
	assert.Equal(t, 1, decoded.Unresolved)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))
}
