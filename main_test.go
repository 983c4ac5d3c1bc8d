package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egammo/lite-c-dependency-analyzer/internal/analyze"
	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func createSampleProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "main.c", `#define EXTRA_PATH "lib"
#include "util.h"
#include <stdio.h>
#include "missing.h"
action main() {
	static int counter;
}
`)
	writeTestFile(t, dir, "lib/util.h", `typedef struct VEC {
	var x;
} VEC;
void helper() {}
`)
	writeTestFile(t, dir, "orphan.c", `function unused_value() {
	return 1;
}
`)
	return dir
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := runContext(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunIncludeTracking(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runCLI(t, dir, "main.c")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "=== LITE-C DEPENDENCY ANALYSIS ===")
	assert.Contains(t, out, "Analysis Mode: Include Tracking")
	assert.Contains(t, out, "Total Files Found: 2\n")
	assert.Contains(t, out, "Unresolved Includes: 1\n")
	assert.Contains(t, out, `0001  #define EXTRA_PATH "lib" (in main.c)`)
	assert.Contains(t, out, `0002  #include "util.h" is "lib/util.h"`)
	assert.Contains(t, out, "0003  #include <stdio.h> [SYSTEM]")
	assert.Contains(t, out, `0004  #include "missing.h" [NOT FOUND]`)
	assert.Contains(t, out, "0005  action main()")
	assert.Contains(t, out, "0006  static counter (in function: main)")
	assert.Contains(t, out, "0001  typedef struct VEC")
	assert.Contains(t, out, "0004  void helper()")
	assert.NotContains(t, out, "orphan.c")
}

func TestRunWholeTree(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runCLI(t, dir)
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "Analysis Mode: All Files")
	assert.Contains(t, out, "=== orphan.c ===")
	assert.Contains(t, out, "0001  function unused_value()")
	assert.Contains(t, out, "=== util.h ===")
}

func TestRunToonFormat(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runCLI(t, "--format", "toon", dir, "main.c")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "mode: include\n")
	assert.Contains(t, out, "files[2]{path,depth,visits,flags,rank}:")
	assert.Contains(t, out, "lib/util.h")
	assert.Contains(t, out, "dependencies[1]{source,target,names}:")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestRunJSONFormat(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runCLI(t, "--format", "json", dir, "main.c")
	require.NoError(t, err, stderr)

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, model.IncludeTracking, snap.Mode)
	require.Len(t, snap.Files, 2)
	assert.Equal(t, 1, snap.Unresolved)
	require.Len(t, snap.Dependencies, 1)
	assert.Equal(t, []string{"util.h"}, snap.Dependencies[0].Names)
	require.Len(t, snap.SearchDirs, 1)
	assert.Equal(t, "EXTRA_PATH", snap.SearchDirs[0].Directive)
}

func TestRunUnknownFormat(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	_, _, err := runCLI(t, "--format", "xml", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestRunOutputFile(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	outPath := filepath.Join(t.TempDir(), "report.txt")

	out, stderr, err := runCLI(t, "-o", outPath, dir, "main.c")
	require.NoError(t, err, stderr)
	assert.Empty(t, out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "=== main.c ===")
	assert.Contains(t, stderr, "=== SUMMARY ===")
	assert.Contains(t, stderr, "Unresolved Includes: 1")
	assert.Contains(t, stderr, "report written to "+outPath)
}

func TestRunHeader(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	headerPath := filepath.Join(dir, "decls.h")

	_, stderr, err := runCLI(t, "--header", headerPath, "-o", filepath.Join(t.TempDir(), "r.txt"), dir, "main.c")
	require.NoError(t, err, stderr)

	data, err := os.ReadFile(headerPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "#ifndef DECLS_H")
	assert.Contains(t, content, sentinelStart)
	assert.Contains(t, content, "typedef struct VEC VEC;")
	assert.Contains(t, content, "void helper();")
	assert.Contains(t, content, "action main();")
}

func TestRunHeaderDryRun(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	headerPath := filepath.Join(dir, "decls.h")

	out, stderr, err := runCLI(t, "--header", headerPath, "--dry-run", "--format", "json", dir, "main.c")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "void helper();")
	_, statErr := os.Stat(headerPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "litec-analyzer dev\n", out)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	file := filepath.Join(dir, "main.c")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no root", args: nil, want: "missing source root"},
		{name: "root is a file", args: []string{file}, want: "not a directory"},
		{name: "root does not exist", args: []string{filepath.Join(dir, "nope")}, want: "root path"},
		{name: "invalid exclude", args: []string{"--exclude", "[", dir}, want: "invalid"},
		{name: "too many args", args: []string{dir, "main.c", "extra"}, want: "accepts between 0 and 2 arg(s)"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunMissingMainFile(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	_, _, err := runCLI(t, dir, "nope.c")
	require.Error(t, err)
	assert.ErrorIs(t, err, analyze.ErrUnreadableRoot)
}

func TestRunNoSourceFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "README.md", "# nothing here\n")

	_, _, err := runCLI(t, dir)
	assert.ErrorIs(t, err, errNoSourceFiles)
}

func TestRunConfigFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, ".litec-analyzer.yaml", "search_directives:\n  - LIB_DIR\n")
	writeTestFile(t, dir, "main.c", "#define LIB_DIR \"lib\"\n#include \"util.h\"\n")
	writeTestFile(t, dir, "lib/util.h", "void helper() {}\n")

	out, stderr, err := runCLI(t, dir, "main.c")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, `0001  #define LIB_DIR "lib" (in main.c)`)
	assert.Contains(t, out, "Unresolved Includes: 0\n")
}

func TestRunExplicitConfigMissing(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	_, _, err := runCLI(t, "--config", filepath.Join(dir, "none.yaml"), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestRunMaxDepthFlag(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	_, _, err := runCLI(t, "--max-depth", "0", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunSymbolFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runCLI(t, "--symbol", "helper", dir, "main.c")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "=== util.h ===")
	assert.Contains(t, out, "0004  void helper()")
	assert.NotContains(t, out, "typedef struct VEC")
	// main.c includes util.h and stays in the report without symbols.
	assert.Contains(t, out, "=== main.c ===")
	assert.NotContains(t, out, "action main()")
}

func TestRunFileFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runCLI(t, "--file", "orphan", dir)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "=== orphan.c ===")
	assert.NotContains(t, out, "=== main.c ===")
}

func TestRunMaxFiles(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runCLI(t, "-n", "1", "--format", "toon", dir)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "files[1]{path,depth,visits,flags,rank}:")
}

func TestRunExclude(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	out, stderr, err := runCLI(t, "--exclude", "lib/**", dir)
	require.NoError(t, err, stderr)
	assert.NotContains(t, out, "=== util.h ===")
	assert.Contains(t, out, "=== orphan.c ===")
}

func TestRunCheckSyntax(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "main.c", "int main( {\n")

	out, stderr, err := runCLI(t, "--check-syntax", dir, "main.c")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "Syntax Errors:")
}

func TestRunLogFile(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	logPath := filepath.Join(t.TempDir(), "run.log")

	_, stderr, err := runCLI(t, "--log-level", "info", "--log-file", logPath, dir, "main.c")
	require.NoError(t, err, stderr)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "include file not found")
	assert.Contains(t, string(data), "found search directory")
}

func TestRunHeaderInsideRootIsNotAnalyzed(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	header := filepath.Join(dir, "decls.h")
	args := []string{"--header", header, "--format", "json", dir}

	_, stderr, err := runCLI(t, args...)
	require.NoError(t, err, stderr)
	require.FileExists(t, header)

	out, stderr, err := runCLI(t, args...)
	require.NoError(t, err, stderr)

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Nil(t, snap.File(filepath.ToSlash(header)))
	assert.Len(t, snap.Files, 3)
	assert.Zero(t, snap.DuplicateCallables)
	assert.Empty(t, snap.OverloadedNames)
}

func TestGeneratedFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	got := generatedFiles(root,
		"",
		filepath.Join(root, "decls.h"),
		filepath.Join(root, "gen", "report.txt"),
		filepath.Join(filepath.Dir(root), "outside.h"),
	)
	assert.Equal(t, []string{"decls.h", "gen/report.txt"}, got)
}

func TestRunWatchReanalyzesOncePerEdit(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	logPath := filepath.Join(t.TempDir(), "watch.log")
	readLog := func() string {
		data, _ := os.ReadFile(logPath)
		return string(data)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- runContext(ctx, []string{
			"--watch",
			"--header", filepath.Join(dir, "decls.h"),
			"-o", filepath.Join(dir, "report.txt"),
			"--log-level", "info",
			"--log-file", logPath,
			dir, "main.c",
		}, &stdout, &stderr)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(readLog(), "watching for changes")
	}, 5*time.Second, 20*time.Millisecond)

	// A new declaration changes the header, so the rerun writes both outputs.
	f, err := os.OpenFile(filepath.Join(dir, "main.c"), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("void extra() {}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return strings.Contains(readLog(), "changes detected")
	}, 5*time.Second, 20*time.Millisecond)

	// Writes of the rerun must not trigger further runs.
	time.Sleep(1500 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, strings.Count(readLog(), "changes detected"), readLog())
	header, err := os.ReadFile(filepath.Join(dir, "decls.h"))
	require.NoError(t, err)
	assert.Contains(t, string(header), "void extra();")
}
