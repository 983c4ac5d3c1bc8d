package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
)

const (
	sentinelStart = "// litec-analyzer:start"
	sentinelEnd   = "// litec-analyzer:end"
)

// writeHeader writes (or updates) the generated declarations block in the
// header file at path. Hand-written content outside the sentinel block is
// kept. With dryRun the resulting file is printed to stdout instead. An
// up-to-date file is not rewritten.
func writeHeader(fs afero.Fs, path string, snap *model.Snapshot, dryRun bool, stdout io.Writer) error {
	section := generateHeader(snap)

	existing, err := afero.ReadFile(fs, path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	updated := applySection(string(existing), section, guardName(path))

	if dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}
	if updated == string(existing) {
		return nil
	}

	if err := afero.WriteFile(fs, path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// generateHeader returns the sentinel-wrapped forward declarations of every
// reportable file: structs and typedef structs first, then callables. Each
// name is declared once.
func generateHeader(snap *model.Snapshot) string {
	var structs, callables []string
	seen := make(map[string]struct{})
	once := func(key string) bool {
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		return true
	}

	for _, f := range snap.Reportable() {
		for _, sym := range f.Symbols {
			switch {
			case sym.Kind == model.Struct:
				if once("struct " + sym.Name) {
					structs = append(structs, fmt.Sprintf("struct %s;", sym.Name))
				}
			case sym.Kind == model.TypedefStruct:
				if once("typedef " + sym.Name) {
					structs = append(structs, fmt.Sprintf("typedef struct %s %s;", sym.Name, sym.Name))
				}
			case sym.Kind.IsCallable():
				if once("callable " + sym.Name) {
					callables = append(callables, fmt.Sprintf("%s %s();", sym.Kind, sym.Name))
				}
			}
		}
	}

	var b strings.Builder
	b.WriteString(sentinelStart + "\n")
	b.WriteString("// Forward struct declarations\n")
	for _, s := range structs {
		b.WriteString(s + "\n")
	}
	b.WriteString("\n// Forward function declarations\n")
	for _, c := range callables {
		b.WriteString(c + "\n")
	}
	b.WriteString(sentinelEnd)
	return b.String()
}

// applySection inserts section into content, replacing an existing sentinel
// block if present. A new file gets an include guard named guard; other
// content gets the section before its last #endif, or appended.
func applySection(content, section, guard string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if strings.TrimSpace(content) == "" {
		return fmt.Sprintf("#ifndef %s\n#define %s\n\n%s\n\n#endif // %s\n", guard, guard, section, guard)
	}

	if i := strings.LastIndex(content, "#endif"); i >= 0 {
		return content[:i] + section + "\n\n" + content[i:]
	}

	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}

// guardName derives an include guard macro from a file name:
// "declarations.h" becomes DECLARATIONS_H.
func guardName(path string) string {
	base := filepath.Base(path)
	var b strings.Builder
	for _, r := range strings.ToUpper(base) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
