// Package lang maps source file extensions to tree-sitter grammars.
package lang

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Parsers are not safe for concurrent use.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration. Lite-C sources are
// parsed with the C grammar; its extra keywords surface as error nodes.
var Languages = map[string]*Language{
	"c": {
		Name:       "c",
		Extensions: []string{".c", ".h"},
		lang:       c.GetLanguage(),
	},
}

var (
	extensionMap  map[string]string
	extensionOnce sync.Once
)

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if
// unsupported. Extensions are matched case-insensitively.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// ForPath returns the language for a file path, or nil.
func ForPath(p string) *Language {
	i := strings.LastIndexByte(p, '.')
	if i < 0 || strings.ContainsAny(p[i:], `/\`) {
		return nil
	}
	return Languages[ForExtension(p[i:])]
}
