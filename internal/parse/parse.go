// Package parse runs tree-sitter over source files and reports syntax
// problems.
package parse

import (
	"context"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/egammo/lite-c-dependency-analyzer/internal/lang"
)

// Problem is one syntax error node found in a file.
type Problem struct {
	// Line is 1-based.
	Line    int
	Missing bool
}

// Checker parses files with the grammar registered for their extension and
// counts syntax error nodes. It is safe for concurrent use.
type Checker struct {
	mu      sync.Mutex
	parsers map[string]*sitter.Parser
}

// NewChecker returns a Checker with an empty parser cache.
func NewChecker() *Checker {
	return &Checker{parsers: make(map[string]*sitter.Parser)}
}

// CountErrors returns the number of syntax problems in source. Files with no
// registered grammar count as clean.
func (c *Checker) CountErrors(path string, source []byte) int {
	return len(c.Check(path, source))
}

// Check returns the syntax problems in source in document order.
func (c *Checker) Check(path string, source []byte) []Problem {
	l := lang.ForPath(path)
	if l == nil || len(source) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.parsers[l.Name]
	if !ok {
		p = l.NewParser()
		c.parsers[l.Name] = p
	}

	tree, err := p.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}
	var out []Problem
	collect(root, &out)
	return out
}

// collect walks the subtrees that contain errors. An ERROR node is reported
// once; its children are not searched further.
func collect(n *sitter.Node, out *[]Problem) {
	switch {
	case n.IsMissing():
		*out = append(*out, Problem{Line: int(n.StartPoint().Row) + 1, Missing: true})
		return
	case n.Type() == "ERROR":
		*out = append(*out, Problem{Line: int(n.StartPoint().Row) + 1})
		return
	}
	if !n.HasError() {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		collect(n.Child(i), out)
	}
}
