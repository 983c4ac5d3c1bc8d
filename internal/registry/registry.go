// Package registry counts declared names across an analysis run to detect
// duplicates.
package registry

import (
	"sort"
	"sync"

	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
)

// Registry holds the callable and scoped-variable name counters of one run.
// Counters only grow. Each register call increments and reads its key
// under one lock.
type Registry struct {
	mu        sync.Mutex
	callables map[string]int
	scoped    map[string]int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		callables: make(map[string]int),
		scoped:    make(map[string]int),
	}
}

// ScopedKey returns the "context::name" key of a scoped variable. An empty
// context means global scope.
func ScopedKey(name, context string) string {
	if context == "" {
		context = model.GlobalContext
	}
	return context + "::" + name
}

// RegisterCallable counts one declaration of a callable and returns the
// number of declarations seen so far. Signatures are ignored: every callable
// sharing the name counts toward the same key.
func (r *Registry) RegisterCallable(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callables[name]++
	return r.callables[name]
}

// RegisterScoped counts one declaration of a variable inside context.
func (r *Registry) RegisterScoped(name, context string) int {
	key := ScopedKey(name, context)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scoped[key]++
	return r.scoped[key]
}

// Entry is a registered key with its count.
type Entry struct {
	Key   string
	Count int
}

// DuplicateCallables returns callable names registered more than once,
// sorted by name.
func (r *Registry) DuplicateCallables() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return duplicates(r.callables)
}

// DuplicateScoped returns scoped keys registered more than once.
func (r *Registry) DuplicateScoped() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return duplicates(r.scoped)
}

func duplicates(m map[string]int) []Entry {
	var out []Entry
	for k, n := range m {
		if n > 1 {
			out = append(out, Entry{Key: k, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}
