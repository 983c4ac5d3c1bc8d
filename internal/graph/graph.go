// Package graph builds the include graph of a snapshot, ranks files with
// PageRank and groups include cycles.
package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"

	graphlib "github.com/dominikbraun/graph"

	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
)

// BuildGraph creates one dependency per (includer, included) file pair from
// the resolved includes of the snapshot. Names lists the include references
// that produced the edge. Targets without a file record are dropped.
func BuildGraph(snap *model.Snapshot) []model.Dependency {
	known := make(map[string]struct{}, len(snap.Files))
	for i := range snap.Files {
		known[snap.Files[i].Path] = struct{}{}
	}

	type edgeKey struct{ src, tgt string }
	edgeNames := make(map[edgeKey][]string)

	for i := range snap.Files {
		f := &snap.Files[i]
		for _, inc := range f.Includes {
			if !inc.IsResolved() {
				continue
			}
			if _, ok := known[inc.Resolved]; !ok {
				continue
			}
			key := edgeKey{f.Path, inc.Resolved}
			if !contains(edgeNames[key], inc.Name) {
				edgeNames[key] = append(edgeNames[key], inc.Name)
			}
		}
	}

	deps := make([]model.Dependency, 0, len(edgeNames))
	for key, names := range edgeNames {
		deps = append(deps, model.Dependency{
			Source: key.src,
			Target: key.tgt,
			Names:  names,
		})
	}

	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Source != deps[j].Source {
			return deps[i].Source < deps[j].Source
		}
		return deps[i].Target < deps[j].Target
	})

	return deps
}

// Rank applies PageRank over the include edges and stores the result on every
// file of the snapshot. Heavily included files rank highest. File order is
// left untouched.
func Rank(snap *model.Snapshot, deps []model.Dependency) {
	if len(snap.Files) == 0 {
		return
	}

	if len(deps) == 0 {
		uniform := 1.0 / float64(len(snap.Files))
		for i := range snap.Files {
			snap.Files[i].Rank = uniform
		}
		return
	}

	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	nodes := make(map[string]struct{})

	for i := range snap.Files {
		nodes[snap.Files[i].Path] = struct{}{}
	}

	// Every include reference counts as one edge.
	for _, d := range deps {
		for range d.Names {
			outEdges[d.Source] = append(outEdges[d.Source], d.Target)
			outDegree[d.Source]++
		}
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)

	for i := range snap.Files {
		snap.Files[i].Rank = ranks[snap.Files[i].Path]
	}
}

// CycleGroups returns the strongly connected components of the include graph
// that contain a cycle: components of two or more files, and single files
// that include themselves. Members and groups are sorted.
func CycleGroups(deps []model.Dependency) ([][]string, error) {
	g := graphlib.New(graphlib.StringHash, graphlib.Directed())

	selfLoops := make(map[string]bool)
	for _, d := range deps {
		for _, v := range []string{d.Source, d.Target} {
			if err := g.AddVertex(v); err != nil && !errors.Is(err, graphlib.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("adding vertex %s: %w", v, err)
			}
		}
		if d.Source == d.Target {
			selfLoops[d.Source] = true
			continue
		}
		if err := g.AddEdge(d.Source, d.Target); err != nil && !errors.Is(err, graphlib.ErrEdgeAlreadyExists) {
			return nil, fmt.Errorf("adding edge %s -> %s: %w", d.Source, d.Target, err)
		}
	}

	sccs, err := graphlib.StronglyConnectedComponents(g)
	if err != nil {
		return nil, fmt.Errorf("computing components: %w", err)
	}

	var groups [][]string
	for _, c := range sccs {
		if len(c) < 2 && !selfLoops[c[0]] {
			continue
		}
		group := append([]string(nil), c...)
		sort.Strings(group)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i][0] < groups[j][0]
	})
	return groups, nil
}

// Enrich fills the dependencies, ranks and cycle groups of snap.
func Enrich(snap *model.Snapshot) error {
	snap.Dependencies = BuildGraph(snap)
	Rank(snap, snap.Dependencies)
	groups, err := CycleGroups(snap.Dependencies)
	if err != nil {
		return fmt.Errorf("grouping cycles: %w", err)
	}
	snap.CycleGroups = groups
	return nil
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Files that include nothing spread their rank evenly.
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for src, targets := range outEdges {
			contrib := alpha * rank[src] / float64(outDegree[src])
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
