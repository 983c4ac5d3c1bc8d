// Package export loads analysis snapshots into external stores.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/egammo/lite-c-dependency-analyzer/internal/model"
)

type runFunc func(ctx context.Context, cypher string, params map[string]any) error

// Neo4jLoader loads a snapshot into a Neo4j database using batch UNWIND
// queries. Files, symbols and search directories are upserted by key, so
// repeated loads of the same project converge.
type Neo4jLoader struct {
	driver neo4j.DriverWithContext
	run    runFunc
	log    *slog.Logger
}

// NewNeo4jLoader connects to Neo4j and returns a ready-to-use loader.
func NewNeo4jLoader(ctx context.Context, uri, user, password string, logger *slog.Logger) (*Neo4jLoader, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to %s: %w", uri, err)
	}
	l := newLoader(func(ctx context.Context, cypher string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer)
		return err
	}, logger)
	l.driver = driver
	return l, nil
}

func newLoader(run runFunc, logger *slog.Logger) *Neo4jLoader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Neo4jLoader{run: run, log: logger}
}

// Close releases the underlying Neo4j driver resources.
func (l *Neo4jLoader) Close(ctx context.Context) error {
	if l.driver == nil {
		return nil
	}
	return l.driver.Close(ctx)
}

// Load writes the whole snapshot: indexes, files, symbols, include edges and
// search directories. With clean, nodes of a previous load under the same
// root are removed first.
func (l *Neo4jLoader) Load(ctx context.Context, snap *model.Snapshot, clean bool) error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"creating indexes", func() error { return l.CreateIndexes(ctx) }},
		{"loading files", func() error { return l.LoadFiles(ctx, snap) }},
		{"loading symbols", func() error { return l.LoadSymbols(ctx, snap) }},
		{"loading includes", func() error { return l.LoadIncludes(ctx, snap) }},
		{"loading search directories", func() error { return l.LoadSearchDirs(ctx, snap) }},
	}
	if clean {
		steps = append([]struct {
			name string
			fn   func() error
		}{{"cleaning graph", func() error { return l.CleanGraph(ctx, snap.Root) }}}, steps...)
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// CleanGraph removes previously loaded nodes of the project at root.
func (l *Neo4jLoader) CleanGraph(ctx context.Context, root string) error {
	l.log.Info("cleaning existing graph data", "root", root)
	queries := []string{
		"MATCH (s:LiteSymbol {root: $root}) DETACH DELETE s",
		"MATCH (d:LiteSearchDir {root: $root}) DETACH DELETE d",
		"MATCH (f:LiteFile {root: $root}) DETACH DELETE f",
	}
	for _, q := range queries {
		if err := l.run(ctx, q, map[string]any{"root": root}); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndexes ensures the required Neo4j indexes exist.
func (l *Neo4jLoader) CreateIndexes(ctx context.Context) error {
	l.log.Info("creating indexes")
	indexes := []string{
		"CREATE INDEX lite_file_path IF NOT EXISTS FOR (n:LiteFile) ON (n.path)",
		"CREATE INDEX lite_symbol_key IF NOT EXISTS FOR (n:LiteSymbol) ON (n.key)",
		"CREATE INDEX lite_symbol_name IF NOT EXISTS FOR (n:LiteSymbol) ON (n.name)",
		"CREATE INDEX lite_searchdir_key IF NOT EXISTS FOR (n:LiteSearchDir) ON (n.key)",
	}
	for _, q := range indexes {
		if err := l.run(ctx, q, nil); err != nil {
			return err
		}
	}
	return nil
}

// LoadFiles upserts LiteFile nodes for every reportable file.
func (l *Neo4jLoader) LoadFiles(ctx context.Context, snap *model.Snapshot) error {
	batch := fileRows(snap)
	l.log.Info("loading files", "count", len(batch))
	if len(batch) == 0 {
		return nil
	}
	return l.run(ctx,
		`UNWIND $batch AS row
		 MERGE (n:LiteFile {path: row.path})
		 SET n.root = row.root, n.name = row.name, n.dir = row.dir,
		     n.depth = row.depth, n.visits = row.visits, n.used = row.used,
		     n.cyclic = row.cyclic, n.deep_chain = row.deep, n.rank = row.rank,
		     n.syntax_errors = row.syntax`,
		map[string]any{"batch": batch},
	)
}

// LoadSymbols upserts LiteSymbol nodes and links them to their files.
func (l *Neo4jLoader) LoadSymbols(ctx context.Context, snap *model.Snapshot) error {
	batch := symbolRows(snap)
	l.log.Info("loading symbols", "count", len(batch))
	if len(batch) == 0 {
		return nil
	}
	return l.run(ctx,
		`UNWIND $batch AS row
		 MERGE (s:LiteSymbol {key: row.key})
		 SET s.root = row.root, s.name = row.name, s.kind = row.kind,
		     s.line = row.line, s.context = row.context,
		     s.duplicate = row.duplicate, s.count = row.count
		 WITH s, row
		 MATCH (f:LiteFile {path: row.file})
		 MERGE (s)-[:DECLARED_IN]->(f)`,
		map[string]any{"batch": batch},
	)
}

// LoadIncludes upserts INCLUDES relationships between LiteFile nodes.
func (l *Neo4jLoader) LoadIncludes(ctx context.Context, snap *model.Snapshot) error {
	batch := includeRows(snap)
	l.log.Info("loading include edges", "count", len(batch))
	if len(batch) == 0 {
		return nil
	}
	return l.run(ctx,
		`UNWIND $batch AS row
		 MATCH (src:LiteFile {path: row.source}), (dst:LiteFile {path: row.target})
		 MERGE (src)-[r:INCLUDES]->(dst)
		 SET r.names = row.names`,
		map[string]any{"batch": batch},
	)
}

// LoadSearchDirs upserts LiteSearchDir nodes and DECLARES edges from the
// declaring files.
func (l *Neo4jLoader) LoadSearchDirs(ctx context.Context, snap *model.Snapshot) error {
	batch := searchDirRows(snap)
	l.log.Info("loading search directories", "count", len(batch))
	if len(batch) == 0 {
		return nil
	}
	return l.run(ctx,
		`UNWIND $batch AS row
		 MERGE (d:LiteSearchDir {key: row.key})
		 SET d.root = row.root, d.path = row.path, d.directive = row.directive
		 WITH d, row
		 MATCH (f:LiteFile {path: row.source})
		 MERGE (f)-[r:DECLARES]->(d)
		 SET r.line = row.line`,
		map[string]any{"batch": batch},
	)
}

func fileRows(snap *model.Snapshot) []map[string]any {
	files := snap.Reportable()
	batch := make([]map[string]any, 0, len(files))
	for _, f := range files {
		batch = append(batch, map[string]any{
			"path": f.Path, "root": snap.Root, "name": f.Name, "dir": f.Dir,
			"depth": f.Depth, "visits": f.Visits, "used": f.Used,
			"cyclic": f.Cyclic, "deep": f.DeepChain, "rank": f.Rank,
			"syntax": f.SyntaxErrors,
		})
	}
	return batch
}

func symbolRows(snap *model.Snapshot) []map[string]any {
	var batch []map[string]any
	for _, f := range snap.Reportable() {
		for _, s := range f.Symbols {
			batch = append(batch, map[string]any{
				"key":  fmt.Sprintf("%s::%s::%s::%d", f.Path, s.Kind, s.Name, s.Line),
				"root": snap.Root, "file": f.Path, "name": s.Name,
				"kind": string(s.Kind), "line": s.Line, "context": s.Context,
				"duplicate": s.Duplicate, "count": s.Count,
			})
		}
	}
	return batch
}

func includeRows(snap *model.Snapshot) []map[string]any {
	batch := make([]map[string]any, 0, len(snap.Dependencies))
	for _, d := range snap.Dependencies {
		batch = append(batch, map[string]any{
			"source": d.Source, "target": d.Target, "names": d.Names,
		})
	}
	return batch
}

func searchDirRows(snap *model.Snapshot) []map[string]any {
	batch := make([]map[string]any, 0, len(snap.SearchDirs))
	for _, d := range snap.SearchDirs {
		batch = append(batch, map[string]any{
			"key":  snap.Root + "::" + d.Path,
			"root": snap.Root, "path": d.Path, "directive": d.Directive,
			"source": d.Source, "line": d.Line,
		})
	}
	return batch
}
