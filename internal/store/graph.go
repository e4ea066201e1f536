package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
	"github.com/vaultlabs/vlt/internal/vaulterrors"
)

// SaveGraph inserts/updates a batch of CodeNodes and CodeEdges as one
// transaction.
func (s *Store) SaveGraph(ctx context.Context, project string, nodes []vaultmodel.CodeNode, edges []vaultmodel.CodeEdge) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, n := range nodes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO code_nodes (qualified_id, project_id, file, kind, name, signature, line, docstring, centrality_score)
				 VALUES (?,?,?,?,?,?,?,?,?)
				 ON CONFLICT(project_id, qualified_id) DO UPDATE SET
					file=excluded.file, kind=excluded.kind, name=excluded.name,
					signature=excluded.signature, line=excluded.line,
					docstring=excluded.docstring, centrality_score=excluded.centrality_score`,
				n.QualifiedID, project, n.File, n.Kind, n.Name, n.Signature, n.Line, n.Docstring, n.Centrality)
			if err != nil {
				return fmt.Errorf("insert code node %s: %w", n.QualifiedID, err)
			}
		}
		for _, e := range edges {
			id := e.ID
			if id == "" {
				id = newID()
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO code_edges (id, project_id, source_id, target_id, kind, line, count)
				 VALUES (?,?,?,?,?,?,?)`,
				id, project, e.SourceID, e.TargetID, e.Kind, e.Line, e.Count)
			if err != nil {
				return fmt.Errorf("insert code edge %s->%s: %w", e.SourceID, e.TargetID, err)
			}
		}
		return nil
	})
}

// UpdateCentrality writes back PageRank scores computed over the full graph.
func (s *Store) UpdateCentrality(ctx context.Context, project string, scores map[string]float64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for qid, score := range scores {
			if _, err := tx.ExecContext(ctx,
				`UPDATE code_nodes SET centrality_score = ? WHERE project_id = ? AND qualified_id = ?`,
				score, project, qid); err != nil {
				return fmt.Errorf("update centrality for %s: %w", qid, err)
			}
		}
		return nil
	})
}

// CodeNodesByProject returns every CodeNode for a project.
func (s *Store) CodeNodesByProject(ctx context.Context, project string) ([]vaultmodel.CodeNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT qualified_id, project_id, file, kind, name, signature, line, docstring, centrality_score
		 FROM code_nodes WHERE project_id = ?`, project)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("code nodes by project: %w", err))
	}
	defer rows.Close()

	var out []vaultmodel.CodeNode
	for rows.Next() {
		var n vaultmodel.CodeNode
		var signature, docstring sql.NullString
		var line sql.NullInt64
		var centrality sql.NullFloat64
		if err := rows.Scan(&n.QualifiedID, &n.ProjectID, &n.File, &n.Kind, &n.Name, &signature, &line, &docstring, &centrality); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("scan code node: %w", err))
		}
		n.Signature = nullToPtr(signature)
		n.Docstring = nullToPtr(docstring)
		if line.Valid {
			l := int(line.Int64)
			n.Line = &l
		}
		if centrality.Valid {
			c := centrality.Float64
			n.Centrality = &c
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CodeNodeByName finds a CodeNode by its short name within a project, used
// by the graph retriever's definition lookup after ctags misses.
func (s *Store) CodeNodeByName(ctx context.Context, project, name string) (vaultmodel.CodeNode, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT qualified_id, project_id, file, kind, name, signature, line, docstring, centrality_score
		 FROM code_nodes WHERE project_id = ? AND name = ? LIMIT 1`, project, name)
	var n vaultmodel.CodeNode
	var signature, docstring sql.NullString
	var line sql.NullInt64
	var centrality sql.NullFloat64
	err := row.Scan(&n.QualifiedID, &n.ProjectID, &n.File, &n.Kind, &n.Name, &signature, &line, &docstring, &centrality)
	if err == sql.ErrNoRows {
		return vaultmodel.CodeNode{}, false, nil
	}
	if err != nil {
		return vaultmodel.CodeNode{}, false, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("code node by name: %w", err))
	}
	n.Signature = nullToPtr(signature)
	n.Docstring = nullToPtr(docstring)
	if line.Valid {
		l := int(line.Int64)
		n.Line = &l
	}
	if centrality.Valid {
		c := centrality.Float64
		n.Centrality = &c
	}
	return n, true, nil
}

// EdgesByTarget returns CodeEdges whose target equals symbol, for the graph
// retriever's reference lookup.
func (s *Store) EdgesByTarget(ctx context.Context, project, symbol string, limit int) ([]vaultmodel.CodeEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, source_id, target_id, kind, line, count
		 FROM code_edges WHERE project_id = ? AND target_id = ? LIMIT ?`, project, symbol, limit)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("edges by target: %w", err))
	}
	defer rows.Close()

	var out []vaultmodel.CodeEdge
	for rows.Next() {
		var e vaultmodel.CodeEdge
		var line sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.SourceID, &e.TargetID, &e.Kind, &line, &e.Count); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("scan code edge: %w", err))
		}
		if line.Valid {
			l := int(line.Int64)
			e.Line = &l
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AllEdgesByProject returns every edge for a project, for PageRank.
func (s *Store) AllEdgesByProject(ctx context.Context, project string) ([]vaultmodel.CodeEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, source_id, target_id, kind, line, count FROM code_edges WHERE project_id = ?`, project)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("all edges by project: %w", err))
	}
	defer rows.Close()

	var out []vaultmodel.CodeEdge
	for rows.Next() {
		var e vaultmodel.CodeEdge
		var line sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.SourceID, &e.TargetID, &e.Kind, &line, &e.Count); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("scan code edge: %w", err))
		}
		if line.Valid {
			l := int(line.Int64)
			e.Line = &l
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveSymbols inserts a batch of SymbolDefinitions.
func (s *Store) SaveSymbols(ctx context.Context, project string, symbols []vaultmodel.SymbolDefinition) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, sym := range symbols {
			id := sym.ID
			if id == "" {
				id = newID()
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO symbol_definitions (id, project_id, name, file, line, kind, scope, signature, language)
				 VALUES (?,?,?,?,?,?,?,?,?)`,
				id, project, sym.Name, sym.File, sym.Line, sym.Kind, sym.Scope, sym.Signature, sym.Language)
			if err != nil {
				return fmt.Errorf("insert symbol %s: %w", sym.Name, err)
			}
		}
		return nil
	})
}

// SymbolsByName finds SymbolDefinitions by exact name, used by the graph
// retriever's ctags-backed definition lookup.
func (s *Store) SymbolsByName(ctx context.Context, project, name string) ([]vaultmodel.SymbolDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, file, line, kind, scope, signature, language
		 FROM symbol_definitions WHERE project_id = ? AND name = ?`, project, name)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("symbols by name: %w", err))
	}
	defer rows.Close()

	var out []vaultmodel.SymbolDefinition
	for rows.Next() {
		var sym vaultmodel.SymbolDefinition
		var scope, signature sql.NullString
		if err := rows.Scan(&sym.ID, &sym.ProjectID, &sym.Name, &sym.File, &sym.Line, &sym.Kind, &scope, &signature, &sym.Language); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("scan symbol: %w", err))
		}
		sym.Scope = nullToPtr(scope)
		sym.Signature = nullToPtr(signature)
		out = append(out, sym)
	}
	return out, rows.Err()
}

// SaveRepoMap appends a RepoMap row (the table is append-only).
func (s *Store) SaveRepoMap(ctx context.Context, m vaultmodel.RepoMap) error {
	id := m.ID
	if id == "" {
		id = newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repo_maps (id, project_id, scope, text, token_count, budget_used, files_included, symbols_included, symbols_total)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		id, m.ProjectID, m.Scope, m.Text, m.TokenCount, m.BudgetUsed, m.FilesIncluded, m.SymbolsIncluded, m.SymbolsTotal)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("save repo map: %w", err))
	}
	return nil
}

// GetRepoMap returns the latest RepoMap for (project, scope) by timestamp.
// scope may be nil to fetch the unscoped map.
func (s *Store) GetRepoMap(ctx context.Context, project string, scope *string) (vaultmodel.RepoMap, bool, error) {
	var row *sql.Row
	if scope == nil {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, project_id, scope, text, token_count, budget_used, files_included, symbols_included, symbols_total, created_at
			 FROM repo_maps WHERE project_id = ? AND scope IS NULL ORDER BY created_at DESC LIMIT 1`, project)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, project_id, scope, text, token_count, budget_used, files_included, symbols_included, symbols_total, created_at
			 FROM repo_maps WHERE project_id = ? AND scope = ? ORDER BY created_at DESC LIMIT 1`, project, *scope)
	}

	var m vaultmodel.RepoMap
	var scopeCol sql.NullString
	err := row.Scan(&m.ID, &m.ProjectID, &scopeCol, &m.Text, &m.TokenCount, &m.BudgetUsed, &m.FilesIncluded, &m.SymbolsIncluded, &m.SymbolsTotal, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return vaultmodel.RepoMap{}, false, nil
	}
	if err != nil {
		return vaultmodel.RepoMap{}, false, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("get repo map: %w", err))
	}
	m.Scope = nullToPtr(scopeCol)
	return m, true, nil
}

// GetProjectStats returns counts of chunks, nodes, edges, symbols.
func (s *Store) GetProjectStats(ctx context.Context, project string) (vaultmodel.ProjectStats, error) {
	var stats vaultmodel.ProjectStats
	queries := []struct {
		table string
		dest  *int
	}{
		{"code_chunks", &stats.ChunkCount},
		{"code_nodes", &stats.NodeCount},
		{"code_edges", &stats.EdgeCount},
		{"symbol_definitions", &stats.SymbolCount},
	}
	for _, q := range queries {
		err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE project_id = ?`, q.table), project).Scan(q.dest)
		if err != nil {
			return vaultmodel.ProjectStats{}, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("count %s: %w", q.table, err))
		}
	}
	return stats, nil
}
