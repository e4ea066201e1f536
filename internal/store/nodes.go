package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
	"github.com/vaultlabs/vlt/internal/vaulterrors"
	"github.com/vaultlabs/vlt/internal/vectorutil"
)

// CreateProject inserts a new project row.
func (s *Store) CreateProject(ctx context.Context, p vaultmodel.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.Description)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("create project %s: %w", p.ID, err))
	}
	return nil
}

// CreateThread inserts a new thread row under a project.
func (s *Store) CreateThread(ctx context.Context, t vaultmodel.Thread) error {
	status := t.Status
	if status == "" {
		status = vaultmodel.ThreadActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, project_id, status) VALUES (?, ?, ?)`,
		t.ID, t.ProjectID, status)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("create thread %s: %w", t.ID, err))
	}
	return nil
}

// EnsureProject inserts a project row if one with the same id doesn't
// already exist; a fast-logging CLI must not fail a push over a project
// row its own config already describes.
func (s *Store) EnsureProject(ctx context.Context, p vaultmodel.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO projects (id, name, description) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.Description)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("ensure project %s: %w", p.ID, err))
	}
	return nil
}

// EnsureThread inserts a thread row if one with the same id doesn't
// already exist, so `thread push` can auto-vivify a thread on first use.
func (s *Store) EnsureThread(ctx context.Context, t vaultmodel.Thread) error {
	status := t.Status
	if status == "" {
		status = vaultmodel.ThreadActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO threads (id, project_id, status) VALUES (?, ?, ?)`,
		t.ID, t.ProjectID, status)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("ensure thread %s: %w", t.ID, err))
	}
	return nil
}

// ListThreads returns every thread under a project, most recently created
// first.
func (s *Store) ListThreads(ctx context.Context, project string) ([]vaultmodel.Thread, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, status, created_at FROM threads WHERE project_id = ? ORDER BY created_at DESC`, project)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("list threads for %s: %w", project, err))
	}
	defer rows.Close()

	var out []vaultmodel.Thread
	for rows.Next() {
		var t vaultmodel.Thread
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Status, &t.CreatedAt); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("scan thread: %w", err))
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AppendNode inserts a Node, assigning sequence_id = max(existing)+1 and
// prev_node_id = the previous max-sequence node's id, inside one
// transaction so the invariant holds under concurrent writers.
func (s *Store) AppendNode(ctx context.Context, threadID, content, author string, embedding []float32) (vaultmodel.Node, error) {
	var out vaultmodel.Node
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var prevID sql.NullString
		var maxSeq sql.NullInt64
		row := tx.QueryRowContext(ctx,
			`SELECT id, sequence_id FROM nodes WHERE thread_id = ? ORDER BY sequence_id DESC LIMIT 1`, threadID)
		switch err := row.Scan(&prevID, &maxSeq); {
		case errors.Is(err, sql.ErrNoRows):
			// first node in thread
		case err != nil:
			return fmt.Errorf("find max sequence: %w", err)
		}

		seq := int64(1)
		if maxSeq.Valid {
			seq = maxSeq.Int64 + 1
		}

		var blob []byte
		if embedding != nil {
			blob = vectorutil.Serialize(embedding)
		}

		id := newID()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (id, thread_id, sequence_id, content, author, prev_node_id, embedding)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, threadID, seq, content, author, nullableString(prevID), blob)
		if err != nil {
			return fmt.Errorf("insert node: %w", err)
		}

		out = vaultmodel.Node{
			ID:         id,
			ThreadID:   threadID,
			SequenceID: seq,
			Content:    content,
			Author:     author,
			Embedding:  embedding,
		}
		if prevID.Valid {
			p := prevID.String
			out.PrevNodeID = &p
		}
		return nil
	})
	if err != nil {
		return vaultmodel.Node{}, vaulterrors.Wrap(vaulterrors.ErrStore, err)
	}
	return out, nil
}

// ListNodes returns every node of a thread ordered by sequence_id.
func (s *Store) ListNodes(ctx context.Context, threadID string) ([]vaultmodel.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, sequence_id, content, author, timestamp, prev_node_id, embedding
		 FROM nodes WHERE thread_id = ? ORDER BY sequence_id ASC`, threadID)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("list nodes: %w", err))
	}
	defer rows.Close()

	var out []vaultmodel.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// NodesAfterSequence returns nodes of a thread with sequence_id strictly
// greater than after, ordered ascending — the "new nodes" set consumed by
// incremental summarisation.
func (s *Store) NodesAfterSequence(ctx context.Context, threadID string, after int64) ([]vaultmodel.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, sequence_id, content, author, timestamp, prev_node_id, embedding
		 FROM nodes WHERE thread_id = ? AND sequence_id > ? ORDER BY sequence_id ASC`, threadID, after)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("nodes after sequence: %w", err))
	}
	defer rows.Close()

	var out []vaultmodel.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GreatestSequenceNode returns the node with the highest sequence_id in a
// thread, or ok=false if the thread has no nodes.
func (s *Store) GreatestSequenceNode(ctx context.Context, threadID string) (node vaultmodel.Node, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, thread_id, sequence_id, content, author, timestamp, prev_node_id, embedding
		 FROM nodes WHERE thread_id = ? ORDER BY sequence_id DESC LIMIT 1`, threadID)
	n, scanErr := scanNode(row)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return vaultmodel.Node{}, false, nil
	}
	if scanErr != nil {
		return vaultmodel.Node{}, false, vaulterrors.Wrap(vaulterrors.ErrStore, scanErr)
	}
	return n, true, nil
}

// NodeExists reports whether a node id is still present (used to detect a
// ThreadSummaryCache anchor that has since been deleted/invalidated).
func (s *Store) NodeExists(ctx context.Context, nodeID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM nodes WHERE id = ?`, nodeID).Scan(&count)
	if err != nil {
		return false, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("node exists: %w", err))
	}
	return count > 0, nil
}

// NodesWithEmbeddingByProject returns every node under the project's
// threads that carries a non-null embedding, for the thread retriever's
// vector scan.
func (s *Store) NodesWithEmbeddingByProject(ctx context.Context, project string) ([]vaultmodel.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.id, n.thread_id, n.sequence_id, n.content, n.author, n.timestamp, n.prev_node_id, n.embedding
		 FROM nodes n JOIN threads t ON t.id = n.thread_id
		 WHERE t.project_id = ? AND n.embedding IS NOT NULL`, project)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("nodes with embedding by project: %w", err))
	}
	defer rows.Close()

	var out []vaultmodel.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(r rowScanner) (vaultmodel.Node, error) {
	var n vaultmodel.Node
	var prevID sql.NullString
	var blob []byte
	if err := r.Scan(&n.ID, &n.ThreadID, &n.SequenceID, &n.Content, &n.Author, &n.Timestamp, &prevID, &blob); err != nil {
		return vaultmodel.Node{}, fmt.Errorf("scan node: %w", err)
	}
	if prevID.Valid {
		p := prevID.String
		n.PrevNodeID = &p
	}
	if len(blob) > 0 {
		v, err := vectorutil.Deserialize(blob)
		if err != nil {
			return vaultmodel.Node{}, fmt.Errorf("deserialize node embedding: %w", err)
		}
		n.Embedding = v
	}
	return n, nil
}

// GetThreadSummaryCache fetches the cache row for a thread, if any.
func (s *Store) GetThreadSummaryCache(ctx context.Context, threadID string) (vaultmodel.ThreadSummaryCache, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT thread_id, summary, last_node_id, node_count, model, tokens_used, generated_at
		 FROM thread_summary_cache WHERE thread_id = ?`, threadID)

	var c vaultmodel.ThreadSummaryCache
	var lastID sql.NullString
	err := row.Scan(&c.ThreadID, &c.Summary, &lastID, &c.NodeCount, &c.Model, &c.TokensUsed, &c.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return vaultmodel.ThreadSummaryCache{}, false, nil
	}
	if err != nil {
		return vaultmodel.ThreadSummaryCache{}, false, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("get thread summary cache: %w", err))
	}
	if lastID.Valid {
		l := lastID.String
		c.LastSummarizedNodeID = &l
	}
	return c, true, nil
}

// UpsertThreadSummaryCache inserts or replaces the single cache row for a
// thread (unique index on thread_id enforces "one per thread").
func (s *Store) UpsertThreadSummaryCache(ctx context.Context, c vaultmodel.ThreadSummaryCache) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thread_summary_cache (thread_id, summary, last_node_id, node_count, model, tokens_used, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET
		   summary = excluded.summary,
		   last_node_id = excluded.last_node_id,
		   node_count = excluded.node_count,
		   model = excluded.model,
		   tokens_used = excluded.tokens_used,
		   generated_at = excluded.generated_at`,
		c.ThreadID, c.Summary, nullableStringPtr(c.LastSummarizedNodeID), c.NodeCount, c.Model, c.TokensUsed, c.GeneratedAt)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("upsert thread summary cache: %w", err))
	}
	return nil
}

// InvalidateThreadSummaryCache deletes the cache row for a thread.
func (s *Store) InvalidateThreadSummaryCache(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM thread_summary_cache WHERE thread_id = ?`, threadID)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("invalidate thread summary cache: %w", err))
	}
	return nil
}

func nullableString(n sql.NullString) any {
	if n.Valid {
		return n.String
	}
	return nil
}

func nullableStringPtr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
