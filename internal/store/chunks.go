package store

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
	"github.com/vaultlabs/vlt/internal/vaulterrors"
	"github.com/vaultlabs/vlt/internal/vectorutil"
)

// SaveChunks inserts a batch of CodeChunks and keeps code_chunk_fts in sync,
// as one transaction. Any chunk whose FileHash is empty gets it computed
// from its body.
func (s *Store) SaveChunks(ctx context.Context, project string, chunks []vaultmodel.CodeChunk) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range chunks {
			if c.FileHash == "" {
				sum := md5.Sum([]byte(c.Body))
				c.FileHash = hex.EncodeToString(sum[:])
			}
			var blob []byte
			if c.Embedding != nil {
				blob = vectorutil.Serialize(c.Embedding)
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO code_chunks (
					id, project_id, file_path, file_hash, kind, short_name, qualified_name,
					language, start_line, end_line, imports, class_context, signature,
					decorators, docstring, body, embedding, token_count
				) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
				ON CONFLICT(id) DO UPDATE SET
					file_hash=excluded.file_hash, short_name=excluded.short_name,
					qualified_name=excluded.qualified_name, signature=excluded.signature,
					docstring=excluded.docstring, body=excluded.body,
					embedding=excluded.embedding, token_count=excluded.token_count,
					updated_at=CURRENT_TIMESTAMP`,
				c.ID, project, c.FilePath, c.FileHash, c.Kind, c.ShortName, c.QualifiedName,
				c.Language, c.StartLine, c.EndLine, c.Imports, c.ClassContext, c.Signature,
				c.Decorators, c.Docstring, c.Body, blob, c.TokenCount)
			if err != nil {
				return fmt.Errorf("insert code chunk %s: %w", c.ID, err)
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM code_chunk_fts WHERE chunk_id = ?`, c.ID); err != nil {
				return fmt.Errorf("clear fts row for %s: %w", c.ID, err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO code_chunk_fts (chunk_id, name, qualified_name, signature, docstring, body)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				c.ID, c.ShortName, c.QualifiedName, strOrEmpty(c.Signature), strOrEmpty(c.Docstring), c.Body)
			if err != nil {
				return fmt.Errorf("insert fts row for %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// GetChunksByFile returns a file's chunks ordered by start line.
func (s *Store) GetChunksByFile(ctx context.Context, project, path string) ([]vaultmodel.CodeChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, file_path, file_hash, kind, short_name, qualified_name,
			language, start_line, end_line, imports, class_context, signature,
			decorators, docstring, body, embedding, token_count, created_at, updated_at
		 FROM code_chunks WHERE project_id = ? AND file_path = ? ORDER BY start_line ASC`,
		project, path)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("get chunks by file: %w", err))
	}
	defer rows.Close()

	var out []vaultmodel.CodeChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllChunksWithEmbedding returns every chunk in a project carrying a
// non-null embedding, for the vector retriever's brute-force scan.
func (s *Store) AllChunksWithEmbedding(ctx context.Context, project string) ([]vaultmodel.CodeChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, file_path, file_hash, kind, short_name, qualified_name,
			language, start_line, end_line, imports, class_context, signature,
			decorators, docstring, body, embedding, token_count, created_at, updated_at
		 FROM code_chunks WHERE project_id = ? AND embedding IS NOT NULL`, project)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("all chunks with embedding: %w", err))
	}
	defer rows.Close()

	var out []vaultmodel.CodeChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChunkByID fetches one chunk by id, for joining FTS hits back to full rows.
func (s *Store) ChunkByID(ctx context.Context, id string) (vaultmodel.CodeChunk, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, file_path, file_hash, kind, short_name, qualified_name,
			language, start_line, end_line, imports, class_context, signature,
			decorators, docstring, body, embedding, token_count, created_at, updated_at
		 FROM code_chunks WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return vaultmodel.CodeChunk{}, false, nil
	}
	if err != nil {
		return vaultmodel.CodeChunk{}, false, vaulterrors.Wrap(vaulterrors.ErrStore, err)
	}
	return c, true, nil
}

// DeleteFileData removes code chunks, code nodes, code edges whose source
// belongs to the file, and symbol definitions for the file, as one
// transaction, per the per-file wholesale delete-and-recreate lifecycle.
func (s *Store) DeleteFileData(ctx context.Context, project, path string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM code_chunks WHERE project_id = ? AND file_path = ?`, project, path)
		if err != nil {
			return fmt.Errorf("select chunk ids: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan chunk id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM code_chunk_fts WHERE chunk_id = ?`, id); err != nil {
				return fmt.Errorf("delete fts row %s: %w", id, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM code_chunks WHERE project_id = ? AND file_path = ?`, project, path); err != nil {
			return fmt.Errorf("delete code chunks: %w", err)
		}

		var nodeIDs []string
		nrows, err := tx.QueryContext(ctx, `SELECT qualified_id FROM code_nodes WHERE project_id = ? AND file = ?`, project, path)
		if err != nil {
			return fmt.Errorf("select code node ids: %w", err)
		}
		for nrows.Next() {
			var id string
			if err := nrows.Scan(&id); err != nil {
				nrows.Close()
				return fmt.Errorf("scan code node id: %w", err)
			}
			nodeIDs = append(nodeIDs, id)
		}
		nrows.Close()
		if err := nrows.Err(); err != nil {
			return err
		}

		for _, id := range nodeIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM code_edges WHERE project_id = ? AND source_id = ?`, project, id); err != nil {
				return fmt.Errorf("delete edges for %s: %w", id, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM code_nodes WHERE project_id = ? AND file = ?`, project, path); err != nil {
			return fmt.Errorf("delete code nodes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM symbol_definitions WHERE project_id = ? AND file = ?`, project, path); err != nil {
			return fmt.Errorf("delete symbol definitions: %w", err)
		}
		return nil
	})
}

func scanChunk(r rowScanner) (vaultmodel.CodeChunk, error) {
	var c vaultmodel.CodeChunk
	var imports, classCtx, signature, decorators, docstring sql.NullString
	var blob []byte
	err := r.Scan(&c.ID, &c.ProjectID, &c.FilePath, &c.FileHash, &c.Kind, &c.ShortName, &c.QualifiedName,
		&c.Language, &c.StartLine, &c.EndLine, &imports, &classCtx, &signature,
		&decorators, &docstring, &c.Body, &blob, &c.TokenCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return vaultmodel.CodeChunk{}, fmt.Errorf("scan code chunk: %w", err)
	}
	c.Imports = nullToPtr(imports)
	c.ClassContext = nullToPtr(classCtx)
	c.Signature = nullToPtr(signature)
	c.Decorators = nullToPtr(decorators)
	c.Docstring = nullToPtr(docstring)
	if len(blob) > 0 {
		v, err := vectorutil.Deserialize(blob)
		if err != nil {
			return vaultmodel.CodeChunk{}, fmt.Errorf("deserialize chunk embedding: %w", err)
		}
		c.Embedding = v
	}
	return c, nil
}

func nullToPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
