package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
	"github.com/vaultlabs/vlt/internal/vaulterrors"
)

// QueueFileChange appends an IndexDeltaQueue row, de-duplicating by
// (project, path): an existing queued row for the same path is superseded.
func (s *Store) QueueFileChange(ctx context.Context, entry vaultmodel.IndexDeltaQueue) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM index_delta_queue WHERE project_id = ? AND file_path = ? AND status = 'queued'`,
			entry.ProjectID, entry.FilePath); err != nil {
			return fmt.Errorf("supersede existing queue entry: %w", err)
		}
		id := entry.ID
		if id == "" {
			id = newID()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO index_delta_queue (id, project_id, file_path, kind, old_hash, new_hash, lines_changed_est, priority, status)
			 VALUES (?,?,?,?,?,?,?,?,'queued')`,
			id, entry.ProjectID, entry.FilePath, entry.Kind, entry.OldHash, entry.NewHash, entry.LinesChangedEst, entry.Priority)
		if err != nil {
			return fmt.Errorf("insert queue entry: %w", err)
		}
		return nil
	})
}

// QueuedEntries returns all rows with status='queued' for a project, ordered
// by priority desc then queued_at asc (the commit-order index).
func (s *Store) QueuedEntries(ctx context.Context, project string) ([]vaultmodel.IndexDeltaQueue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, file_path, kind, old_hash, new_hash, lines_changed_est, priority, status, error, queued_at
		 FROM index_delta_queue WHERE project_id = ? AND status = 'queued'
		 ORDER BY priority DESC, queued_at ASC`, project)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("queued entries: %w", err))
	}
	defer rows.Close()

	var out []vaultmodel.IndexDeltaQueue
	for rows.Next() {
		e, err := scanDeltaEntry(rows)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.ErrStore, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PromoteToCritical raises a queued entry's priority.
func (s *Store) PromoteToCritical(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE index_delta_queue SET priority = ? WHERE id = ? AND status = 'queued'`,
		vaultmodel.PriorityCritical, id)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("promote entry %s: %w", id, err))
	}
	return nil
}

// MarkDeltaStatus updates a queue entry's status (and optional error) after
// processing.
func (s *Store) MarkDeltaStatus(ctx context.Context, id string, status vaultmodel.DeltaStatus, cause *string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE index_delta_queue SET status = ?, error = ? WHERE id = ?`, status, cause, id)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("mark delta status %s: %w", id, err))
	}
	return nil
}

func scanDeltaEntry(r rowScanner) (vaultmodel.IndexDeltaQueue, error) {
	var e vaultmodel.IndexDeltaQueue
	var oldHash, newHash, cause sql.NullString
	var priority int
	if err := r.Scan(&e.ID, &e.ProjectID, &e.FilePath, &e.Kind, &oldHash, &newHash,
		&e.LinesChangedEst, &priority, &e.Status, &cause, &e.QueuedAt); err != nil {
		return vaultmodel.IndexDeltaQueue{}, fmt.Errorf("scan delta entry: %w", err)
	}
	e.OldHash = nullToPtr(oldHash)
	e.NewHash = nullToPtr(newHash)
	e.Error = nullToPtr(cause)
	e.Priority = vaultmodel.DeltaPriority(priority)
	return e, nil
}
