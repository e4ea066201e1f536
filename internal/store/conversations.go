package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
	"github.com/vaultlabs/vlt/internal/vaulterrors"
)

// FindActiveConversation returns the most recent conversation for
// (project, user) with status='active', if any — the caller decides
// whether its last_activity still falls inside the session-expiry window.
func (s *Store) FindActiveConversation(ctx context.Context, project, user string) (vaultmodel.OracleConversation, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, user, token_budget, tokens_used, compressed_summary, exchanges,
			status, last_activity, expires_at, compression_count, mentioned_symbols, mentioned_files
		 FROM oracle_conversations WHERE project_id = ? AND user = ? AND status = 'active'
		 ORDER BY last_activity DESC LIMIT 1`, project, user)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return vaultmodel.OracleConversation{}, false, nil
	}
	if err != nil {
		return vaultmodel.OracleConversation{}, false, vaulterrors.Wrap(vaulterrors.ErrStore, err)
	}
	return c, true, nil
}

// CreateConversation inserts a new OracleConversation row.
func (s *Store) CreateConversation(ctx context.Context, c vaultmodel.OracleConversation) error {
	exchanges, err := json.Marshal(c.Exchanges)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("marshal exchanges: %w", err))
	}
	symbols, err := json.Marshal(orEmptySlice(c.MentionedSymbols))
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("marshal symbols: %w", err))
	}
	files, err := json.Marshal(orEmptySlice(c.MentionedFiles))
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("marshal files: %w", err))
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO oracle_conversations (
			id, project_id, user, token_budget, tokens_used, compressed_summary, exchanges,
			status, last_activity, expires_at, compression_count, mentioned_symbols, mentioned_files
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.ProjectID, c.User, c.TokenBudget, c.TokensUsed, c.CompressedSummary, string(exchanges),
		c.Status, c.LastActivity, c.ExpiresAt, c.CompressionCount, string(symbols), string(files))
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("create conversation: %w", err))
	}
	return nil
}

// UpdateConversation replaces a conversation's mutable fields wholesale —
// the exchange-log blob is always replaced as a whole, never merged.
func (s *Store) UpdateConversation(ctx context.Context, c vaultmodel.OracleConversation) error {
	exchanges, err := json.Marshal(c.Exchanges)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("marshal exchanges: %w", err))
	}
	symbols, err := json.Marshal(orEmptySlice(c.MentionedSymbols))
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("marshal symbols: %w", err))
	}
	files, err := json.Marshal(orEmptySlice(c.MentionedFiles))
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("marshal files: %w", err))
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE oracle_conversations SET
			tokens_used = ?, compressed_summary = ?, exchanges = ?, status = ?,
			last_activity = ?, compression_count = ?, mentioned_symbols = ?, mentioned_files = ?
		 WHERE id = ?`,
		c.TokensUsed, c.CompressedSummary, string(exchanges), c.Status,
		c.LastActivity, c.CompressionCount, string(symbols), string(files), c.ID)
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.ErrStore, fmt.Errorf("update conversation: %w", err))
	}
	return nil
}

func scanConversation(r rowScanner) (vaultmodel.OracleConversation, error) {
	var c vaultmodel.OracleConversation
	var compressedSummary sql.NullString
	var exchangesJSON, symbolsJSON, filesJSON string
	err := r.Scan(&c.ID, &c.ProjectID, &c.User, &c.TokenBudget, &c.TokensUsed, &compressedSummary, &exchangesJSON,
		&c.Status, &c.LastActivity, &c.ExpiresAt, &c.CompressionCount, &symbolsJSON, &filesJSON)
	if err != nil {
		return vaultmodel.OracleConversation{}, fmt.Errorf("scan conversation: %w", err)
	}
	c.CompressedSummary = nullToPtr(compressedSummary)
	if err := json.Unmarshal([]byte(exchangesJSON), &c.Exchanges); err != nil {
		return vaultmodel.OracleConversation{}, fmt.Errorf("unmarshal exchanges: %w", err)
	}
	if err := json.Unmarshal([]byte(symbolsJSON), &c.MentionedSymbols); err != nil {
		return vaultmodel.OracleConversation{}, fmt.Errorf("unmarshal symbols: %w", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &c.MentionedFiles); err != nil {
		return vaultmodel.OracleConversation{}, fmt.Errorf("unmarshal files: %w", err)
	}
	return c, nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
