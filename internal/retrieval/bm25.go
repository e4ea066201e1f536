package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vaultlabs/vlt/internal/store"
	"github.com/vaultlabs/vlt/internal/tokenest"
)

// BM25Retriever runs an FTS5 MATCH query against code_chunk_fts.
type BM25Retriever struct {
	Store   *store.Store
	Project string
}

func (r *BM25Retriever) Name() string { return "bm25" }

func (r *BM25Retriever) Available(ctx context.Context) bool { return true }

// ftsReservedChars strips FTS5 query syntax characters so free-text queries
// never produce a syntax error (escape by stripping rather than quoting,
// since quoting changes MATCH semantics to phrase search).
var ftsReservedChars = regexp.MustCompile(`["*^:()\-]`)

func sanitizeFTSQuery(q string) string {
	cleaned := ftsReservedChars.ReplaceAllString(q, " ")
	fields := strings.Fields(cleaned)
	return strings.Join(fields, " ")
}

func (r *BM25Retriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	rows, err := r.Store.DB().QueryContext(ctx,
		`SELECT chunk_id, rank FROM code_chunk_fts WHERE code_chunk_fts MATCH ? ORDER BY rank LIMIT ?`,
		sanitized, limit)
	if err != nil {
		return nil, wrapQueryError(r.Name(), fmt.Errorf("fts match: %w", err))
	}
	defer rows.Close()

	type hit struct {
		chunkID string
		rank    float64
	}
	var hits []hit
	maxNegRank := 0.0 // rank is negative; -rank is the positive score, max of which normalizes to 1.0
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.chunkID, &h.rank); err != nil {
			return nil, wrapQueryError(r.Name(), fmt.Errorf("scan fts hit: %w", err))
		}
		negRank := -h.rank
		if negRank > maxNegRank {
			maxNegRank = negRank
		}
		hits = append(hits, hit{chunkID: h.chunkID, rank: negRank})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError(r.Name(), err)
	}
	if maxNegRank == 0 {
		maxNegRank = 1
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		chunk, ok, err := r.Store.ChunkByID(ctx, h.chunkID)
		if err != nil {
			return nil, wrapQueryError(r.Name(), fmt.Errorf("load chunk %s: %w", h.chunkID, err))
		}
		if !ok {
			continue
		}
		content := renderCodeContent(chunk)
		out = append(out, Result{
			Content:    content,
			SourceType: SourceCode,
			SourcePath: fmt.Sprintf("%s:%d", chunk.FilePath, chunk.StartLine),
			Method:     MethodBM25,
			Score:      h.rank / maxNegRank,
			TokenCount: tokenest.Estimate(content),
			Metadata:   map[string]any{"chunk_id": chunk.ID, "qualified_name": chunk.QualifiedName, "language": chunk.Language},
		})
	}
	return out, nil
}
