// Package retrieval implements the five retriever kinds behind a common
// contract: vector, BM25, graph (navigation), vault (HTTP), and thread.
package retrieval

import (
	"context"

	"github.com/vaultlabs/vlt/internal/obslog"
	"github.com/vaultlabs/vlt/internal/vaulterrors"
)

// SourceType is the origin category of a Result.
type SourceType string

const (
	SourceCode       SourceType = "code"
	SourceVault      SourceType = "vault"
	SourceThread     SourceType = "thread"
	SourceDefinition SourceType = "definition"
	SourceReference  SourceType = "reference"
)

// Method is how a Result was found.
type Method string

const (
	MethodVector Method = "vector"
	MethodBM25   Method = "bm25"
	MethodGraph  Method = "graph"
	MethodCtags  Method = "ctags"
	MethodSCIP   Method = "scip"
)

// Result is one retrieval hit against the common contract.
type Result struct {
	Content    string
	SourceType SourceType
	SourcePath string
	Method     Method
	Score      float64
	TokenCount int
	Metadata   map[string]any
}

// Retriever is the small capability set the hybrid orchestrator iterates
// without knowledge of the concrete kind.
type Retriever interface {
	Name() string
	Available(ctx context.Context) bool
	Retrieve(ctx context.Context, query string, limit int) ([]Result, error)
}

// RetrieveSafe calls r.Retrieve and swallows any RetrieverQueryError-class
// failure into an empty result, logging it — the per-retriever failure
// isolation the hybrid orchestrator depends on.
func RetrieveSafe(ctx context.Context, r Retriever, query string, limit int) []Result {
	results, err := r.Retrieve(ctx, query, limit)
	if err != nil {
		obslog.Get().Warn().Err(err).Str("retriever", r.Name()).Msg("retriever query failed")
		return nil
	}
	return results
}

// wrapQueryError tags an error as a RetrieverQueryError for logging/tests;
// RetrieveSafe treats any error the same way regardless of taxonomy kind.
func wrapQueryError(retriever string, err error) error {
	if err == nil {
		return nil
	}
	return vaulterrors.Wrap(vaulterrors.ErrRetrieverQuery, err)
}
