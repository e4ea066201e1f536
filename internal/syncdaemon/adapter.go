package syncdaemon

import "context"

// Indexer is the narrow capability the daemon needs to actually apply a
// queued file change; internal/delta.Manager's Indexer field satisfies it.
type Indexer interface {
	IndexFile(ctx context.Context, project, path string) error
}

// IndexerProcessor adapts an Indexer into a Processor so the same
// re-indexing entry point backs both the delta manager's direct commit
// path and the daemon's retry queue.
type IndexerProcessor struct {
	Indexer Indexer
}

func (p IndexerProcessor) Process(ctx context.Context, job Job) error {
	return p.Indexer.IndexFile(ctx, job.Project, job.Path)
}
