package store

import "github.com/google/uuid"

// newID generates a new identifier for rows the caller doesn't supply one
// for (Node, CodeEdge, SymbolDefinition, RepoMap, IndexDeltaQueue ids).
func newID() string {
	return uuid.NewString()
}
