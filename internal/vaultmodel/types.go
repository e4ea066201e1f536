// Package vaultmodel defines the persistent domain types shared across the
// store, retrievers, and the Oracle pipeline. Keeping them dependency-free
// of the storage engine lets every other package depend on the shapes
// without pulling in database/sql or modernc.org/sqlite.
package vaultmodel

import "time"

// ThreadStatus is the lifecycle state of a Thread.
type ThreadStatus string

const (
	ThreadActive    ThreadStatus = "active"
	ThreadArchived  ThreadStatus = "archived"
	ThreadRecovered ThreadStatus = "recovered"
)

// Project is the root container for threads and a project's code index.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Thread is an ordered, append-only sequence of Nodes under a project.
type Thread struct {
	ID        string
	ProjectID string
	Status    ThreadStatus
	CreatedAt time.Time
}

// Node is a single immutable note within a thread.
type Node struct {
	ID         string
	ThreadID   string
	SequenceID int64
	Content    string
	Author     string
	Timestamp  time.Time
	PrevNodeID *string
	Embedding  []float32 // nil when not yet attached
}

// ThreadSummaryCache holds the latest synthesised summary for one thread.
type ThreadSummaryCache struct {
	ThreadID             string
	Summary              string
	LastSummarizedNodeID *string
	NodeCount            int
	Model                string
	TokensUsed           int
	GeneratedAt          time.Time
}

// IsFresh reports whether the cache reflects the thread's current
// greatest-sequence node, per the Fresh/Stale invariant.
func (c ThreadSummaryCache) IsFresh(greatestSequenceNodeID string) bool {
	return c.LastSummarizedNodeID != nil && *c.LastSummarizedNodeID == greatestSequenceNodeID
}

// ChunkKind categorises a CodeChunk.
type ChunkKind string

const (
	ChunkFunction ChunkKind = "function"
	ChunkClass    ChunkKind = "class"
	ChunkMethod   ChunkKind = "method"
	ChunkModule   ChunkKind = "module"
)

// CodeChunk is a unit of indexed source code.
type CodeChunk struct {
	ID             string
	ProjectID      string
	FilePath       string
	FileHash       string
	Kind           ChunkKind
	ShortName      string
	QualifiedName  string
	Language       string
	StartLine      int
	EndLine        int
	Imports        *string
	ClassContext   *string
	Signature      *string
	Decorators     *string
	Docstring      *string
	Body           string
	Embedding      []float32
	TokenCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CodeNodeKind categorises a CodeNode in the code graph.
type CodeNodeKind string

const (
	CodeNodeFunction CodeNodeKind = "function"
	CodeNodeClass    CodeNodeKind = "class"
	CodeNodeMethod   CodeNodeKind = "method"
	CodeNodeModule   CodeNodeKind = "module"
)

// CodeNode is a vertex in the code reference graph.
type CodeNode struct {
	QualifiedID string
	ProjectID   string
	File        string
	Kind        CodeNodeKind
	Name        string
	Signature   *string
	Line        *int
	Docstring   *string
	Centrality  *float64
}

// EdgeKind categorises a CodeEdge.
type EdgeKind string

const (
	EdgeCalls     EdgeKind = "calls"
	EdgeImports   EdgeKind = "imports"
	EdgeInherits  EdgeKind = "inherits"
	EdgeReferences EdgeKind = "references"
)

// CodeEdge is a directed edge in the code reference graph.
type CodeEdge struct {
	ID       string
	ProjectID string
	SourceID string
	TargetID string
	Kind     EdgeKind
	Line     *int
	Count    int
}

// SymbolDefinition is one entry from an external symbol index (ctags).
type SymbolDefinition struct {
	ID        string
	ProjectID string
	Name      string
	File      string
	Line      int
	Kind      string
	Scope     *string
	Signature *string
	Language  string
}

// RepoMap is a rendered, token-budgeted index of a project's central symbols.
type RepoMap struct {
	ID              string
	ProjectID       string
	Scope           *string
	Text            string
	TokenCount      int
	BudgetUsed      int
	FilesIncluded   int
	SymbolsIncluded int
	SymbolsTotal    int
	CreatedAt       time.Time
}

// OracleConversationStatus is the lifecycle state of an OracleConversation.
type OracleConversationStatus string

const (
	ConversationActive     OracleConversationStatus = "active"
	ConversationCompressed OracleConversationStatus = "compressed"
	ConversationClosed     OracleConversationStatus = "closed"
)

// Exchange is one tool invocation logged within an OracleConversation.
type Exchange struct {
	ToolName  string    `json:"tool_name"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Insights  []string  `json:"insights"`
	Timestamp time.Time `json:"timestamp"`
	Tokens    int       `json:"tokens"`
}

// OracleConversation is a per-(project,user) multi-turn exchange log.
type OracleConversation struct {
	ID                string
	ProjectID         string
	User              string
	TokenBudget       int
	TokensUsed        int
	CompressedSummary *string
	Exchanges         []Exchange
	Status            OracleConversationStatus
	LastActivity      time.Time
	ExpiresAt         time.Time
	CompressionCount  int
	MentionedSymbols  []string
	MentionedFiles    []string
}

// DeltaChangeKind categorises an IndexDeltaQueue entry.
type DeltaChangeKind string

const (
	DeltaAdded    DeltaChangeKind = "added"
	DeltaModified DeltaChangeKind = "modified"
	DeltaDeleted  DeltaChangeKind = "deleted"
)

// DeltaPriority orders IndexDeltaQueue processing.
type DeltaPriority int

const (
	PriorityNormal   DeltaPriority = 0
	PriorityHigh     DeltaPriority = 1
	PriorityCritical DeltaPriority = 2
)

// DeltaStatus is the processing state of an IndexDeltaQueue entry.
type DeltaStatus string

const (
	DeltaQueued  DeltaStatus = "queued"
	DeltaRunning DeltaStatus = "running"
	DeltaDone    DeltaStatus = "done"
	DeltaFailed  DeltaStatus = "failed"
)

// IndexDeltaQueue is one queued file change awaiting re-indexing.
type IndexDeltaQueue struct {
	ID                 string
	ProjectID          string
	FilePath           string
	Kind               DeltaChangeKind
	OldHash            *string
	NewHash            *string
	LinesChangedEst    int
	Priority           DeltaPriority
	Status             DeltaStatus
	Error              *string
	QueuedAt           time.Time
}

// ProjectStats is a cheap count of a project's indexed artifacts.
type ProjectStats struct {
	ChunkCount  int
	NodeCount   int
	EdgeCount   int
	SymbolCount int
}
