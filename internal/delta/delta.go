// Package delta detects file changes, queues them for re-indexing, enforces
// batching thresholds, and promotes queue entries that a live query needs
// right now (just-in-time commit).
package delta

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vaultlabs/vlt/internal/vaultmodel"
)

// Unchanged is not one of vaultmodel's queueable DeltaChangeKind values
// because an unchanged file is never queued; it only appears as a
// DetectFileChanges return value, for callers deciding whether to queue.
const Unchanged vaultmodel.DeltaChangeKind = "unchanged"

const (
	thresholdQueuedFiles = 5
	thresholdLineSum     = 1000
	thresholdAge         = 5 * time.Minute
)

// CalculateFileHash returns the 32-hex MD5 digest of path's contents.
func CalculateFileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// Change describes the outcome of comparing a file's current state against
// a previously recorded hash.
type Change struct {
	Kind            vaultmodel.DeltaChangeKind
	OldHash         *string
	NewHash         *string
	LinesChangedEst int
}

// DetectFileChanges classifies path's state relative to knownHash (nil if
// the file was never seen before).
func DetectFileChanges(path string, knownHash *string) (Change, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		old := knownHash
		return Change{Kind: vaultmodel.DeltaDeleted, OldHash: old, LinesChangedEst: 100}, nil
	}
	if err != nil {
		return Change{}, fmt.Errorf("read %s: %w", path, err)
	}

	sum := md5.Sum(data)
	newHash := hex.EncodeToString(sum[:])
	lineCount := countLines(data)

	if knownHash == nil {
		return Change{
			Kind:            vaultmodel.DeltaAdded,
			NewHash:         &newHash,
			LinesChangedEst: lineCount,
		}, nil
	}
	if *knownHash == newHash {
		return Change{Kind: Unchanged, OldHash: knownHash, NewHash: &newHash}, nil
	}
	return Change{
		Kind:            vaultmodel.DeltaModified,
		OldHash:         knownHash,
		NewHash:         &newHash,
		LinesChangedEst: lineCount / 4,
	}, nil
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := 0
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		n++
	}
	return n
}

// QueueStore is the persistence surface the manager needs; satisfied by
// *store.Store.
type QueueStore interface {
	QueueFileChange(ctx context.Context, entry vaultmodel.IndexDeltaQueue) error
	QueuedEntries(ctx context.Context, project string) ([]vaultmodel.IndexDeltaQueue, error)
	PromoteToCritical(ctx context.Context, id string) error
	MarkDeltaStatus(ctx context.Context, id string, status vaultmodel.DeltaStatus, cause *string) error
	DeleteFileData(ctx context.Context, project, path string) error
}

// Indexer re-derives chunks, embeddings, graph nodes/edges, and symbols for
// a single file, then persists them. Implemented by the ingestion pipeline.
type Indexer interface {
	IndexFile(ctx context.Context, project, path string) error
}

// Manager drives queueing, threshold checks, and commits for one project.
type Manager struct {
	Store   QueueStore
	Indexer Indexer
	Project string
}

// QueueFileChange records a detected change, applying priority (defaulting
// to normal unless the caller escalates it).
func (m *Manager) QueueFileChange(ctx context.Context, path string, c Change, priority vaultmodel.DeltaPriority) error {
	return m.Store.QueueFileChange(ctx, vaultmodel.IndexDeltaQueue{
		ProjectID:       m.Project,
		FilePath:        path,
		Kind:            c.Kind,
		OldHash:         c.OldHash,
		NewHash:         c.NewHash,
		LinesChangedEst: c.LinesChangedEst,
		Priority:        priority,
	})
}

// CheckThresholds returns true iff the queued batch should be committed now:
// 5+ queued files, 1000+ estimated changed lines, or the oldest entry is
// more than 5 minutes old.
func CheckThresholds(entries []vaultmodel.IndexDeltaQueue) bool {
	if len(entries) == 0 {
		return false
	}
	if len(entries) >= thresholdQueuedFiles {
		return true
	}
	lineSum := 0
	oldest := entries[0].QueuedAt
	for _, e := range entries {
		lineSum += e.LinesChangedEst
		if e.QueuedAt.Before(oldest) {
			oldest = e.QueuedAt
		}
	}
	if lineSum >= thresholdLineSum {
		return true
	}
	return time.Since(oldest) > thresholdAge
}

var pathLikePattern = regexp.MustCompile(`(\w+[./_-])+\w+\.\w+`)
var identifierPattern = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]*|[a-z0-9]+(?:_[a-z0-9]+)+)\b`)

// GetFilesMatchingQuery finds pending queue entries relevant to a live
// query: literal path-like token matches, or a file stem matching a
// capitalised/snake_case identifier mentioned in the query.
func GetFilesMatchingQuery(query string, pending []vaultmodel.IndexDeltaQueue) []vaultmodel.IndexDeltaQueue {
	pathTokens := pathLikePattern.FindAllString(query, -1)
	identifiers := identifierPattern.FindAllString(query, -1)

	var matched []vaultmodel.IndexDeltaQueue
	for _, entry := range pending {
		if matchesPathToken(entry.FilePath, pathTokens) || matchesIdentifier(entry.FilePath, identifiers) {
			matched = append(matched, entry)
		}
	}
	return matched
}

func matchesPathToken(path string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(path, tok) {
			return true
		}
	}
	return false
}

func matchesIdentifier(path string, identifiers []string) bool {
	stem := fileStem(path)
	for _, id := range identifiers {
		if strings.EqualFold(stem, id) {
			return true
		}
	}
	return false
}

func fileStem(path string) string {
	base := path
	if idx := strings.LastIndexAny(base, "/\\"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}

// PromoteMatching promotes every entry GetFilesMatchingQuery surfaces for
// query to priority=critical, causing the next Commit to treat them first,
// and returns that matched subset so the caller can decide whether a
// synchronous Commit is warranted at all.
func (m *Manager) PromoteMatching(ctx context.Context, query string) ([]vaultmodel.IndexDeltaQueue, error) {
	entries, err := m.Store.QueuedEntries(ctx, m.Project)
	if err != nil {
		return nil, err
	}
	matched := GetFilesMatchingQuery(query, entries)
	for _, e := range matched {
		if err := m.Store.PromoteToCritical(ctx, e.ID); err != nil {
			return nil, err
		}
	}
	return matched, nil
}

// Commit drains all queued entries for the project, critical-priority
// entries first (the outcome of a just-in-time promotion): for each,
// delete the file's existing chunks/graph/symbols, then re-index,
// recording done or failed status.
func (m *Manager) Commit(ctx context.Context) error {
	entries, err := m.Store.QueuedEntries(ctx, m.Project)
	if err != nil {
		return err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Priority > entries[j].Priority })
	for _, e := range entries {
		if err := m.commitOne(ctx, e); err != nil {
			cause := err.Error()
			_ = m.Store.MarkDeltaStatus(ctx, e.ID, vaultmodel.DeltaFailed, &cause)
			continue
		}
		_ = m.Store.MarkDeltaStatus(ctx, e.ID, vaultmodel.DeltaDone, nil)
	}
	return nil
}

func (m *Manager) commitOne(ctx context.Context, e vaultmodel.IndexDeltaQueue) error {
	if err := m.Store.DeleteFileData(ctx, m.Project, e.FilePath); err != nil {
		return fmt.Errorf("delete file data for %s: %w", e.FilePath, err)
	}
	if e.Kind == vaultmodel.DeltaDeleted {
		return nil
	}
	if err := m.Indexer.IndexFile(ctx, m.Project, e.FilePath); err != nil {
		return fmt.Errorf("index %s: %w", e.FilePath, err)
	}
	return nil
}
