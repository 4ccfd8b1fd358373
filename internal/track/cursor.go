// Package track provides the per-collection cursor and per-entity staleness
// bookkeeping that drives incremental sync.
package track

import (
	"fmt"

	"github.com/JohanCodinha/ghmirror/internal/store"
)

// RegressionError reports an attempt to advance a cursor to a high-water mark
// earlier than the one already stored. Cursors only move forward; the only
// legal rewind is an explicit Reset.
type RegressionError struct {
	Collection string
	Stored     string
	Proposed   string
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("cursor regression on %s: stored high-water mark %s, proposed %s",
		e.Collection, e.Stored, e.Proposed)
}

// CursorManager encodes and decodes pagination state for collection
// endpoints, allowing a fetch to resume exactly where the previous one
// stopped.
type CursorManager struct {
	db *store.DB
}

// NewCursorManager creates a cursor manager over the given store.
func NewCursorManager(db *store.DB) *CursorManager {
	return &CursorManager{db: db}
}

// NextPageToken returns the stored continuation token for a collection, or
// the empty string when the collection has no pending continuation.
func (m *CursorManager) NextPageToken(key string) (string, error) {
	col, err := m.db.GetCollection(key)
	if err != nil {
		return "", err
	}
	if col == nil {
		return "", nil
	}
	return col.PageToken, nil
}

// HighWaterMark returns the stored high-water mark for a collection, or the
// empty string when the collection has never been listed.
func (m *CursorManager) HighWaterMark(key string) (string, error) {
	col, err := m.db.GetCollection(key)
	if err != nil {
		return "", err
	}
	if col == nil {
		return "", nil
	}
	return col.HighWaterMark, nil
}

// Advance durably stores a new continuation token and high-water mark for a
// collection after a successful page merge. A high-water mark earlier than
// the stored one fails with RegressionError.
func (m *CursorManager) Advance(key, newToken, highWaterMark string) error {
	col, err := m.db.GetCollection(key)
	if err != nil {
		return err
	}

	next := store.Collection{Key: key, PageToken: newToken, HighWaterMark: highWaterMark}
	if col != nil {
		next.FullyEnumerated = col.FullyEnumerated
		next.EnumeratedAt = col.EnumeratedAt

		if col.HighWaterMark != "" && highWaterMark != "" && highWaterMark < col.HighWaterMark {
			return &RegressionError{
				Collection: key,
				Stored:     col.HighWaterMark,
				Proposed:   highWaterMark,
			}
		}
		if highWaterMark == "" {
			next.HighWaterMark = col.HighWaterMark
		}
	}

	return m.db.WithTx(func(tx *store.Tx) error {
		return tx.UpsertCollection(next)
	})
}

// Reset clears a collection's cursor state for an explicit full resync.
func (m *CursorManager) Reset(key string) error {
	return m.db.ResetCollection(key)
}
