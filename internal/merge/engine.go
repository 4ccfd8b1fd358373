// Package merge applies fetched entities to the mirror without losing
// already-known facts.
package merge

import (
	"fmt"

	"github.com/JohanCodinha/ghmirror/internal/logger"
	"github.com/JohanCodinha/ghmirror/internal/store"
)

// Report counts what one merge changed in the mirror.
type Report struct {
	Inserted   int
	Updated    int
	Unchanged  int
	Tombstoned int
	Conflicts  int
}

// Add accumulates another report into this one.
func (r *Report) Add(other Report) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.Tombstoned += other.Tombstoned
	r.Conflicts += other.Conflicts
}

// Empty reports whether the merge changed nothing: entities merely
// re-observed at their known revision do not count as changes.
func (r Report) Empty() bool {
	return r.Inserted == 0 && r.Updated == 0 && r.Tombstoned == 0 && r.Conflicts == 0
}

func (r Report) String() string {
	return fmt.Sprintf("inserted=%d updated=%d unchanged=%d tombstoned=%d conflicts=%d",
		r.Inserted, r.Updated, r.Unchanged, r.Tombstoned, r.Conflicts)
}

// Engine merges fetched batches into the mirror. Revision markers are the
// sole source of truth for which version is newer; wall clocks never decide
// a conflict.
type Engine struct {
	db      *store.DB
	journal *Journal // nil disables conflict journaling
}

// New creates a merge engine over the given store.
func New(db *store.DB) *Engine {
	return &Engine{db: db}
}

// SetJournal enables writing discarded conflicting payloads to a journal
// directory for later inspection.
func (e *Engine) SetJournal(j *Journal) {
	e.journal = j
}

// MergeItems applies one fetched page of items for a top-level collection.
// All writes for the page commit in a single transaction.
func (e *Engine) MergeItems(collection string, fetched []store.Item) (Report, error) {
	var report Report
	if len(fetched) == 0 {
		return report, nil
	}

	type planned struct {
		item     store.Item
		conflict bool
	}
	var writes []planned

	// Reads happen before the write transaction opens; merges for one
	// entity family are serialized by the orchestrator, so this is not racy.
	for _, item := range fetched {
		existing, err := e.db.GetItem(item.ID)
		if err != nil {
			return report, err
		}

		switch {
		case existing == nil:
			item.CommentsStale = true
			writes = append(writes, planned{item: item})
			report.Inserted++
		case item.UpdatedAt > existing.UpdatedAt:
			// Newer revision: update in place. The parent changed, so its
			// comment collection may have too. A tombstoned entity observed
			// again at a newer revision is explicitly revived.
			item.CommentsStale = true
			writes = append(writes, planned{item: item})
			report.Updated++
		case item.UpdatedAt == existing.UpdatedAt:
			if existing.RemoteDeleted {
				// Re-appeared at the known revision: revive, keep comment state.
				item.CommentsStale = existing.CommentsStale
				writes = append(writes, planned{item: item})
				report.Updated++
			} else {
				report.Unchanged++
			}
		default:
			// The fetched revision is older than the stored one: an
			// overlapping fetch raced us. Last-writer-by-revision wins, so
			// the stale payload is discarded and the entity flagged for an
			// authoritative refresh.
			writes = append(writes, planned{item: item, conflict: true})
			report.Conflicts++
			e.journalConflict(item)
		}
	}

	err := e.db.WithTx(func(tx *store.Tx) error {
		for _, w := range writes {
			if w.conflict {
				if err := tx.MarkRefreshNeeded(w.item.ID); err != nil {
					return err
				}
				continue
			}
			if err := tx.UpsertItem(w.item); err != nil {
				return err
			}
			if err := tx.UpsertStaleness(store.StalenessRecord{
				EntityID: w.item.ID,
				Revision: w.item.UpdatedAt,
				SyncedAt: store.NowUTC(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to merge %s page: %w", collection, err)
	}
	return report, nil
}

// MergeComments applies one fetched page of comments belonging to parentID.
// The parent must already exist in the mirror, tombstoned or not; comments
// are never merged before their parent.
func (e *Engine) MergeComments(parentID string, fetched []store.Comment) (Report, error) {
	var report Report
	if len(fetched) == 0 {
		return report, nil
	}

	parent, err := e.db.GetItem(parentID)
	if err != nil {
		return report, err
	}
	if parent == nil {
		return report, fmt.Errorf("cannot merge comments: parent %s not in mirror", parentID)
	}

	type planned struct {
		comment  store.Comment
		conflict bool
	}
	var writes []planned

	for _, c := range fetched {
		c.ItemID = parentID
		existing, err := e.db.GetComment(c.ID)
		if err != nil {
			return report, err
		}

		switch {
		case existing == nil:
			writes = append(writes, planned{comment: c})
			report.Inserted++
		case c.UpdatedAt > existing.UpdatedAt:
			writes = append(writes, planned{comment: c})
			report.Updated++
		case c.UpdatedAt == existing.UpdatedAt:
			if existing.RemoteDeleted {
				writes = append(writes, planned{comment: c})
				report.Updated++
			} else {
				report.Unchanged++
			}
		default:
			writes = append(writes, planned{comment: c, conflict: true})
			report.Conflicts++
		}
	}

	err = e.db.WithTx(func(tx *store.Tx) error {
		for _, w := range writes {
			entityID := store.CommentEntityID(w.comment.ID)
			if w.conflict {
				if err := tx.MarkRefreshNeeded(entityID); err != nil {
					return err
				}
				continue
			}
			if err := tx.UpsertComment(w.comment); err != nil {
				return err
			}
			if err := tx.UpsertStaleness(store.StalenessRecord{
				EntityID: entityID,
				Revision: w.comment.UpdatedAt,
				SyncedAt: store.NowUTC(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to merge comments for %s: %w", parentID, err)
	}
	return report, nil
}

// ClearCommentsStale records that parentID's comment collection has been
// listed to completion, so the planner stops scheduling it.
func (e *Engine) ClearCommentsStale(parentID string) error {
	return e.db.WithTx(func(tx *store.Tx) error {
		return tx.SetCommentsStale(parentID, false)
	})
}

// TombstoneAbsentItems tombstones live items of the given kind that do not
// appear in seen. Only call this after a collection was fully enumerated
// within a single cycle; absence from a partial page is never evidence of
// deletion.
func (e *Engine) TombstoneAbsentItems(kind string, seen map[string]bool) (Report, error) {
	var report Report

	live, err := e.db.LiveItemIDs(kind)
	if err != nil {
		return report, err
	}

	var gone []string
	for _, id := range live {
		if !seen[id] {
			gone = append(gone, id)
		}
	}
	if len(gone) == 0 {
		return report, nil
	}

	err = e.db.WithTx(func(tx *store.Tx) error {
		for _, id := range gone {
			if err := tx.TombstoneItem(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to tombstone absent items: %w", err)
	}

	report.Tombstoned = len(gone)
	logger.Info("merge: tombstoned %d %s items absent from full enumeration", len(gone), kind)
	return report, nil
}

// TombstoneAbsentComments tombstones live comments of parentID that do not
// appear in seen, under the same full-enumeration rule as items.
func (e *Engine) TombstoneAbsentComments(parentID string, seen map[int64]bool) (Report, error) {
	var report Report

	live, err := e.db.LiveCommentIDs(parentID)
	if err != nil {
		return report, err
	}

	var gone []int64
	for _, id := range live {
		if !seen[id] {
			gone = append(gone, id)
		}
	}
	if len(gone) == 0 {
		return report, nil
	}

	err = e.db.WithTx(func(tx *store.Tx) error {
		for _, id := range gone {
			if err := tx.TombstoneComment(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to tombstone absent comments: %w", err)
	}

	report.Tombstoned = len(gone)
	return report, nil
}

// TombstoneEntity tombstones a single entity the API explicitly reported
// gone. All previously-known data is retained.
func (e *Engine) TombstoneEntity(entityID string) (Report, error) {
	var report Report

	collection, number, err := store.SplitEntityID(entityID)
	if err != nil {
		return report, err
	}

	if collection == "comments" {
		existing, err := e.db.GetComment(number)
		if err != nil {
			return report, err
		}
		if existing == nil || existing.RemoteDeleted {
			return report, nil
		}
		err = e.db.WithTx(func(tx *store.Tx) error {
			return tx.TombstoneComment(number)
		})
		if err != nil {
			return report, err
		}
		report.Tombstoned = 1
		return report, nil
	}

	existing, err := e.db.GetItem(entityID)
	if err != nil {
		return report, err
	}
	if existing == nil || existing.RemoteDeleted {
		return report, nil
	}
	err = e.db.WithTx(func(tx *store.Tx) error {
		return tx.TombstoneItem(entityID)
	})
	if err != nil {
		return report, err
	}
	report.Tombstoned = 1
	return report, nil
}

// journalConflict records a discarded stale payload; failures only warn.
func (e *Engine) journalConflict(item store.Item) {
	if e.journal == nil {
		return
	}
	if err := e.journal.WriteItem(item); err != nil {
		logger.Warn("merge: failed to journal conflict for %s: %v", item.ID, err)
	}
}
