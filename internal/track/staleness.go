package track

import (
	"github.com/JohanCodinha/ghmirror/internal/store"
)

// StalenessIndex tracks, per entity, the last remote revision marker that was
// merged into the mirror. Staleness is purely revision-based: an entity is
// never considered fresh or stale from elapsed time alone.
type StalenessIndex struct {
	db *store.DB
}

// NewStalenessIndex creates a staleness index over the given store.
func NewStalenessIndex(db *store.DB) *StalenessIndex {
	return &StalenessIndex{db: db}
}

// IsStale reports whether an entity needs fetching given the revision marker
// observed remotely. True when no record exists or the stored marker differs.
func (s *StalenessIndex) IsStale(entityID, observedRevision string) (bool, error) {
	rec, err := s.db.GetStaleness(entityID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return true, nil
	}
	return rec.Revision != observedRevision, nil
}

// Record durably stores that entityID was synced at the given revision,
// clearing any pending refresh flag.
func (s *StalenessIndex) Record(entityID, revision string) error {
	return s.db.WithTx(func(tx *store.Tx) error {
		return tx.UpsertStaleness(store.StalenessRecord{
			EntityID: entityID,
			Revision: revision,
			SyncedAt: store.NowUTC(),
		})
	})
}

// MarkRefreshNeeded flags an entity so the planner schedules a single-entity
// refresh for it next cycle.
func (s *StalenessIndex) MarkRefreshNeeded(entityID string) error {
	return s.db.WithTx(func(tx *store.Tx) error {
		return tx.MarkRefreshNeeded(entityID)
	})
}

// FullyEnumerated reports whether the collection has been paginated to
// completion, which is what licenses deletion inference for its members.
func (s *StalenessIndex) FullyEnumerated(key string) (bool, error) {
	col, err := s.db.GetCollection(key)
	if err != nil {
		return false, err
	}
	if col == nil {
		return false, nil
	}
	return col.FullyEnumerated, nil
}

// MarkFullyEnumerated records that the collection's listing reached its last
// page, clearing the continuation token.
func (s *StalenessIndex) MarkFullyEnumerated(key string) error {
	col, err := s.db.GetCollection(key)
	if err != nil {
		return err
	}

	next := store.Collection{
		Key:             key,
		FullyEnumerated: true,
		EnumeratedAt:    store.NowUTC(),
	}
	if col != nil {
		next.HighWaterMark = col.HighWaterMark
	}

	return s.db.WithTx(func(tx *store.Tx) error {
		return tx.UpsertCollection(next)
	})
}
