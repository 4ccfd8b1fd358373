package store

import (
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustTx(t *testing.T, db *DB, fn func(*Tx) error) {
	t.Helper()
	if err := db.WithTx(fn); err != nil {
		t.Fatalf("WithTx: %v", err)
	}
}

func testItem(number int) Item {
	return Item{
		ID:        ItemID("issues", number),
		Kind:      "issue",
		Number:    number,
		Title:     "a title",
		Body:      "a body",
		State:     "open",
		Author:    "alice",
		CreatedAt: "2024-01-01T10:00:00Z",
		UpdatedAt: "2024-01-01T10:00:00Z",
	}
}

func TestUpsertAndGetItem(t *testing.T) {
	db := newTestDB(t)

	item := testItem(1)
	mustTx(t, db, func(tx *Tx) error { return tx.UpsertItem(item) })

	got, err := db.GetItem("issues/1")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got == nil {
		t.Fatal("GetItem returned nil for stored item")
	}
	if got.Title != item.Title || got.Author != item.Author || got.UpdatedAt != item.UpdatedAt {
		t.Errorf("round trip mismatch: %+v", got)
	}

	// Upsert with the same id replaces the mutable fields.
	item.Title = "renamed"
	item.State = "closed"
	item.UpdatedAt = "2024-02-01T10:00:00Z"
	mustTx(t, db, func(tx *Tx) error { return tx.UpsertItem(item) })

	got, err = db.GetItem("issues/1")
	if err != nil || got == nil {
		t.Fatalf("GetItem after upsert: %v, %v", got, err)
	}
	if got.Title != "renamed" || got.State != "closed" {
		t.Errorf("upsert did not replace fields: %+v", got)
	}

	missing, err := db.GetItem("issues/999")
	if err != nil {
		t.Fatalf("GetItem(missing): %v", err)
	}
	if missing != nil {
		t.Errorf("GetItem(missing) = %+v, want nil", missing)
	}
}

func TestGetItemByNumber(t *testing.T) {
	db := newTestDB(t)

	pull := testItem(7)
	pull.ID = ItemID("pulls", 7)
	pull.Kind = "pull"
	mustTx(t, db, func(tx *Tx) error { return tx.UpsertItem(pull) })

	got, err := db.GetItemByNumber(7)
	if err != nil || got == nil {
		t.Fatalf("GetItemByNumber: %v, %v", got, err)
	}
	if got.ID != "pulls/7" {
		t.Errorf("ID = %q, want pulls/7", got.ID)
	}

	missing, err := db.GetItemByNumber(8)
	if err != nil {
		t.Fatalf("GetItemByNumber(missing): %v", err)
	}
	if missing != nil {
		t.Errorf("GetItemByNumber(missing) = %+v, want nil", missing)
	}
}

func TestTombstoneRetainsData(t *testing.T) {
	db := newTestDB(t)

	mustTx(t, db, func(tx *Tx) error {
		if err := tx.UpsertItem(testItem(1)); err != nil {
			return err
		}
		return tx.UpsertComment(Comment{
			ID:        100,
			ItemID:    "issues/1",
			Author:    "bob",
			Body:      "still here",
			CreatedAt: "2024-01-01T11:00:00Z",
			UpdatedAt: "2024-01-01T11:00:00Z",
		})
	})

	mustTx(t, db, func(tx *Tx) error {
		if err := tx.TombstoneItem("issues/1"); err != nil {
			return err
		}
		return tx.TombstoneComment(100)
	})

	item, err := db.GetItem("issues/1")
	if err != nil || item == nil {
		t.Fatalf("GetItem: %v, %v", item, err)
	}
	if !item.RemoteDeleted {
		t.Error("item not flagged remote-deleted")
	}
	if item.Title != "a title" || item.Body != "a body" {
		t.Errorf("tombstone dropped data: %+v", item)
	}

	c, err := db.GetComment(100)
	if err != nil || c == nil {
		t.Fatalf("GetComment: %v, %v", c, err)
	}
	if !c.RemoteDeleted || c.Body != "still here" {
		t.Errorf("comment tombstone wrong: %+v", c)
	}
}

func TestLiveIDsExcludeTombstones(t *testing.T) {
	db := newTestDB(t)

	mustTx(t, db, func(tx *Tx) error {
		for n := 1; n <= 3; n++ {
			if err := tx.UpsertItem(testItem(n)); err != nil {
				return err
			}
		}
		return tx.TombstoneItem("issues/2")
	})

	ids, err := db.LiveItemIDs("issue")
	if err != nil {
		t.Fatalf("LiveItemIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("LiveItemIDs = %v, want 2 live ids", ids)
	}
	for _, id := range ids {
		if id == "issues/2" {
			t.Error("tombstoned item listed as live")
		}
	}
}

func TestCollectionLifecycle(t *testing.T) {
	db := newTestDB(t)

	col, err := db.GetCollection("issues")
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if col != nil {
		t.Fatalf("GetCollection before any listing = %+v, want nil", col)
	}

	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertCollection(Collection{
			Key:           "issues",
			PageToken:     "https://example.test/page2",
			HighWaterMark: "2024-01-05T10:00:00Z",
		})
	})

	mid, err := db.MidPaginationCollections()
	if err != nil {
		t.Fatalf("MidPaginationCollections: %v", err)
	}
	if len(mid) != 1 || mid[0].Key != "issues" {
		t.Fatalf("MidPaginationCollections = %+v, want the interrupted issues listing", mid)
	}

	// Completing the enumeration clears the token; the collection is no
	// longer mid-pagination.
	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertCollection(Collection{
			Key:             "issues",
			HighWaterMark:   "2024-01-05T10:00:00Z",
			FullyEnumerated: true,
			EnumeratedAt:    "2024-01-06T00:00:00Z",
		})
	})

	mid, err = db.MidPaginationCollections()
	if err != nil {
		t.Fatalf("MidPaginationCollections: %v", err)
	}
	if len(mid) != 0 {
		t.Errorf("completed listing still mid-pagination: %+v", mid)
	}

	if err := db.ResetCollection("issues"); err != nil {
		t.Fatalf("ResetCollection: %v", err)
	}
	col, err = db.GetCollection("issues")
	if err != nil || col == nil {
		t.Fatalf("GetCollection after reset: %v, %v", col, err)
	}
	if col.PageToken != "" || col.HighWaterMark != "" || col.FullyEnumerated {
		t.Errorf("reset left cursor state behind: %+v", col)
	}
}

func TestResetAllCollections(t *testing.T) {
	db := newTestDB(t)

	mustTx(t, db, func(tx *Tx) error {
		for _, key := range []string{"issues", "pulls", "comments/3"} {
			err := tx.UpsertCollection(Collection{
				Key:             key,
				HighWaterMark:   "2024-01-05T10:00:00Z",
				FullyEnumerated: true,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err := db.ResetAllCollections(); err != nil {
		t.Fatalf("ResetAllCollections: %v", err)
	}

	for _, key := range []string{"issues", "pulls", "comments/3"} {
		col, err := db.GetCollection(key)
		if err != nil || col == nil {
			t.Fatalf("GetCollection(%s): %v, %v", key, col, err)
		}
		if col.FullyEnumerated || col.HighWaterMark != "" {
			t.Errorf("collection %s not reset: %+v", key, col)
		}
	}
}

func TestStalenessRecords(t *testing.T) {
	db := newTestDB(t)

	rec, err := db.GetStaleness("issues/1")
	if err != nil {
		t.Fatalf("GetStaleness: %v", err)
	}
	if rec != nil {
		t.Fatalf("GetStaleness before any sync = %+v, want nil", rec)
	}

	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertStaleness(StalenessRecord{
			EntityID: "issues/1",
			Revision: "2024-01-01T10:00:00Z",
			SyncedAt: "2024-01-02T00:00:00Z",
		})
	})

	mustTx(t, db, func(tx *Tx) error { return tx.MarkRefreshNeeded("issues/1") })

	ids, err := db.RefreshNeededEntities(10)
	if err != nil {
		t.Fatalf("RefreshNeededEntities: %v", err)
	}
	if len(ids) != 1 || ids[0] != "issues/1" {
		t.Errorf("RefreshNeededEntities = %v, want [issues/1]", ids)
	}

	// Re-recording the sync clears the flag.
	mustTx(t, db, func(tx *Tx) error {
		return tx.UpsertStaleness(StalenessRecord{
			EntityID: "issues/1",
			Revision: "2024-01-01T10:00:00Z",
			SyncedAt: "2024-01-03T00:00:00Z",
		})
	})
	ids, err = db.RefreshNeededEntities(10)
	if err != nil {
		t.Fatalf("RefreshNeededEntities: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("refresh flag survived a re-record: %v", ids)
	}
}

func TestItemsWithStaleComments(t *testing.T) {
	db := newTestDB(t)

	mustTx(t, db, func(tx *Tx) error {
		for n := 1; n <= 4; n++ {
			item := testItem(n)
			item.CommentsStale = n != 1
			if err := tx.UpsertItem(item); err != nil {
				return err
			}
		}
		// A tombstoned item never gets its comments re-listed.
		return tx.TombstoneItem("issues/4")
	})

	items, err := db.ItemsWithStaleComments(10)
	if err != nil {
		t.Fatalf("ItemsWithStaleComments: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ItemsWithStaleComments = %d items, want 2", len(items))
	}

	limited, err := db.ItemsWithStaleComments(1)
	if err != nil {
		t.Fatalf("ItemsWithStaleComments: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit not honored: got %d items", len(limited))
	}
}

func TestMarkAllCommentsStale(t *testing.T) {
	db := newTestDB(t)

	mustTx(t, db, func(tx *Tx) error {
		for n := 1; n <= 2; n++ {
			if err := tx.UpsertItem(testItem(n)); err != nil {
				return err
			}
		}
		return tx.TombstoneItem("issues/2")
	})

	if err := db.MarkAllCommentsStale(); err != nil {
		t.Fatalf("MarkAllCommentsStale: %v", err)
	}

	items, err := db.ItemsWithStaleComments(10)
	if err != nil {
		t.Fatalf("ItemsWithStaleComments: %v", err)
	}
	if len(items) != 1 || items[0].ID != "issues/1" {
		t.Errorf("stale flag scope wrong: %+v", items)
	}
}

func TestStatsAndScope(t *testing.T) {
	db := newTestDB(t)

	mustTx(t, db, func(tx *Tx) error {
		if err := tx.UpsertItem(testItem(1)); err != nil {
			return err
		}
		pull := testItem(2)
		pull.ID = ItemID("pulls", 2)
		pull.Kind = "pull"
		if err := tx.UpsertItem(pull); err != nil {
			return err
		}
		if err := tx.TombstoneItem("pulls/2"); err != nil {
			return err
		}
		if err := tx.UpsertComment(Comment{ID: 100, ItemID: "issues/1", UpdatedAt: "2024-01-01T11:00:00Z"}); err != nil {
			return err
		}
		return tx.TouchScope("octo/demo", true, "2024-01-06T00:00:00Z")
	})

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Issues != 1 || stats.Pulls != 1 || stats.Comments != 1 || stats.Tombstones != 1 {
		t.Errorf("stats wrong: %+v", stats)
	}

	scope, err := db.GetScope()
	if err != nil || scope == nil {
		t.Fatalf("GetScope: %v, %v", scope, err)
	}
	if scope.Repo != "octo/demo" || scope.LastFullSync != "2024-01-06T00:00:00Z" {
		t.Errorf("scope wrong: %+v", scope)
	}
}
