package merge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JohanCodinha/ghmirror/internal/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.InitDB(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func issue(number int, revision string) store.Item {
	return store.Item{
		ID:        store.ItemID("issues", number),
		Kind:      "issue",
		Number:    number,
		Title:     "title at " + revision,
		State:     "open",
		Author:    "alice",
		UpdatedAt: revision,
	}
}

func comment(id int64, revision string) store.Comment {
	return store.Comment{
		ID:        id,
		Author:    "bob",
		Body:      "body at " + revision,
		UpdatedAt: revision,
	}
}

func TestMergeItemsInsertUpdateUnchanged(t *testing.T) {
	db := newTestDB(t)
	e := New(db)

	rep, err := e.MergeItems("issues", []store.Item{issue(1, "2024-01-01T10:00:00Z")})
	if err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if rep.Inserted != 1 {
		t.Errorf("first merge: %s, want one insert", rep)
	}

	got, err := db.GetItem("issues/1")
	if err != nil || got == nil {
		t.Fatalf("GetItem: %v, %v", got, err)
	}
	if !got.CommentsStale {
		t.Error("insert did not flag comments stale")
	}

	// Same revision again: no change.
	rep, err = e.MergeItems("issues", []store.Item{issue(1, "2024-01-01T10:00:00Z")})
	if err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if rep.Unchanged != 1 || !rep.Empty() {
		t.Errorf("re-merge: %s, want unchanged only", rep)
	}

	// Newer revision: update.
	rep, err = e.MergeItems("issues", []store.Item{issue(1, "2024-02-01T10:00:00Z")})
	if err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if rep.Updated != 1 {
		t.Errorf("newer merge: %s, want one update", rep)
	}
	got, err = db.GetItem("issues/1")
	if err != nil || got == nil {
		t.Fatalf("GetItem: %v, %v", got, err)
	}
	if got.UpdatedAt != "2024-02-01T10:00:00Z" {
		t.Errorf("stored revision = %q", got.UpdatedAt)
	}
}

func TestMergeItemsConflictIsDeterministic(t *testing.T) {
	older := issue(1, "2024-01-01T10:00:00Z")
	newer := issue(1, "2024-02-01T10:00:00Z")

	// Apply the two revisions in both orders; the newer one must win both
	// times, revision marker deciding, never arrival order.
	orders := [][]store.Item{
		{older, newer},
		{newer, older},
	}
	for _, order := range orders {
		db := newTestDB(t)
		e := New(db)

		for _, it := range order {
			if _, err := e.MergeItems("issues", []store.Item{it}); err != nil {
				t.Fatalf("MergeItems: %v", err)
			}
		}

		got, err := db.GetItem("issues/1")
		if err != nil || got == nil {
			t.Fatalf("GetItem: %v, %v", got, err)
		}
		if got.UpdatedAt != newer.UpdatedAt {
			t.Errorf("order %v: stored revision = %q, want the newer", order, got.UpdatedAt)
		}
	}
}

func TestMergeItemsConflictFlagsRefresh(t *testing.T) {
	db := newTestDB(t)
	e := New(db)

	if _, err := e.MergeItems("issues", []store.Item{issue(1, "2024-02-01T10:00:00Z")}); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}

	rep, err := e.MergeItems("issues", []store.Item{issue(1, "2024-01-01T10:00:00Z")})
	if err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if rep.Conflicts != 1 {
		t.Fatalf("stale merge: %s, want one conflict", rep)
	}

	ids, err := db.RefreshNeededEntities(10)
	if err != nil {
		t.Fatalf("RefreshNeededEntities: %v", err)
	}
	if len(ids) != 1 || ids[0] != "issues/1" {
		t.Errorf("conflict did not flag a refresh: %v", ids)
	}
}

func TestMergeItemsRevivesTombstone(t *testing.T) {
	db := newTestDB(t)
	e := New(db)

	if _, err := e.MergeItems("issues", []store.Item{issue(1, "2024-01-01T10:00:00Z")}); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if _, err := e.TombstoneEntity("issues/1"); err != nil {
		t.Fatalf("TombstoneEntity: %v", err)
	}

	// Re-observed at a newer revision: explicit revival.
	rep, err := e.MergeItems("issues", []store.Item{issue(1, "2024-02-01T10:00:00Z")})
	if err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if rep.Updated != 1 {
		t.Errorf("revival merge: %s", rep)
	}

	got, err := db.GetItem("issues/1")
	if err != nil || got == nil {
		t.Fatalf("GetItem: %v, %v", got, err)
	}
	if got.RemoteDeleted {
		t.Error("re-observed entity still tombstoned")
	}
}

func TestMergeCommentsRequiresParent(t *testing.T) {
	db := newTestDB(t)
	e := New(db)

	_, err := e.MergeComments("issues/9", []store.Comment{comment(100, "2024-01-01T11:00:00Z")})
	if err == nil {
		t.Fatal("MergeComments accepted comments for an unknown parent")
	}
}

func TestMergeCommentsLifecycle(t *testing.T) {
	db := newTestDB(t)
	e := New(db)

	if _, err := e.MergeItems("issues", []store.Item{issue(1, "2024-01-01T10:00:00Z")}); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}

	rep, err := e.MergeComments("issues/1", []store.Comment{
		comment(100, "2024-01-01T11:00:00Z"),
		comment(101, "2024-01-01T12:00:00Z"),
	})
	if err != nil {
		t.Fatalf("MergeComments: %v", err)
	}
	if rep.Inserted != 2 {
		t.Errorf("comment merge: %s, want two inserts", rep)
	}

	// A stale comment revision loses and flags a refresh.
	rep, err = e.MergeComments("issues/1", []store.Comment{comment(100, "2024-01-01T10:30:00Z")})
	if err != nil {
		t.Fatalf("MergeComments: %v", err)
	}
	if rep.Conflicts != 1 {
		t.Errorf("stale comment merge: %s", rep)
	}
	c, err := db.GetComment(100)
	if err != nil || c == nil {
		t.Fatalf("GetComment: %v, %v", c, err)
	}
	if c.UpdatedAt != "2024-01-01T11:00:00Z" {
		t.Errorf("stale comment overwrote newer: %q", c.UpdatedAt)
	}

	if err := e.ClearCommentsStale("issues/1"); err != nil {
		t.Fatalf("ClearCommentsStale: %v", err)
	}
	items, err := db.ItemsWithStaleComments(10)
	if err != nil {
		t.Fatalf("ItemsWithStaleComments: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("comments still flagged stale: %+v", items)
	}
}

func TestTombstoneAbsentItems(t *testing.T) {
	db := newTestDB(t)
	e := New(db)

	batch := []store.Item{
		issue(1, "2024-01-01T10:00:00Z"),
		issue(2, "2024-01-02T10:00:00Z"),
		issue(3, "2024-01-03T10:00:00Z"),
	}
	if _, err := e.MergeItems("issues", batch); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}

	seen := map[string]bool{"issues/1": true, "issues/3": true}
	rep, err := e.TombstoneAbsentItems("issue", seen)
	if err != nil {
		t.Fatalf("TombstoneAbsentItems: %v", err)
	}
	if rep.Tombstoned != 1 {
		t.Errorf("tombstoned = %d, want 1", rep.Tombstoned)
	}

	got, err := db.GetItem("issues/2")
	if err != nil || got == nil {
		t.Fatalf("GetItem: %v, %v", got, err)
	}
	if !got.RemoteDeleted {
		t.Error("absent item not tombstoned")
	}
	for _, id := range []string{"issues/1", "issues/3"} {
		it, err := db.GetItem(id)
		if err != nil || it == nil {
			t.Fatalf("GetItem(%s): %v, %v", id, it, err)
		}
		if it.RemoteDeleted {
			t.Errorf("seen item %s was tombstoned", id)
		}
	}
}

func TestTombstoneAbsentComments(t *testing.T) {
	db := newTestDB(t)
	e := New(db)

	if _, err := e.MergeItems("issues", []store.Item{issue(1, "2024-01-01T10:00:00Z")}); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if _, err := e.MergeComments("issues/1", []store.Comment{
		comment(100, "2024-01-01T11:00:00Z"),
		comment(101, "2024-01-01T12:00:00Z"),
	}); err != nil {
		t.Fatalf("MergeComments: %v", err)
	}

	rep, err := e.TombstoneAbsentComments("issues/1", map[int64]bool{101: true})
	if err != nil {
		t.Fatalf("TombstoneAbsentComments: %v", err)
	}
	if rep.Tombstoned != 1 {
		t.Errorf("tombstoned = %d, want 1", rep.Tombstoned)
	}
	c, err := db.GetComment(100)
	if err != nil || c == nil {
		t.Fatalf("GetComment: %v, %v", c, err)
	}
	if !c.RemoteDeleted {
		t.Error("absent comment not tombstoned")
	}
}

func TestConflictJournalWritesDiscardedPayload(t *testing.T) {
	db := newTestDB(t)
	e := New(db)

	dir := filepath.Join(t.TempDir(), "conflicts")
	j, err := NewJournal(dir)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	e.SetJournal(j)

	if _, err := e.MergeItems("issues", []store.Item{issue(1, "2024-02-01T10:00:00Z")}); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if _, err := e.MergeItems("issues", []store.Item{issue(1, "2024-01-01T10:00:00Z")}); err != nil {
		t.Fatalf("MergeItems: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Error("journal entry is empty")
	}
}
