// Package store provides the SQLite persistence adapter for the mirror.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB represents a SQLite database connection holding the mirror.
type DB struct {
	path string
	conn *sql.DB
}

// Item represents a mirrored issue or pull request. Issues and pull requests
// share a structural shape and differ only in Kind.
type Item struct {
	ID            string // "issues/123" or "pulls/45"
	Kind          string // "issue" or "pull"
	Number        int
	Title         string
	Body          string
	State         string // open, closed, merged
	Author        string
	CreatedAt     string
	UpdatedAt     string // revision marker
	RemoteDeleted bool
	CommentsStale bool
}

// Comment represents a mirrored comment on an issue or pull request.
type Comment struct {
	ID            int64
	ItemID        string // parent item, e.g. "issues/123"
	Author        string
	Body          string
	CreatedAt     string
	UpdatedAt     string // revision marker
	RemoteDeleted bool
}

// Collection holds the pagination state for one listing endpoint.
type Collection struct {
	Key             string // "issues", "pulls", "comments/<number>"
	PageToken       string // opaque continuation token, empty when none
	HighWaterMark   string // max revision marker merged so far
	FullyEnumerated bool
	EnumeratedAt    string
}

// StalenessRecord is the per-entity last-synced revision bookkeeping.
type StalenessRecord struct {
	EntityID      string
	Revision      string
	SyncedAt      string
	RefreshNeeded bool
}

// createItemsSQL defines the schema for the items table.
const createItemsSQL = `
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    number INTEGER NOT NULL,
    title TEXT NOT NULL,
    body TEXT,
    state TEXT,
    author TEXT,
    created_at TEXT,
    updated_at TEXT NOT NULL,
    remote_deleted INTEGER DEFAULT 0,
    comments_stale INTEGER DEFAULT 1,
    UNIQUE(kind, number)
);
`

// createCommentsSQL defines the schema for the comments table.
const createCommentsSQL = `
CREATE TABLE IF NOT EXISTS comments (
    id INTEGER PRIMARY KEY,
    item_id TEXT NOT NULL,
    author TEXT,
    body TEXT,
    created_at TEXT,
    updated_at TEXT NOT NULL,
    remote_deleted INTEGER DEFAULT 0
);
`

// createCollectionsSQL defines the schema for per-collection cursor state.
const createCollectionsSQL = `
CREATE TABLE IF NOT EXISTS collections (
    key TEXT PRIMARY KEY,
    page_token TEXT,
    high_water_mark TEXT,
    fully_enumerated INTEGER DEFAULT 0,
    enumerated_at TEXT
);
`

// createStalenessSQL defines the schema for per-entity staleness records.
const createStalenessSQL = `
CREATE TABLE IF NOT EXISTS staleness (
    entity_id TEXT PRIMARY KEY,
    revision TEXT NOT NULL,
    synced_at TEXT NOT NULL,
    refresh_needed INTEGER DEFAULT 0
);
`

// createScopeSQL defines the schema for the single mirrored repository scope.
const createScopeSQL = `
CREATE TABLE IF NOT EXISTS scope (
    repo TEXT PRIMARY KEY,
    last_full_sync TEXT
);
`

// InitDB creates or opens a SQLite database at the given path and initializes the schema.
func InitDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer, so we limit to one connection
	// to prevent "database is locked" errors under concurrent merges.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	for _, stmt := range []string{
		createItemsSQL,
		createCommentsSQL,
		createCollectionsSQL,
		createStalenessSQL,
		createScopeSQL,
	} {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &DB{
		path: path,
		conn: conn,
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Tx groups a batch of mirror writes into a single transaction so one cycle's
// writes for an entity family commit all-or-nothing.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error.
func (db *DB) WithTx(fn func(*Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpsertItem inserts or updates an item in the mirror.
func (t *Tx) UpsertItem(item Item) error {
	query := `
		INSERT INTO items (
			id, kind, number, title, body, state, author,
			created_at, updated_at, remote_deleted, comments_stale
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			state = excluded.state,
			author = excluded.author,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			remote_deleted = excluded.remote_deleted,
			comments_stale = excluded.comments_stale
	`

	_, err := t.tx.Exec(query,
		item.ID,
		item.Kind,
		item.Number,
		item.Title,
		sql.NullString{String: item.Body, Valid: item.Body != ""},
		sql.NullString{String: item.State, Valid: item.State != ""},
		sql.NullString{String: item.Author, Valid: item.Author != ""},
		sql.NullString{String: item.CreatedAt, Valid: item.CreatedAt != ""},
		item.UpdatedAt,
		boolToInt(item.RemoteDeleted),
		boolToInt(item.CommentsStale),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
	}
	return nil
}

// UpsertComment inserts or updates a comment in the mirror.
func (t *Tx) UpsertComment(c Comment) error {
	query := `
		INSERT INTO comments (id, item_id, author, body, created_at, updated_at, remote_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			item_id = excluded.item_id,
			author = excluded.author,
			body = excluded.body,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			remote_deleted = excluded.remote_deleted
	`

	_, err := t.tx.Exec(query,
		c.ID,
		c.ItemID,
		sql.NullString{String: c.Author, Valid: c.Author != ""},
		sql.NullString{String: c.Body, Valid: c.Body != ""},
		sql.NullString{String: c.CreatedAt, Valid: c.CreatedAt != ""},
		c.UpdatedAt,
		boolToInt(c.RemoteDeleted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert comment %d: %w", c.ID, err)
	}
	return nil
}

// TombstoneItem flags an item as remote-deleted, retaining all known data.
func (t *Tx) TombstoneItem(id string) error {
	_, err := t.tx.Exec("UPDATE items SET remote_deleted = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to tombstone item %s: %w", id, err)
	}
	return nil
}

// TombstoneComment flags a comment as remote-deleted, retaining all known data.
func (t *Tx) TombstoneComment(id int64) error {
	_, err := t.tx.Exec("UPDATE comments SET remote_deleted = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to tombstone comment %d: %w", id, err)
	}
	return nil
}

// SetCommentsStale flags or clears the parent item's need for a comment re-listing.
func (t *Tx) SetCommentsStale(itemID string, stale bool) error {
	_, err := t.tx.Exec("UPDATE items SET comments_stale = ? WHERE id = ?", boolToInt(stale), itemID)
	if err != nil {
		return fmt.Errorf("failed to set comments_stale for %s: %w", itemID, err)
	}
	return nil
}

// UpsertCollection writes a collection's full pagination state.
func (t *Tx) UpsertCollection(c Collection) error {
	query := `
		INSERT INTO collections (key, page_token, high_water_mark, fully_enumerated, enumerated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			page_token = excluded.page_token,
			high_water_mark = excluded.high_water_mark,
			fully_enumerated = excluded.fully_enumerated,
			enumerated_at = excluded.enumerated_at
	`

	_, err := t.tx.Exec(query,
		c.Key,
		sql.NullString{String: c.PageToken, Valid: c.PageToken != ""},
		sql.NullString{String: c.HighWaterMark, Valid: c.HighWaterMark != ""},
		boolToInt(c.FullyEnumerated),
		sql.NullString{String: c.EnumeratedAt, Valid: c.EnumeratedAt != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to upsert collection %s: %w", c.Key, err)
	}
	return nil
}

// UpsertStaleness writes a per-entity staleness record.
func (t *Tx) UpsertStaleness(r StalenessRecord) error {
	query := `
		INSERT INTO staleness (entity_id, revision, synced_at, refresh_needed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			revision = excluded.revision,
			synced_at = excluded.synced_at,
			refresh_needed = excluded.refresh_needed
	`

	_, err := t.tx.Exec(query, r.EntityID, r.Revision, r.SyncedAt, boolToInt(r.RefreshNeeded))
	if err != nil {
		return fmt.Errorf("failed to upsert staleness record %s: %w", r.EntityID, err)
	}
	return nil
}

// MarkRefreshNeeded flags an entity for a single-entity refresh next cycle.
func (t *Tx) MarkRefreshNeeded(entityID string) error {
	_, err := t.tx.Exec("UPDATE staleness SET refresh_needed = 1 WHERE entity_id = ?", entityID)
	if err != nil {
		return fmt.Errorf("failed to mark refresh for %s: %w", entityID, err)
	}
	return nil
}

// TouchScope records the repository being mirrored and, when fullSync is true,
// the time of the last completed full enumeration.
func (t *Tx) TouchScope(repo string, fullSync bool, at string) error {
	if fullSync {
		query := `
			INSERT INTO scope (repo, last_full_sync) VALUES (?, ?)
			ON CONFLICT(repo) DO UPDATE SET last_full_sync = excluded.last_full_sync
		`
		if _, err := t.tx.Exec(query, repo, at); err != nil {
			return fmt.Errorf("failed to touch scope: %w", err)
		}
		return nil
	}

	query := `INSERT INTO scope (repo, last_full_sync) VALUES (?, NULL) ON CONFLICT(repo) DO NOTHING`
	if _, err := t.tx.Exec(query, repo); err != nil {
		return fmt.Errorf("failed to touch scope: %w", err)
	}
	return nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement.
type scanner interface {
	Scan(dest ...interface{}) error
}

// GetItem retrieves an item by id. Returns nil when the item is not mirrored.
func (db *DB) GetItem(id string) (*Item, error) {
	query := `
		SELECT id, kind, number, title, body, state, author,
		       created_at, updated_at, remote_deleted, comments_stale
		FROM items
		WHERE id = ?
	`
	return scanItemFrom(db.conn.QueryRow(query, id))
}

// ListItems retrieves all mirrored items of a kind, tombstones included,
// ordered by number.
func (db *DB) ListItems(kind string) ([]Item, error) {
	query := `
		SELECT id, kind, number, title, body, state, author,
		       created_at, updated_at, remote_deleted, comments_stale
		FROM items
		WHERE kind = ?
		ORDER BY number ASC
	`

	rows, err := db.conn.Query(query, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItemFrom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}
	return items, nil
}

// LiveItemIDs returns the ids of all non-tombstoned items of a kind.
func (db *DB) LiveItemIDs(kind string) ([]string, error) {
	rows, err := db.conn.Query("SELECT id FROM items WHERE kind = ? AND remote_deleted = 0", kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query live items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item id rows: %w", err)
	}
	return ids, nil
}

// LiveCommentIDs returns the ids of all non-tombstoned comments of an item.
func (db *DB) LiveCommentIDs(itemID string) ([]int64, error) {
	rows, err := db.conn.Query("SELECT id FROM comments WHERE item_id = ? AND remote_deleted = 0", itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query live comments: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan comment id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment id rows: %w", err)
	}
	return ids, nil
}

// GetItemByNumber retrieves an item by its remote number, whichever kind it
// is. Remote numbers are unique across issues and pull requests.
func (db *DB) GetItemByNumber(number int) (*Item, error) {
	query := `
		SELECT id, kind, number, title, body, state, author,
		       created_at, updated_at, remote_deleted, comments_stale
		FROM items
		WHERE number = ?
		LIMIT 1
	`
	return scanItemFrom(db.conn.QueryRow(query, number))
}

// GetComments retrieves all comments for an item, ordered by created_at.
func (db *DB) GetComments(itemID string) ([]Comment, error) {
	query := `
		SELECT id, item_id, author, body, created_at, updated_at, remote_deleted
		FROM comments
		WHERE item_id = ?
		ORDER BY created_at ASC
	`

	rows, err := db.conn.Query(query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		var author, body, createdAt sql.NullString
		var deleted int

		err := rows.Scan(&c.ID, &c.ItemID, &author, &body, &createdAt, &c.UpdatedAt, &deleted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Author = author.String
		c.Body = body.String
		c.CreatedAt = createdAt.String
		c.RemoteDeleted = deleted == 1
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment rows: %w", err)
	}
	return comments, nil
}

// GetComment retrieves a single comment by id. Returns nil when absent.
func (db *DB) GetComment(id int64) (*Comment, error) {
	query := `
		SELECT id, item_id, author, body, created_at, updated_at, remote_deleted
		FROM comments
		WHERE id = ?
	`

	var c Comment
	var author, body, createdAt sql.NullString
	var deleted int

	err := db.conn.QueryRow(query, id).Scan(&c.ID, &c.ItemID, &author, &body, &createdAt, &c.UpdatedAt, &deleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}
	c.Author = author.String
	c.Body = body.String
	c.CreatedAt = createdAt.String
	c.RemoteDeleted = deleted == 1
	return &c, nil
}

// GetCollection retrieves the pagination state for a collection key.
// Returns nil when the collection has never been listed.
func (db *DB) GetCollection(key string) (*Collection, error) {
	query := `
		SELECT key, page_token, high_water_mark, fully_enumerated, enumerated_at
		FROM collections
		WHERE key = ?
	`
	return scanCollectionFrom(db.conn.QueryRow(query, key))
}

// MidPaginationCollections returns collections with a stored continuation
// token that are not fully enumerated, i.e. listings interrupted mid-way.
func (db *DB) MidPaginationCollections() ([]Collection, error) {
	query := `
		SELECT key, page_token, high_water_mark, fully_enumerated, enumerated_at
		FROM collections
		WHERE page_token IS NOT NULL AND page_token != '' AND fully_enumerated = 0
		ORDER BY key ASC
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query mid-pagination collections: %w", err)
	}
	defer rows.Close()

	var cols []Collection
	for rows.Next() {
		c, err := scanCollectionFrom(rows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection rows: %w", err)
	}
	return cols, nil
}

// ItemsWithStaleComments returns live items whose comment collection needs a
// re-listing, oldest revision first, capped at limit.
func (db *DB) ItemsWithStaleComments(limit int) ([]Item, error) {
	query := `
		SELECT id, kind, number, title, body, state, author,
		       created_at, updated_at, remote_deleted, comments_stale
		FROM items
		WHERE comments_stale = 1 AND remote_deleted = 0
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale-comment items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItemFrom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}
	return items, nil
}

// GetStaleness retrieves the staleness record for an entity.
// Returns nil when no record exists (the entity has never been synced).
func (db *DB) GetStaleness(entityID string) (*StalenessRecord, error) {
	query := `SELECT entity_id, revision, synced_at, refresh_needed FROM staleness WHERE entity_id = ?`

	var r StalenessRecord
	var refresh int
	err := db.conn.QueryRow(query, entityID).Scan(&r.EntityID, &r.Revision, &r.SyncedAt, &refresh)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan staleness record: %w", err)
	}
	r.RefreshNeeded = refresh == 1
	return &r, nil
}

// RefreshNeededEntities returns entity ids flagged for a single-entity
// refresh, capped at limit.
func (db *DB) RefreshNeededEntities(limit int) ([]string, error) {
	query := `SELECT entity_id FROM staleness WHERE refresh_needed = 1 ORDER BY synced_at ASC LIMIT ?`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh-needed entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan entity id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entity id rows: %w", err)
	}
	return ids, nil
}

// Stats summarizes the mirror contents.
type Stats struct {
	Issues     int
	Pulls      int
	Comments   int
	Tombstones int
	StaleItems int
}

// GetStats counts the mirror's rows for reporting.
func (db *DB) GetStats() (*Stats, error) {
	var s Stats

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM items WHERE kind = 'issue'", &s.Issues},
		{"SELECT COUNT(*) FROM items WHERE kind = 'pull'", &s.Pulls},
		{"SELECT COUNT(*) FROM comments", &s.Comments},
		{"SELECT COUNT(*) FROM items WHERE remote_deleted = 1", &s.Tombstones},
		{"SELECT COUNT(*) FROM items WHERE comments_stale = 1 AND remote_deleted = 0", &s.StaleItems},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return &s, nil
}

// MarkAllCommentsStale flags every live item for comment re-listing, used by
// an explicit full resync.
func (db *DB) MarkAllCommentsStale() error {
	_, err := db.conn.Exec("UPDATE items SET comments_stale = 1 WHERE remote_deleted = 0")
	if err != nil {
		return fmt.Errorf("failed to mark comments stale: %w", err)
	}
	return nil
}

// ResetCollection clears a collection's cursor state for an explicit full
// resync. This is the only path that rewinds a cursor.
func (db *DB) ResetCollection(key string) error {
	_, err := db.conn.Exec(
		"UPDATE collections SET page_token = NULL, high_water_mark = NULL, fully_enumerated = 0 WHERE key = ?",
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to reset collection %s: %w", key, err)
	}
	return nil
}

// Scope identifies the mirrored repository and when it last held a complete
// enumeration of both top-level collections.
type Scope struct {
	Repo         string
	LastFullSync string
}

// GetScope retrieves the mirrored repository scope, or nil before any sync.
func (db *DB) GetScope() (*Scope, error) {
	var s Scope
	var lastFull sql.NullString
	err := db.conn.QueryRow("SELECT repo, last_full_sync FROM scope LIMIT 1").Scan(&s.Repo, &lastFull)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scope: %w", err)
	}
	s.LastFullSync = lastFull.String
	return &s, nil
}

// ResetAllCollections clears every collection's cursor state for an explicit
// full resync of the whole scope.
func (db *DB) ResetAllCollections() error {
	_, err := db.conn.Exec(
		"UPDATE collections SET page_token = NULL, high_water_mark = NULL, fully_enumerated = 0",
	)
	if err != nil {
		return fmt.Errorf("failed to reset collections: %w", err)
	}
	return nil
}

func scanItemFrom(s scanner) (*Item, error) {
	var item Item
	var body, state, author, createdAt sql.NullString
	var deleted, commentsStale int

	err := s.Scan(
		&item.ID,
		&item.Kind,
		&item.Number,
		&item.Title,
		&body,
		&state,
		&author,
		&createdAt,
		&item.UpdatedAt,
		&deleted,
		&commentsStale,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	item.Body = body.String
	item.State = state.String
	item.Author = author.String
	item.CreatedAt = createdAt.String
	item.RemoteDeleted = deleted == 1
	item.CommentsStale = commentsStale == 1
	return &item, nil
}

func scanCollectionFrom(s scanner) (*Collection, error) {
	var c Collection
	var token, hwm, enumeratedAt sql.NullString
	var full int

	err := s.Scan(&c.Key, &token, &hwm, &full, &enumeratedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan collection: %w", err)
	}

	c.PageToken = token.String
	c.HighWaterMark = hwm.String
	c.FullyEnumerated = full == 1
	c.EnumeratedAt = enumeratedAt.String
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NowUTC returns the current time formatted the way the mirror stores
// timestamps.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
