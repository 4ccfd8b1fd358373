// Package plan decides what to fetch each sync cycle, in priority order,
// under the current call budget.
package plan

import (
	"fmt"
	"strings"

	"github.com/JohanCodinha/ghmirror/internal/store"
)

// OpKind discriminates the fetch operation variants.
type OpKind int

const (
	// OpListPage fetches one page of a collection listing and continues
	// the pagination from there.
	OpListPage OpKind = iota
	// OpRefreshEntity fetches a single entity by id.
	OpRefreshEntity
)

// FetchOp is one unit of remote work for the orchestrator.
type FetchOp struct {
	Kind OpKind

	// CollectionKey identifies the listing for OpListPage:
	// "issues", "pulls", or "comments/<number>".
	CollectionKey string
	// PageToken resumes an interrupted pagination; empty starts a new
	// listing filtered by Since.
	PageToken string
	// Since restricts a new listing to entities whose revision marker is at
	// or past this value. Empty means a full enumeration from the start.
	Since string

	// EntityID identifies the entity for OpRefreshEntity:
	// "issues/<number>", "pulls/<number>", or "comments/<id>".
	EntityID string
}

func (op FetchOp) String() string {
	if op.Kind == OpRefreshEntity {
		return fmt.Sprintf("refresh %s", op.EntityID)
	}
	if op.PageToken != "" {
		return fmt.Sprintf("list %s (resume)", op.CollectionKey)
	}
	return fmt.Sprintf("list %s since %q", op.CollectionKey, op.Since)
}

// TopLevelCollections are the two root listings of the repository scope.
var TopLevelCollections = []string{"issues", "pulls"}

// Planner builds the ordered work list for one cycle from the staleness and
// cursor state in the store.
type Planner struct {
	db *store.DB

	// maxCommentBackfill caps how many stale comment collections are
	// scheduled per cycle so top-level discovery is never starved.
	maxCommentBackfill int
	// maxRefresh caps single-entity refreshes per cycle.
	maxRefresh int
}

// New creates a planner over the given store.
func New(db *store.DB) *Planner {
	return &Planner{
		db:                 db,
		maxCommentBackfill: 50,
		maxRefresh:         20,
	}
}

// SetLimits overrides the per-cycle caps for comment backfill and entity
// refresh scheduling.
func (p *Planner) SetLimits(commentBackfill, refresh int) {
	if commentBackfill > 0 {
		p.maxCommentBackfill = commentBackfill
	}
	if refresh > 0 {
		p.maxRefresh = refresh
	}
}

// Plan produces the cycle's ordered fetch operations, truncated so the
// operation count never exceeds budgetHint. Priority order:
//
//  1. resume interrupted top-level paginations
//  2. start or probe top-level listings (since the high-water mark once
//     fully enumerated)
//  3. resume interrupted comment paginations
//  4. list comment collections whose parent item changed
//  5. refresh individual entities flagged stale
//
// A zero or negative budget yields an empty plan; that is a normal outcome,
// not an error.
func (p *Planner) Plan(budgetHint int) ([]FetchOp, error) {
	if budgetHint <= 0 {
		return nil, nil
	}

	var ops []FetchOp

	midPagination, err := p.db.MidPaginationCollections()
	if err != nil {
		return nil, fmt.Errorf("failed to load mid-pagination collections: %w", err)
	}

	resumed := make(map[string]bool, len(midPagination))
	for _, col := range midPagination {
		resumed[col.Key] = true
	}

	// 1. Interrupted top-level paginations come first: finishing an
	// enumeration bounds the time before unseen entities are discovered.
	for _, col := range midPagination {
		if isTopLevel(col.Key) {
			ops = append(ops, FetchOp{
				Kind:          OpListPage,
				CollectionKey: col.Key,
				PageToken:     col.PageToken,
			})
		}
	}

	// 2. Top-level listings not currently mid-pagination: initial
	// enumeration when never completed, otherwise an update probe from the
	// high-water mark.
	for _, key := range TopLevelCollections {
		if resumed[key] {
			continue
		}
		col, err := p.db.GetCollection(key)
		if err != nil {
			return nil, fmt.Errorf("failed to load collection %s: %w", key, err)
		}

		op := FetchOp{Kind: OpListPage, CollectionKey: key}
		if col != nil && col.FullyEnumerated {
			op.Since = col.HighWaterMark
		}
		ops = append(ops, op)
	}

	// 3. Interrupted comment paginations.
	for _, col := range midPagination {
		if !isTopLevel(col.Key) {
			ops = append(ops, FetchOp{
				Kind:          OpListPage,
				CollectionKey: col.Key,
				PageToken:     col.PageToken,
			})
		}
	}

	// 4. Comment collections of items whose revision changed since the
	// comments were last listed.
	staleItems, err := p.db.ItemsWithStaleComments(p.maxCommentBackfill)
	if err != nil {
		return nil, fmt.Errorf("failed to load stale-comment items: %w", err)
	}
	for _, item := range staleItems {
		key := commentsKey(item.Number)
		if resumed[key] {
			continue
		}
		col, err := p.db.GetCollection(key)
		if err != nil {
			return nil, fmt.Errorf("failed to load collection %s: %w", key, err)
		}

		op := FetchOp{Kind: OpListPage, CollectionKey: key}
		if col != nil {
			op.Since = col.HighWaterMark
		}
		ops = append(ops, op)
	}

	// 5. Entities flagged for a single fetch.
	refreshIDs, err := p.db.RefreshNeededEntities(p.maxRefresh)
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh-needed entities: %w", err)
	}
	for _, id := range refreshIDs {
		ops = append(ops, FetchOp{Kind: OpRefreshEntity, EntityID: id})
	}

	// Truncate to budget, preserving the priority order. An interrupted
	// pagination resumes cleanly next cycle; a skipped refresh simply stays
	// stale until then.
	if len(ops) > budgetHint {
		ops = ops[:budgetHint]
	}
	return ops, nil
}

func isTopLevel(key string) bool {
	for _, k := range TopLevelCollections {
		if key == k {
			return true
		}
	}
	return false
}

func commentsKey(number int) string {
	return fmt.Sprintf("comments/%d", number)
}

// CommentsKey exposes the comment collection key format for other packages.
func CommentsKey(number int) string {
	return commentsKey(number)
}

// ParseCommentsKey extracts the item number from a comment collection key.
// ok is false when the key is not a comment collection.
func ParseCommentsKey(key string) (int, bool) {
	rest, found := strings.CutPrefix(key, "comments/")
	if !found {
		return 0, false
	}
	var number int
	if _, err := fmt.Sscanf(rest, "%d", &number); err != nil {
		return 0, false
	}
	return number, true
}
