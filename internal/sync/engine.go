// Package sync orchestrates the fetch-merge cycles that keep the local
// mirror converging on remote state under the call budget.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/JohanCodinha/ghmirror/internal/budget"
	"github.com/JohanCodinha/ghmirror/internal/gh"
	"github.com/JohanCodinha/ghmirror/internal/logger"
	"github.com/JohanCodinha/ghmirror/internal/merge"
	"github.com/JohanCodinha/ghmirror/internal/plan"
	"github.com/JohanCodinha/ghmirror/internal/store"
	"github.com/JohanCodinha/ghmirror/internal/track"
)

// State is the engine's coarse lifecycle phase, exposed for status reporting.
type State int

const (
	StateIdle State = iota
	StatePlanning
	StateFetching
	StateMerging
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlanning:
		return "planning"
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

const (
	defaultWorkers     = 4
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
)

// Engine runs sync cycles: plan fetch work under the remaining budget,
// execute it with a small worker pool, merge results, and persist cursor
// progress after every page so an interruption at any point leaves a state
// the next cycle resumes from.
type Engine struct {
	db      *store.DB
	client  *gh.Client
	tracker *budget.Tracker
	cursors *track.CursorManager
	stale   *track.StalenessIndex
	planner *plan.Planner
	merger  *merge.Engine

	repo        string
	workers     int
	maxAttempts int
	backoff     time.Duration

	stateMu stdsync.Mutex
	state   State

	// mergeMu serializes merges and cursor advances. Fetches overlap freely;
	// applying their results does not, which keeps the parent-before-child
	// ordering for comments and makes read-then-write merges safe.
	mergeMu stdsync.Mutex
}

// CycleResult summarizes one sync cycle.
type CycleResult struct {
	CycleID string
	// Planned is the number of fetch operations the cycle scheduled.
	Planned int
	// Calls is the number of remote call attempts the cycle made.
	Calls int
	// Deferred counts operations pushed to the next cycle by budget
	// exhaustion or repeated transient failures.
	Deferred int
	Report   merge.Report
}

// New creates an engine over the given store, client and budget tracker.
// repo is the owner/name of the mirrored repository, recorded in the scope.
func New(db *store.DB, client *gh.Client, tracker *budget.Tracker, repo string) *Engine {
	client.SetQuotaObserver(tracker.ObserveWindow)
	return &Engine{
		db:          db,
		client:      client,
		tracker:     tracker,
		cursors:     track.NewCursorManager(db),
		stale:       track.NewStalenessIndex(db),
		planner:     plan.New(db),
		merger:      merge.New(db),
		repo:        repo,
		workers:     defaultWorkers,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
}

// SetWorkers sets the fetch worker pool size, clamped to 1..8.
func (e *Engine) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	e.workers = n
}

// SetRetryPolicy sets how many attempts a transient failure gets and the base
// backoff between them. The backoff doubles per attempt.
func (e *Engine) SetRetryPolicy(attempts int, backoff time.Duration) {
	if attempts > 0 {
		e.maxAttempts = attempts
	}
	if backoff > 0 {
		e.backoff = backoff
	}
}

// SetPlanLimits forwards per-cycle scheduling caps to the planner.
func (e *Engine) SetPlanLimits(commentBackfill, refresh int) {
	e.planner.SetLimits(commentBackfill, refresh)
}

// SetConflictJournal enables journaling of payloads discarded by revision
// conflicts into dir.
func (e *Engine) SetConflictJournal(dir string) error {
	j, err := merge.NewJournal(dir)
	if err != nil {
		return err
	}
	e.merger.SetJournal(j)
	return nil
}

// State returns the engine's current lifecycle phase.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// cycleState aggregates the results of one cycle's concurrent operations.
type cycleState struct {
	mu         stdsync.Mutex
	report     merge.Report
	calls      int
	deferred   int
	structural []error
	fatal      error
}

func (cs *cycleState) addReport(r merge.Report) {
	cs.mu.Lock()
	cs.report.Add(r)
	cs.mu.Unlock()
}

func (cs *cycleState) addCall() {
	cs.mu.Lock()
	cs.calls++
	cs.mu.Unlock()
}

func (cs *cycleState) addDeferred() {
	cs.mu.Lock()
	cs.deferred++
	cs.mu.Unlock()
}

func (cs *cycleState) addStructural(err error) {
	cs.mu.Lock()
	cs.structural = append(cs.structural, err)
	cs.mu.Unlock()
}

func (cs *cycleState) setFatal(err error) {
	cs.mu.Lock()
	if cs.fatal == nil {
		cs.fatal = err
	}
	cs.mu.Unlock()
}

// RunCycle executes one sync cycle. Cancellation of ctx stops the cycle
// cooperatively between pages; everything merged so far stays merged and the
// cursors resume the work next cycle.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	cycleID := uuid.NewString()[:8]
	result := &CycleResult{CycleID: cycleID}

	e.setState(StatePlanning)
	defer e.setState(StateIdle)

	remaining := e.tracker.Remaining()
	ops, err := e.planner.Plan(remaining)
	if err != nil {
		e.setState(StateInterrupted)
		return result, fmt.Errorf("cycle %s: %w", cycleID, err)
	}
	result.Planned = len(ops)
	if len(ops) == 0 {
		logger.Debug("sync: cycle %s has nothing to do (budget %d)", cycleID, remaining)
		return result, nil
	}
	logger.Info("sync: cycle %s planned %d ops under budget %d", cycleID, len(ops), remaining)

	e.setState(StateFetching)

	cs := &cycleState{}
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	opCh := make(chan plan.FetchOp)
	var wg stdsync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for op := range opCh {
				if workerCtx.Err() != nil {
					continue
				}
				e.runOp(workerCtx, op, cs, cancel)
			}
		}()
	}
	for _, op := range ops {
		opCh <- op
	}
	close(opCh)
	wg.Wait()

	e.setState(StateMerging)

	cs.mu.Lock()
	result.Calls = cs.calls
	result.Deferred = cs.deferred
	result.Report = cs.report
	fatal := cs.fatal
	structural := append([]error(nil), cs.structural...)
	cs.mu.Unlock()

	if fatal != nil {
		e.setState(StateInterrupted)
		logger.Error("sync: cycle %s interrupted: %v", cycleID, fatal)
		return result, fatal
	}

	if err := e.recordScope(); err != nil {
		e.setState(StateInterrupted)
		return result, err
	}

	if len(structural) > 0 {
		return result, errors.Join(structural...)
	}

	logger.Info("sync: cycle %s done: %s (%d calls, %d deferred)",
		cycleID, result.Report, result.Calls, result.Deferred)
	return result, ctx.Err()
}

// Run loops cycles every interval until ctx is cancelled. Cycle failures are
// logged, not fatal: durable cursors mean the next cycle picks up cleanly.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	for {
		if _, err := e.RunCycle(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sync: cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// FullResync clears all collection cursors and flags every item's comments
// for re-listing, so the next cycles re-enumerate the whole scope from
// scratch. Mirrored data is kept; re-enumeration merges over it.
func (e *Engine) FullResync() error {
	if err := e.db.ResetAllCollections(); err != nil {
		return err
	}
	if err := e.db.MarkAllCommentsStale(); err != nil {
		return err
	}
	logger.Info("sync: full resync scheduled, all cursors cleared")
	return nil
}

func (e *Engine) runOp(ctx context.Context, op plan.FetchOp, cs *cycleState, cancel context.CancelFunc) {
	var err error
	if op.Kind == plan.OpRefreshEntity {
		err = e.executeRefreshOp(ctx, op, cs)
	} else {
		err = e.executeListOp(ctx, op, cs)
	}
	if err == nil {
		return
	}

	var regression *track.RegressionError
	if errors.As(err, &regression) {
		// A cursor regression poisons one collection, not the cycle. The
		// operator resolves it with an explicit reset of that collection.
		logger.Error("sync: %v", regression)
		cs.addStructural(err)
		return
	}

	// Anything else reaching here is a persistence failure. Stop the cycle;
	// already-committed pages stay committed.
	cs.setFatal(err)
	cancel()
}

// executeListOp paginates one collection listing to completion or until the
// budget, the context, or an error stops it. The cursor is advanced after
// every merged page, so any stop point is a clean resume point.
func (e *Engine) executeListOp(ctx context.Context, op plan.FetchOp, cs *cycleState) error {
	key := op.CollectionKey
	parentNumber, isComments := plan.ParseCommentsKey(key)

	var parentID string
	if isComments {
		parent, err := e.db.GetItemByNumber(parentNumber)
		if err != nil {
			return err
		}
		if parent == nil {
			// Parent left the mirror between planning and execution.
			return nil
		}
		parentID = parent.ID
	}

	token := op.PageToken
	since := op.Since
	// Deletion may only be inferred when the enumeration both started from
	// the beginning and finishes within this single run.
	fromStart := token == "" && since == ""

	seenItems := make(map[string]bool)
	seenComments := make(map[int64]bool)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if e.tracker.Reserve(1) == 0 {
			logger.Debug("sync: budget exhausted, deferring %s", op)
			cs.addDeferred()
			return nil
		}

		var (
			items     []gh.Item
			comments  []gh.Comment
			nextToken string
			last      bool
			cost      int
		)
		err := e.withRetry(ctx, cs, func() error {
			if isComments {
				page, err := e.client.ListComments(ctx, parentNumber, token, since)
				if err != nil {
					return err
				}
				comments = page.Comments
				nextToken, last, cost = page.NextToken, page.FullyEnumerated, page.QuotaConsumed
				return nil
			}
			page, err := e.client.ListItems(ctx, key, token, since)
			if err != nil {
				return err
			}
			items = page.Items
			nextToken, last, cost = page.NextToken, page.FullyEnumerated, page.QuotaConsumed
			return nil
		})
		if err != nil {
			return e.handleListError(err, op, parentID, cs)
		}
		if cost > 1 {
			e.tracker.Consume(cost - 1)
		}

		e.mergeMu.Lock()
		var rep merge.Report
		var pageHWM string
		if isComments {
			batch := make([]store.Comment, 0, len(comments))
			for _, c := range comments {
				sc := commentFromRemote(parentID, c)
				batch = append(batch, sc)
				seenComments[sc.ID] = true
				if sc.UpdatedAt > pageHWM {
					pageHWM = sc.UpdatedAt
				}
			}
			rep, err = e.merger.MergeComments(parentID, batch)
		} else {
			batch := make([]store.Item, 0, len(items))
			for _, it := range items {
				si := itemFromRemote(key, it)
				batch = append(batch, si)
				seenItems[si.ID] = true
				if si.UpdatedAt > pageHWM {
					pageHWM = si.UpdatedAt
				}
			}
			rep, err = e.merger.MergeItems(key, batch)
		}
		if err != nil {
			e.mergeMu.Unlock()
			return err
		}
		cs.addReport(rep)

		if err := e.cursors.Advance(key, nextToken, pageHWM); err != nil {
			e.mergeMu.Unlock()
			return err
		}

		if last {
			err := e.finishListing(key, parentID, fromStart, isComments, seenItems, seenComments, cs)
			e.mergeMu.Unlock()
			return err
		}
		e.mergeMu.Unlock()

		token = nextToken
		since = ""
	}
}

// finishListing runs the end-of-enumeration bookkeeping. Caller holds mergeMu.
func (e *Engine) finishListing(key, parentID string, fromStart, isComments bool, seenItems map[string]bool, seenComments map[int64]bool, cs *cycleState) error {
	if err := e.stale.MarkFullyEnumerated(key); err != nil {
		return err
	}

	if fromStart {
		var rep merge.Report
		var err error
		if isComments {
			rep, err = e.merger.TombstoneAbsentComments(parentID, seenComments)
		} else {
			rep, err = e.merger.TombstoneAbsentItems(store.KindForCollection(key), seenItems)
		}
		if err != nil {
			return err
		}
		cs.addReport(rep)
	}

	if isComments {
		return e.merger.ClearCommentsStale(parentID)
	}
	return nil
}

// executeRefreshOp fetches a single flagged entity and merges it, clearing
// the refresh flag on any authoritative outcome.
func (e *Engine) executeRefreshOp(ctx context.Context, op plan.FetchOp, cs *cycleState) error {
	collection, number, err := store.SplitEntityID(op.EntityID)
	if err != nil {
		return err
	}

	if e.tracker.Reserve(1) == 0 {
		cs.addDeferred()
		return nil
	}

	if collection == "comments" {
		return e.refreshComment(ctx, op, number, cs)
	}
	return e.refreshItem(ctx, op, collection, int(number), cs)
}

func (e *Engine) refreshItem(ctx context.Context, op plan.FetchOp, collection string, number int, cs *cycleState) error {
	var fetched *gh.Item
	var cost int
	err := e.withRetry(ctx, cs, func() error {
		var ferr error
		fetched, cost, ferr = e.client.GetItem(ctx, collection, number)
		return ferr
	})
	if cost > 1 {
		e.tracker.Consume(cost - 1)
	}
	if err != nil {
		return e.handleRefreshError(err, op, cs)
	}

	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()

	rep, err := e.merger.MergeItems(collection, []store.Item{itemFromRemote(collection, *fetched)})
	if err != nil {
		return err
	}
	cs.addReport(rep)
	return e.clearRefreshFlag(op.EntityID, fmtTime(fetched.UpdatedAt))
}

func (e *Engine) refreshComment(ctx context.Context, op plan.FetchOp, id int64, cs *cycleState) error {
	existing, err := e.db.GetComment(id)
	if err != nil {
		return err
	}
	if existing == nil {
		// Flagged but never mirrored; nothing to refresh against.
		return e.clearRefreshFlag(op.EntityID, "")
	}

	var fetched *gh.Comment
	var cost int
	err = e.withRetry(ctx, cs, func() error {
		var ferr error
		fetched, cost, ferr = e.client.GetComment(ctx, id)
		return ferr
	})
	if cost > 1 {
		e.tracker.Consume(cost - 1)
	}
	if err != nil {
		return e.handleRefreshError(err, op, cs)
	}

	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()

	rep, err := e.merger.MergeComments(existing.ItemID, []store.Comment{commentFromRemote(existing.ItemID, *fetched)})
	if err != nil {
		return err
	}
	cs.addReport(rep)
	return e.clearRefreshFlag(op.EntityID, fmtTime(fetched.UpdatedAt))
}

// clearRefreshFlag re-records the entity's staleness without the refresh
// flag. The recorded revision never moves backwards even when the refresh
// fetched an older payload than the mirror holds.
func (e *Engine) clearRefreshFlag(entityID, fetchedRevision string) error {
	rec, err := e.db.GetStaleness(entityID)
	if err != nil {
		return err
	}
	revision := fetchedRevision
	if rec != nil && rec.Revision > revision {
		revision = rec.Revision
	}
	return e.stale.Record(entityID, revision)
}

// withRetry runs fetch, retrying transient failures with doubling backoff.
// The caller reserved the first call; each retry reserves its own unit since
// failed attempts spend quota like successful ones.
func (e *Engine) withRetry(ctx context.Context, cs *cycleState, fetch func() error) error {
	var lastErr error
	backoff := e.backoff
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if e.tracker.Reserve(1) == 0 {
				return lastErr
			}
		}
		cs.addCall()

		err := fetch()
		var te *gh.TransientError
		if errors.As(err, &te) {
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}

// handleListError maps a listing fetch failure to its cycle-level meaning.
func (e *Engine) handleListError(err error, op plan.FetchOp, parentID string, cs *cycleState) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	var qe *gh.QuotaError
	if errors.As(err, &qe) {
		e.tracker.Exhaust()
		logger.Warn("sync: remote reports quota exhausted until %s", qe.ResetAt.Format(time.RFC3339))
		cs.addDeferred()
		return nil
	}

	var te *gh.TransientError
	if errors.As(err, &te) {
		logger.Warn("sync: deferring %s after repeated transient failures: %v", op, err)
		cs.addDeferred()
		return nil
	}

	var nf *gh.NotFoundError
	if errors.As(err, &nf) {
		if parentID == "" {
			return fmt.Errorf("listing %s: %w", op.CollectionKey, err)
		}
		// The parent of this comment listing is explicitly gone.
		e.mergeMu.Lock()
		defer e.mergeMu.Unlock()
		rep, terr := e.merger.TombstoneEntity(parentID)
		if terr != nil {
			return terr
		}
		cs.addReport(rep)
		return e.merger.ClearCommentsStale(parentID)
	}

	return err
}

// handleRefreshError maps a single-entity fetch failure to its meaning. A
// transient failure leaves the refresh flag set so the planner reschedules.
func (e *Engine) handleRefreshError(err error, op plan.FetchOp, cs *cycleState) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	var qe *gh.QuotaError
	if errors.As(err, &qe) {
		e.tracker.Exhaust()
		logger.Warn("sync: remote reports quota exhausted until %s", qe.ResetAt.Format(time.RFC3339))
		cs.addDeferred()
		return nil
	}

	var te *gh.TransientError
	if errors.As(err, &te) {
		logger.Warn("sync: deferring %s after repeated transient failures: %v", op, err)
		cs.addDeferred()
		return nil
	}

	var nf *gh.NotFoundError
	if errors.As(err, &nf) {
		e.mergeMu.Lock()
		defer e.mergeMu.Unlock()
		rep, terr := e.merger.TombstoneEntity(op.EntityID)
		if terr != nil {
			return terr
		}
		cs.addReport(rep)
		return e.clearRefreshFlag(op.EntityID, "")
	}

	return err
}

// recordScope records the mirrored repository and, when both top-level
// collections are fully enumerated, the time the mirror last held a complete
// picture.
func (e *Engine) recordScope() error {
	full := true
	for _, key := range plan.TopLevelCollections {
		ok, err := e.stale.FullyEnumerated(key)
		if err != nil {
			return err
		}
		if !ok {
			full = false
			break
		}
	}
	return e.db.WithTx(func(tx *store.Tx) error {
		if full {
			return tx.TouchScope(e.repo, true, store.NowUTC())
		}
		return tx.TouchScope(e.repo, false, "")
	})
}

func itemFromRemote(collection string, it gh.Item) store.Item {
	state := it.State
	if collection == "pulls" && it.Merged {
		state = "merged"
	}
	return store.Item{
		ID:        store.ItemID(collection, it.Number),
		Kind:      store.KindForCollection(collection),
		Number:    it.Number,
		Title:     it.Title,
		Body:      it.Body,
		State:     state,
		Author:    it.User.Login,
		CreatedAt: fmtTime(it.CreatedAt),
		UpdatedAt: fmtTime(it.UpdatedAt),
	}
}

func commentFromRemote(parentID string, c gh.Comment) store.Comment {
	return store.Comment{
		ID:        c.ID,
		ItemID:    parentID,
		Author:    c.User.Login,
		Body:      c.Body,
		CreatedAt: fmtTime(c.CreatedAt),
		UpdatedAt: fmtTime(c.UpdatedAt),
	}
}

// fmtTime renders a revision marker. UTC RFC3339 strings compare correctly
// as plain strings, which is what the merge and cursor layers rely on.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
