// Package syncer reconciles the local cache against the remote
// repository: queued local mutations are pushed first, then a full
// fetch refreshes everything that has no unconfirmed local edit.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/existflow/caldo/internal/logger"
	"github.com/existflow/caldo/internal/model"
	"github.com/existflow/caldo/internal/remote"
	"github.com/existflow/caldo/internal/store"
)

// SyncError wraps a transport or remote failure. The cache is left
// untouched when one is returned.
type SyncError struct {
	Cause error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed: %v", e.Cause)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Result holds reconciliation statistics.
type Result struct {
	Pushed  int  // journal entries acknowledged by the remote
	Dropped int  // journal entries the remote can never accept
	Pulled  int  // tasks taken from the fetched snapshot
	Offline bool // no remote configured, nothing to reconcile
}

// Orchestrator serializes reconciliation against a single remote. At
// most one reconciliation runs at a time; a Sync call made while one is
// in flight joins it and returns the same result.
type Orchestrator struct {
	st      *store.Store
	repo    remote.Repository // nil when no remote is configured
	journal *Journal

	// pushMu serializes journal walkers. Reconcile's push phase and the
	// background PushPending kicks would otherwise snapshot the same
	// entries and push them to the remote twice.
	pushMu sync.Mutex

	mu       sync.Mutex
	inflight chan struct{}
	lastRes  Result
	lastErr  error
}

// New creates an orchestrator. repo may be nil for offline-only use.
func New(st *store.Store, repo remote.Repository) *Orchestrator {
	return &Orchestrator{
		st:      st,
		repo:    repo,
		journal: LoadJournal(st),
	}
}

// Journal exposes the pending-mutation queue for enqueueing pushes.
func (o *Orchestrator) Journal() *Journal {
	return o.journal
}

// Sync reconciles local and remote state. Concurrent calls join the
// in-flight reconciliation rather than racing it.
func (o *Orchestrator) Sync(ctx context.Context) (Result, error) {
	o.mu.Lock()
	if ch := o.inflight; ch != nil {
		o.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
		o.mu.Lock()
		res, err := o.lastRes, o.lastErr
		o.mu.Unlock()
		return res, err
	}
	ch := make(chan struct{})
	o.inflight = ch
	o.mu.Unlock()

	res, err := o.reconcile(ctx)

	o.mu.Lock()
	o.lastRes, o.lastErr = res, err
	o.inflight = nil
	close(ch)
	o.mu.Unlock()
	return res, err
}

// PushPending flushes the journal without fetching. Used by the
// mutation pipeline's background propagation path.
func (o *Orchestrator) PushPending(ctx context.Context) {
	if o.repo == nil {
		return
	}
	pushed, dropped, err := o.pushJournal(ctx)
	if err != nil {
		logger.Warn("Background push paused",
			logger.F("pushed", pushed),
			logger.F("queued", o.journal.Len()),
			logger.F("error", err))
		return
	}
	if pushed+dropped > 0 {
		logger.Debug("Background push complete",
			logger.F("pushed", pushed), logger.F("dropped", dropped))
	}
}

func (o *Orchestrator) reconcile(ctx context.Context) (Result, error) {
	if o.repo == nil {
		logger.Debug("No remote configured, skipping sync")
		return Result{Offline: true}, nil
	}

	var res Result
	fetchStart := time.Now()

	// Push phase. A transport failure pauses the queue but does not
	// abort the cycle: already-acknowledged entries stay acknowledged,
	// and the fetch below preserves whatever is still queued.
	var pushErr error
	res.Pushed, res.Dropped, pushErr = o.pushJournal(ctx)
	if pushErr != nil {
		logger.Warn("Push phase incomplete", logger.F("error", pushErr))
	}

	inv, err := o.repo.FetchAll(ctx)
	if err != nil {
		return res, &SyncError{Cause: err}
	}

	patch := o.mergePatch(inv, fetchStart)
	res.Pulled = len(inv.Tasks)

	if err := o.st.ApplyPatch(patch); err != nil {
		// In-memory state is already consistent; only durability failed.
		logger.Error("Persisting sync result failed", logger.F("error", err))
	}

	if err := o.st.SetMeta("last_sync", strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
		logger.Warn("Failed to record sync time", logger.F("error", err))
	}

	if pushErr != nil {
		return res, &SyncError{Cause: pushErr}
	}

	logger.Info("Sync complete",
		logger.F("pushed", res.Pushed),
		logger.F("dropped", res.Dropped),
		logger.F("pulled", res.Pulled))
	return res, nil
}

// pushJournal walks the queue head-first. Acknowledged and permanently
// unapplicable entries are removed; the first transport failure stops
// the walk and leaves the remainder queued.
func (o *Orchestrator) pushJournal(ctx context.Context) (pushed, dropped int, err error) {
	o.pushMu.Lock()
	defer o.pushMu.Unlock()

	for _, e := range o.journal.Entries() {
		if err := o.repo.Push(ctx, e.Op); err != nil {
			if errors.Is(err, remote.ErrVanished) {
				logger.Info("Dropping unapplicable mutation",
					logger.F("kind", e.Op.Kind),
					logger.F("uid", e.Op.Task.UID))
				o.journal.Remove(e.Seq)
				dropped++
				continue
			}
			return pushed, dropped, err
		}
		o.journal.Remove(e.Seq)
		pushed++
	}
	return pushed, dropped, nil
}

// mergePatch turns a fetched inventory into a store patch. The remote
// is authoritative except for entities with an unconfirmed local
// mutation, or ones modified locally after the fetch began; those keep
// their local state and get re-pushed on the next cycle.
//
// The snapshot-based filtering here only trims the patch. The binding
// recency check runs inside ApplyPatch via FetchStart/PreserveUIDs, so
// a mutation landing between this computation and the apply still wins
// over the stale fetched copy.
func (o *Orchestrator) mergePatch(inv remote.Inventory, fetchStart time.Time) store.Patch {
	snap := o.st.Snapshot()
	pending := o.journal.PendingUIDs()

	preserve := make(map[string]bool, len(pending))
	for uid := range pending {
		preserve[uid] = true
	}
	patch := store.Patch{
		FetchStart:   fetchStart,
		PreserveUIDs: preserve,
	}

	remoteUIDs := make(map[string]bool, len(inv.Tasks))
	for _, rt := range inv.Tasks {
		remoteUIDs[rt.UID] = true

		if _, ok := pending[rt.UID]; ok {
			// A queued delete keeps the task gone locally even while
			// the remote still reports it; once the queue settles, a
			// later fetch restores it if the remote insists.
			continue
		}
		if local, ok := snap.Tasks[rt.UID]; ok && local.ModifiedAt.After(fetchStart) {
			continue
		}
		patch.Upserts = append(patch.Upserts, rt)
	}

	for uid, lt := range snap.Tasks {
		if lt.CalendarHref == model.LocalCalendarHref {
			continue
		}
		if remoteUIDs[uid] {
			continue
		}
		if _, ok := pending[uid]; ok {
			continue
		}
		if lt.ModifiedAt.After(fetchStart) {
			continue
		}
		patch.Deletes = append(patch.Deletes, uid)
	}

	remoteCals := make(map[string]bool, len(inv.Calendars))
	for _, c := range inv.Calendars {
		remoteCals[c.Href] = true
		patch.Calendars = append(patch.Calendars, c)
	}
	for _, c := range snap.Calendars {
		if !c.IsLocal && !remoteCals[c.Href] {
			patch.RemoveCalendars = append(patch.RemoveCalendars, c.Href)
		}
	}

	return patch
}
