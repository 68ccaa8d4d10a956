package syncer

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/existflow/caldo/internal/logger"
	"github.com/existflow/caldo/internal/remote"
	"github.com/existflow/caldo/internal/store"
)

const journalMetaKey = "journal"

// Entry is one queued mutation awaiting remote confirmation.
type Entry struct {
	Seq        int64     `json:"seq"`
	Op         remote.Op `json:"op"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal is the ordered queue of local mutations not yet acknowledged
// by the remote. It lives in the cache database so queued pushes
// survive restarts.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
	nextSeq int64
	st      *store.Store
}

// LoadJournal restores the journal from the cache database. A corrupt
// journal degrades to empty with a warning; losing the queue is
// recoverable, crashing on startup is not.
func LoadJournal(st *store.Store) *Journal {
	j := &Journal{st: st, nextSeq: 1}

	raw, err := st.GetMeta(journalMetaKey)
	if err != nil || raw == "" {
		if err != nil {
			logger.Warn("Journal load failed, starting empty", logger.F("error", err))
		}
		return j
	}

	if err := json.Unmarshal([]byte(raw), &j.entries); err != nil {
		logger.Warn("Journal corrupt, starting empty", logger.F("error", err))
		j.entries = nil
		return j
	}
	for _, e := range j.entries {
		if e.Seq >= j.nextSeq {
			j.nextSeq = e.Seq + 1
		}
	}
	return j
}

// Append queues a mutation for remote propagation.
func (j *Journal) Append(op remote.Op) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, Entry{
		Seq:        j.nextSeq,
		Op:         op,
		RecordedAt: time.Now(),
	})
	j.nextSeq++
	j.persistLocked()
}

// Remove drops an acknowledged (or permanently unapplicable) entry.
func (j *Journal) Remove(seq int64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	kept := j.entries[:0]
	for _, e := range j.entries {
		if e.Seq != seq {
			kept = append(kept, e)
		}
	}
	j.entries = kept
	j.persistLocked()
}

// Entries returns a copy of the queue in order.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...)
}

// Len returns the number of queued mutations.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// PendingUIDs maps each uid with queued mutations to the kind of its
// most recent one. Used by reconciliation to decide which remote
// entities must not clobber local state.
func (j *Journal) PendingUIDs() map[string]remote.OpKind {
	j.mu.Lock()
	defer j.mu.Unlock()

	pending := make(map[string]remote.OpKind, len(j.entries))
	for _, e := range j.entries {
		pending[e.Op.Task.UID] = e.Op.Kind
	}
	return pending
}

// persistLocked writes the queue to the meta table. Caller holds mu.
func (j *Journal) persistLocked() {
	data, err := json.Marshal(j.entries)
	if err != nil {
		logger.Error("Journal marshal failed", logger.F("error", err))
		return
	}
	if err := j.st.SetMeta(journalMetaKey, string(data)); err != nil {
		logger.Error("Journal persist failed", logger.F("error", fmt.Sprint(err)))
	}
}
