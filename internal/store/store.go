// Package store owns the authoritative snapshot of tasks and
// calendars. All writes funnel through ApplyPatch, which serializes
// them; reads get consistent deep copies and never block on I/O.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/existflow/caldo/internal/logger"
	"github.com/existflow/caldo/internal/model"
)

// Store is the single owner of entity state for the process lifetime.
// The in-memory maps are guarded by mu; the SQLite handle persists the
// snapshot so the next start renders without any network call.
type Store struct {
	mu        sync.RWMutex
	tasks     map[string]model.Task
	calendars map[string]model.Calendar
	calOrder  []string

	db *sql.DB
}

// Snapshot is a consistent, caller-owned copy of the store contents.
// Calendars preserve stored order.
type Snapshot struct {
	Tasks     map[string]model.Task
	Calendars []model.Calendar
}

// Patch is a set of entity upserts and deletes applied atomically.
// Both optimistic single-entity mutations and bulk sync refreshes go
// through the same type, so there is one serialization point.
type Patch struct {
	Upserts         []model.Task
	Deletes         []string
	Calendars       []model.Calendar
	RemoveCalendars []string

	// FetchStart marks a sync merge when non-zero. Task upserts and
	// deletes are then re-validated inside the write lock: an entity
	// whose stored copy was modified locally after FetchStart, or whose
	// uid is listed in PreserveUIDs, is left untouched. The check has
	// to happen under the same lock as the write, or a mutation landing
	// between the merge computation and its apply gets clobbered by the
	// stale fetched copy.
	FetchStart   time.Time
	PreserveUIDs map[string]bool
}

// Open opens the cache database at path and returns an empty store.
// Call Load to populate it from the persisted snapshot.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		tasks:     make(map[string]model.Task),
		calendars: make(map[string]model.Calendar),
		db:        db,
	}
	s.ensureLocalCalendar()
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load populates the store from the last persisted snapshot. Missing or
// corrupt rows degrade to an empty (or partial) store with a warning;
// the caller-visible path never fails on bad persistence.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT uid, data FROM tasks`)
	if err != nil {
		logger.Warn("Cache load failed, starting empty", logger.F("error", err))
		return
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var uid string
		var data []byte
		if err := rows.Scan(&uid, &data); err != nil {
			logger.Warn("Skipping unreadable task row", logger.F("error", err))
			continue
		}
		var t model.Task
		if err := json.Unmarshal(data, &t); err != nil {
			logger.Warn("Skipping corrupt task row", logger.F("uid", uid), logger.F("error", err))
			continue
		}
		s.tasks[t.UID] = t
		loaded++
	}

	calRows, err := s.db.Query(`SELECT href, data FROM calendars ORDER BY position`)
	if err != nil {
		logger.Warn("Calendar load failed", logger.F("error", err))
		return
	}
	defer calRows.Close()

	for calRows.Next() {
		var href string
		var data []byte
		if err := calRows.Scan(&href, &data); err != nil {
			continue
		}
		var c model.Calendar
		if err := json.Unmarshal(data, &c); err != nil {
			logger.Warn("Skipping corrupt calendar row", logger.F("href", href), logger.F("error", err))
			continue
		}
		if _, seen := s.calendars[c.Href]; !seen {
			s.calendars[c.Href] = c
			s.calOrder = append(s.calOrder, c.Href)
		}
	}
	s.ensureLocalCalendar()

	logger.Info("Cache loaded", logger.F("tasks", loaded), logger.F("calendars", len(s.calOrder)))
}

// ensureLocalCalendar keeps the synthetic local calendar present.
// Caller must hold mu, or the store must not be shared yet.
func (s *Store) ensureLocalCalendar() {
	if _, ok := s.calendars[model.LocalCalendarHref]; ok {
		return
	}
	local := model.LocalCalendar()
	s.calendars[local.Href] = local
	s.calOrder = append([]string{local.Href}, s.calOrder...)
}

// Snapshot returns a deep copy of current tasks and calendars. The copy
// never observes a partially applied patch.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Tasks:     make(map[string]model.Task, len(s.tasks)),
		Calendars: make([]model.Calendar, 0, len(s.calOrder)),
	}
	for uid, t := range s.tasks {
		snap.Tasks[uid] = t.Clone()
	}
	for _, href := range s.calOrder {
		snap.Calendars = append(snap.Calendars, s.calendars[href])
	}
	return snap
}

// Task returns a copy of the task with the given uid.
func (s *Store) Task(uid string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[uid]
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

// Calendar returns the calendar with the given href.
func (s *Store) Calendar(href string) (model.Calendar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calendars[href]
	return c, ok
}

// ApplyPatch merges the patch into the store atomically, then persists
// the resulting snapshot. Persistence is best-effort: a durability
// failure is logged and returned, but the in-memory state stays applied
// and visible.
func (s *Store) ApplyPatch(p Patch) error {
	s.mu.Lock()
	for _, t := range p.Upserts {
		if s.skipSyncWrite(t.UID, p) {
			continue
		}
		s.tasks[t.UID] = t.Clone()
	}
	for _, uid := range p.Deletes {
		if s.skipSyncWrite(uid, p) {
			continue
		}
		delete(s.tasks, uid)
	}
	for _, c := range p.Calendars {
		if _, seen := s.calendars[c.Href]; !seen {
			s.calOrder = append(s.calOrder, c.Href)
		}
		s.calendars[c.Href] = c
	}
	for _, href := range p.RemoveCalendars {
		if href == model.LocalCalendarHref {
			continue
		}
		if _, seen := s.calendars[href]; seen {
			delete(s.calendars, href)
			kept := s.calOrder[:0]
			for _, h := range s.calOrder {
				if h != href {
					kept = append(kept, h)
				}
			}
			s.calOrder = kept
		}
	}
	s.mu.Unlock()

	// I/O happens outside the critical section, against a fresh copy.
	if err := s.persist(); err != nil {
		logger.Error("Cache persist failed", logger.F("error", err))
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

// skipSyncWrite reports whether a sync-merge write must leave the
// stored entity alone. Always false for ordinary mutation patches.
// Caller holds mu.
func (s *Store) skipSyncWrite(uid string, p Patch) bool {
	if p.FetchStart.IsZero() {
		return false
	}
	if p.PreserveUIDs[uid] {
		return true
	}
	cur, ok := s.tasks[uid]
	return ok && cur.ModifiedAt.After(p.FetchStart)
}

// persist durably writes the whole current snapshot in one transaction.
func (s *Store) persist() error {
	snap := s.Snapshot()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM calendars`); err != nil {
		return err
	}

	for _, t := range snap.Tasks {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO tasks (uid, calendar_href, data) VALUES (?, ?, ?)`,
			t.UID, t.CalendarHref, data); err != nil {
			return err
		}
	}
	for i, c := range snap.Calendars {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO calendars (href, position, data) VALUES (?, ?, ?)`,
			c.Href, i, data); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetMeta reads a value from the meta table, "" when absent.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMeta upserts a value into the meta table.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
