// Package engine is the synchronization core behind the UI: it applies
// user mutations to the cache optimistically, queues them for remote
// propagation, and serves derived views without touching the network.
package engine

import (
	"context"
	"fmt"

	"github.com/existflow/caldo/internal/config"
	"github.com/existflow/caldo/internal/logger"
	"github.com/existflow/caldo/internal/model"
	"github.com/existflow/caldo/internal/remote"
	"github.com/existflow/caldo/internal/store"
	"github.com/existflow/caldo/internal/syncer"
	"github.com/existflow/caldo/internal/view"
)

// Engine ties the cache store, sync orchestrator and view projector
// together behind the surface the presentation layer consumes. Reads
// are instant and network-free; mutations apply locally first and
// propagate in the background.
type Engine struct {
	cfg       *config.Config
	st        *store.Store
	orch      *syncer.Orchestrator
	hasRemote bool
	events    chan Event
}

// New wires an engine from its parts. repo may be nil for offline use.
func New(cfg *config.Config, st *store.Store, repo remote.Repository) *Engine {
	return &Engine{
		cfg:       cfg,
		st:        st,
		orch:      syncer.New(st, repo),
		hasRemote: repo != nil,
		events:    make(chan Event, 64),
	}
}

// Open builds an engine from config: cache at the default path, HTTP
// remote when a URL is configured.
func Open(cfg *config.Config) (*Engine, error) {
	dbPath, err := store.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	var repo remote.Repository
	if cfg.URL != "" {
		password, err := cfg.Password()
		if err != nil {
			logger.Warn("Stored credential unreadable, going offline", logger.F("error", err))
		} else {
			client, err := remote.NewClient(remote.Options{
				URL:           cfg.URL,
				Username:      cfg.Username,
				Password:      password,
				AllowInsecure: cfg.AllowInsecure,
			})
			if err != nil {
				st.Close()
				return nil, err
			}
			repo = client
		}
	}

	return New(cfg, st, repo), nil
}

// Close releases the cache database.
func (e *Engine) Close() error {
	return e.st.Close()
}

// LoadFromCache populates the store from persisted state. It never
// fails the caller: bad persistence means an empty store and a warning
// in the log, and the first sync repopulates everything.
func (e *Engine) LoadFromCache() {
	e.st.Load()
}

// Sync reconciles the cache against the remote in one push-then-fetch
// cycle. Safe to call concurrently; a second call joins the cycle
// already in flight.
func (e *Engine) Sync(ctx context.Context) (syncer.Result, error) {
	e.emit(Event{Type: EventSyncStarted})
	res, err := e.orch.Sync(ctx)
	if err != nil {
		e.emit(Event{Type: EventSyncFailed, Message: err.Error(), Err: err})
		return res, err
	}
	msg := fmt.Sprintf("pushed %d, pulled %d", res.Pushed, res.Pulled)
	if res.Offline {
		msg = "offline, local only"
	}
	e.emit(Event{Type: EventSyncFinished, Message: msg})
	return res, nil
}

// GetViewTasks projects the filtered, sorted task list for display.
func (e *Engine) GetViewTasks(filterTag, searchQuery string) []model.Task {
	return view.VisibleTasks(e.st.Snapshot(), e.cfg.HiddenCalendars, view.Query{
		FilterTag:     filterTag,
		Search:        searchQuery,
		HideCompleted: e.cfg.HideCompleted,
	})
}

// GetViewTasksAll is GetViewTasks with completed tasks included even
// when the config hides them.
func (e *Engine) GetViewTasksAll(filterTag, searchQuery string) []model.Task {
	return view.VisibleTasks(e.st.Snapshot(), e.cfg.HiddenCalendars, view.Query{
		FilterTag: filterTag,
		Search:    searchQuery,
	})
}

// GetAllTags returns tag counts over visible tasks.
func (e *Engine) GetAllTags() []model.Tag {
	return view.TagSummary(e.st.Snapshot(), e.cfg.HiddenCalendars, e.cfg.HideCompleted)
}

// GetCalendars returns calendars annotated with visibility and default
// flags, in stored order.
func (e *Engine) GetCalendars() []view.CalendarEntry {
	return view.CalendarList(e.st.Snapshot(), e.cfg.HiddenCalendars, e.cfg.DefaultCalendar)
}

// Snapshot exposes the raw cache snapshot, mainly for tests and detail
// views.
func (e *Engine) Snapshot() store.Snapshot {
	return e.st.Snapshot()
}

// IsBlocked reports whether a task waits on an unfinished dependency.
func (e *Engine) IsBlocked(t model.Task) bool {
	return view.IsBlocked(e.st.Snapshot(), t)
}

// ConfigInfo is the readable projection of the config. Credential
// material is write-only; readers only learn whether one is stored.
type ConfigInfo struct {
	URL             string
	Username        string
	HasPassword     bool
	AllowInsecure   bool
	HideCompleted   bool
	DefaultCalendar string
	TagAliases      map[string][]string
}

// GetConfig returns the current settings with credentials masked.
func (e *Engine) GetConfig() ConfigInfo {
	aliases := make(map[string][]string, len(e.cfg.TagAliases))
	for name, tags := range e.cfg.TagAliases {
		aliases[name] = append([]string(nil), tags...)
	}
	return ConfigInfo{
		URL:             e.cfg.URL,
		Username:        e.cfg.Username,
		HasPassword:     e.cfg.HasPassword(),
		AllowInsecure:   e.cfg.AllowInsecure,
		HideCompleted:   e.cfg.HideCompleted,
		DefaultCalendar: e.cfg.DefaultCalendar,
		TagAliases:      aliases,
	}
}

// SaveConfig updates the remote account and view settings. An empty
// password keeps the stored credential. A changed remote takes effect
// on the next engine construction.
func (e *Engine) SaveConfig(url, username, password string, allowInsecure, hideCompleted bool) error {
	e.cfg.URL = url
	e.cfg.Username = username
	e.cfg.AllowInsecure = allowInsecure
	e.cfg.HideCompleted = hideCompleted
	if password != "" {
		if err := e.cfg.SetPassword(password); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
	}
	return e.cfg.Save()
}
