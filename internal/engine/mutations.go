package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/existflow/caldo/internal/model"
	"github.com/existflow/caldo/internal/remote"
	"github.com/existflow/caldo/internal/smart"
	"github.com/existflow/caldo/internal/store"
)

// Every mutation here follows the same shape: validate, apply the patch
// to the cache synchronously, return, and let the journal push the
// change to the remote in the background. The UI never waits on the
// network.

// AddTask decodes a smart string into a new task on the default
// calendar (the local one when no default or no remote is configured).
func (e *Engine) AddTask(smartText string) (model.Task, error) {
	fields := smart.Decode(smartText, e.cfg.TagAliases, time.Now())
	if fields.Summary == "" {
		return model.Task{}, fmt.Errorf("task needs a summary: %w", ErrInvalidInput)
	}

	target := e.cfg.DefaultCalendar
	if target == "" || !e.hasRemote {
		target = model.LocalCalendarHref
	}

	t := model.NewTask(target)
	smart.ApplyTo(fields, &t)

	e.apply(store.Patch{Upserts: []model.Task{t}})
	e.propagate(remote.Op{Kind: remote.OpCreate, Task: t})
	return t, nil
}

// ToggleTask flips a task between needs-action and completed.
// Completing a recurring task also schedules its next occurrence.
func (e *Engine) ToggleTask(uid string) error {
	t, ok := e.st.Task(uid)
	if !ok {
		return fmt.Errorf("task %s: %w", uid, ErrNotFound)
	}

	if t.Status.IsDone() {
		t.Status = model.StatusNeedsAction
	} else {
		t.Status = model.StatusCompleted
	}
	t.Touch()

	patch := store.Patch{Upserts: []model.Task{t}}
	var next *model.Task
	if t.Status == model.StatusCompleted {
		next = t.Respawn()
	}
	if next != nil {
		patch.Upserts = append(patch.Upserts, *next)
	}

	e.apply(patch)
	e.propagate(remote.Op{Kind: remote.OpUpdate, Task: t})
	if next != nil {
		e.propagate(remote.Op{Kind: remote.OpCreate, Task: *next})
	}
	return nil
}

// SetStatusCancelled marks a task cancelled. Any status may move to any
// other; status is user intent, not a protocol state machine.
func (e *Engine) SetStatusCancelled(uid string) error {
	return e.setStatus(uid, model.StatusCancelled)
}

// SetStatusProcess marks a task in-process.
func (e *Engine) SetStatusProcess(uid string) error {
	return e.setStatus(uid, model.StatusInProcess)
}

func (e *Engine) setStatus(uid string, status model.Status) error {
	t, ok := e.st.Task(uid)
	if !ok {
		return fmt.Errorf("task %s: %w", uid, ErrNotFound)
	}
	t.Status = status
	t.Touch()
	e.apply(store.Patch{Upserts: []model.Task{t}})
	e.propagate(remote.Op{Kind: remote.OpUpdate, Task: t})
	return nil
}

// ChangePriority shifts a task's priority by delta, clamped to [0,5].
func (e *Engine) ChangePriority(uid string, delta int) error {
	t, ok := e.st.Task(uid)
	if !ok {
		return fmt.Errorf("task %s: %w", uid, ErrNotFound)
	}

	p := t.Priority + delta
	if p < 0 {
		p = 0
	}
	if p > 5 {
		p = 5
	}
	t.Priority = p
	t.Touch()

	e.apply(store.Patch{Upserts: []model.Task{t}})
	e.propagate(remote.Op{Kind: remote.OpUpdate, Task: t})
	return nil
}

// DeleteTask removes a task locally at once and queues the remote
// deletion. If the remote push never succeeds, the next full fetch
// restores the task rather than letting it vanish silently.
func (e *Engine) DeleteTask(uid string) error {
	t, ok := e.st.Task(uid)
	if !ok {
		return fmt.Errorf("task %s: %w", uid, ErrNotFound)
	}

	e.apply(store.Patch{Deletes: []string{uid}})
	e.propagate(remote.Op{Kind: remote.OpDelete, Task: t})
	return nil
}

// MoveTask reassigns a task to another calendar.
func (e *Engine) MoveTask(uid, newCalendarHref string) error {
	t, ok := e.st.Task(uid)
	if !ok {
		return fmt.Errorf("task %s: %w", uid, ErrNotFound)
	}
	if _, ok := e.st.Calendar(newCalendarHref); !ok {
		return fmt.Errorf("calendar %s: %w", newCalendarHref, ErrNotFound)
	}
	if t.CalendarHref == newCalendarHref {
		return nil
	}

	old := t
	t.CalendarHref = newCalendarHref
	t.Href = ""
	t.ETag = ""
	t.Touch()

	e.apply(store.Patch{Upserts: []model.Task{t}})
	switch {
	case old.CalendarHref == model.LocalCalendarHref:
		// The remote has never seen this task.
		e.propagate(remote.Op{Kind: remote.OpCreate, Task: t})
	case newCalendarHref == model.LocalCalendarHref:
		// Now local-only; the remote copy goes away.
		e.propagate(remote.Op{Kind: remote.OpDelete, Task: old})
	default:
		e.propagate(remote.Op{Kind: remote.OpMove, Task: t, TargetCalendar: newCalendarHref})
	}
	return nil
}

// UpdateTaskSmart re-decodes the task's directive fields from a smart
// string, leaving the description untouched. The notation is date-only,
// so a due date that carried a time of day normalizes to end of day UTC
// when re-entered through here.
func (e *Engine) UpdateTaskSmart(uid, smartText string) error {
	t, ok := e.st.Task(uid)
	if !ok {
		return fmt.Errorf("task %s: %w", uid, ErrNotFound)
	}

	fields := smart.Decode(smartText, e.cfg.TagAliases, time.Now())
	if fields.Summary == "" {
		return fmt.Errorf("task needs a summary: %w", ErrInvalidInput)
	}
	smart.ApplyTo(fields, &t)
	t.Touch()

	e.apply(store.Patch{Upserts: []model.Task{t}})
	e.propagate(remote.Op{Kind: remote.OpUpdate, Task: t})
	return nil
}

// UpdateTaskDescription replaces the long text, leaving the smart
// fields untouched.
func (e *Engine) UpdateTaskDescription(uid, text string) error {
	t, ok := e.st.Task(uid)
	if !ok {
		return fmt.Errorf("task %s: %w", uid, ErrNotFound)
	}
	t.Description = text
	t.Touch()

	e.apply(store.Patch{Upserts: []model.Task{t}})
	e.propagate(remote.Op{Kind: remote.OpUpdate, Task: t})
	return nil
}

// SetCalendarVisibility toggles a calendar in the view. This is a
// config mutation; tasks and calendars themselves are untouched.
func (e *Engine) SetCalendarVisibility(href string, visible bool) error {
	if _, ok := e.st.Calendar(href); !ok {
		return fmt.Errorf("calendar %s: %w", href, ErrNotFound)
	}
	e.cfg.SetCalendarHidden(href, !visible)
	return e.cfg.Save()
}

// SetDefaultCalendar routes future AddTask calls to the given calendar.
func (e *Engine) SetDefaultCalendar(href string) error {
	if _, ok := e.st.Calendar(href); !ok {
		return fmt.Errorf("calendar %s: %w", href, ErrNotFound)
	}
	e.cfg.DefaultCalendar = href
	return e.cfg.Save()
}

// AddAlias maps a tag alias to the underlying tags it expands to at
// task-creation time. An existing alias is overwritten.
func (e *Engine) AddAlias(name string, tags []string) error {
	if name == "" || len(tags) == 0 {
		return fmt.Errorf("alias needs a name and at least one tag: %w", ErrInvalidInput)
	}
	if e.cfg.TagAliases == nil {
		e.cfg.TagAliases = map[string][]string{}
	}
	e.cfg.TagAliases[name] = append([]string(nil), tags...)
	return e.cfg.Save()
}

// RemoveAlias deletes a tag alias.
func (e *Engine) RemoveAlias(name string) error {
	if _, ok := e.cfg.TagAliases[name]; !ok {
		return fmt.Errorf("alias %s: %w", name, ErrNotFound)
	}
	delete(e.cfg.TagAliases, name)
	return e.cfg.Save()
}

// apply commits the patch to the cache. Durability failures are
// reported as events, not returned; the in-memory mutation stays
// visible for this session either way.
func (e *Engine) apply(p store.Patch) {
	if err := e.st.ApplyPatch(p); err != nil {
		e.emit(Event{Type: EventPersistFailed, Message: err.Error(), Err: err})
	}
}

// propagate queues the op for the remote and kicks a background push.
// Local-calendar tasks and offline engines skip the queue entirely.
func (e *Engine) propagate(op remote.Op) {
	if !e.hasRemote || op.Task.CalendarHref == model.LocalCalendarHref {
		return
	}
	e.orch.Journal().Append(op)
	go e.orch.PushPending(context.Background())
}
