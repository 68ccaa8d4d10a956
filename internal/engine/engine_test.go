package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/existflow/caldo/internal/config"
	"github.com/existflow/caldo/internal/model"
	"github.com/existflow/caldo/internal/remote"
	"github.com/existflow/caldo/internal/store"
)

// stalledRepo accepts nothing: every push fails with a transport error,
// so queued ops stay in the journal where tests can observe them.
type stalledRepo struct {
	mu        sync.Mutex
	inventory remote.Inventory
}

func (r *stalledRepo) FetchAll(ctx context.Context) (remote.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inventory, nil
}

func (r *stalledRepo) Push(ctx context.Context, op remote.Op) error {
	return errors.New("connection refused")
}

func testEngine(t *testing.T, repo remote.Repository) *Engine {
	t.Helper()

	cfg, err := config.LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("config.LoadFrom failed: %v", err)
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(cfg, st, repo)
}

func TestAddTaskOffline(t *testing.T) {
	eng := testEngine(t, nil)

	task, err := eng.AddTask("!2 #home Buy milk")
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if task.Summary != "Buy milk" || task.Priority != 2 {
		t.Errorf("decoded task = %+v", task)
	}
	if task.CalendarHref != model.LocalCalendarHref {
		t.Errorf("offline task landed on %q, want local calendar", task.CalendarHref)
	}

	visible := eng.GetViewTasks("", "")
	if len(visible) != 1 || visible[0].UID != task.UID {
		t.Errorf("GetViewTasks = %v", visible)
	}
}

func TestAddTaskRejectsEmptySummary(t *testing.T) {
	eng := testEngine(t, nil)

	tests := []string{"", "   ", "!3 #tag ~2h"}
	for _, input := range tests {
		if _, err := eng.AddTask(input); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("AddTask(%q) err = %v, want ErrInvalidInput", input, err)
		}
	}
	if got := eng.GetViewTasks("", ""); len(got) != 0 {
		t.Errorf("rejected adds left %d tasks behind", len(got))
	}
}

func TestAddTaskUsesDefaultCalendar(t *testing.T) {
	repo := &stalledRepo{}
	eng := testEngine(t, repo)

	cal := model.Calendar{Href: "remote/work/", Name: "Work"}
	if err := eng.st.ApplyPatch(store.Patch{Calendars: []model.Calendar{cal}}); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	if err := eng.SetDefaultCalendar("remote/work/"); err != nil {
		t.Fatalf("SetDefaultCalendar failed: %v", err)
	}

	task, err := eng.AddTask("Ship the release")
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if task.CalendarHref != "remote/work/" {
		t.Errorf("CalendarHref = %q, want default calendar", task.CalendarHref)
	}

	// The create is queued for the remote.
	pending := eng.orch.Journal().PendingUIDs()
	if pending[task.UID] != remote.OpCreate {
		t.Errorf("pending[%s] = %q, want create", task.UID, pending[task.UID])
	}
}

func TestAddTaskExpandsAliases(t *testing.T) {
	eng := testEngine(t, nil)
	if err := eng.AddAlias("er", []string{"errand", "urgent"}); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}

	task, err := eng.AddTask("#er Buy stamps")
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if !task.HasCategory("errand") || !task.HasCategory("urgent") || task.HasCategory("er") {
		t.Errorf("Categories = %v", task.Categories)
	}

	// The view can filter on an expanded tag.
	if got := eng.GetViewTasks("errand", ""); len(got) != 1 {
		t.Errorf("filter on expanded tag found %d tasks", len(got))
	}
}

func TestToggleTask(t *testing.T) {
	eng := testEngine(t, nil)
	task, _ := eng.AddTask("Water plants")

	if err := eng.ToggleTask(task.UID); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	got, _ := eng.st.Task(task.UID)
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}

	if err := eng.ToggleTask(task.UID); err != nil {
		t.Fatalf("second ToggleTask failed: %v", err)
	}
	got, _ = eng.st.Task(task.UID)
	if got.Status != model.StatusNeedsAction {
		t.Errorf("Status = %q, want needs-action", got.Status)
	}

	if err := eng.ToggleTask("no-such-uid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown uid err = %v, want ErrNotFound", err)
	}
}

func TestToggleCancelledReopens(t *testing.T) {
	eng := testEngine(t, nil)
	task, _ := eng.AddTask("Abandoned idea")

	if err := eng.SetStatusCancelled(task.UID); err != nil {
		t.Fatalf("SetStatusCancelled failed: %v", err)
	}
	// Cancelled counts as done, so a toggle reopens rather than completes.
	if err := eng.ToggleTask(task.UID); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	got, _ := eng.st.Task(task.UID)
	if got.Status != model.StatusNeedsAction {
		t.Errorf("Status = %q, want needs-action", got.Status)
	}
}

func TestToggleRecurringSchedulesNext(t *testing.T) {
	eng := testEngine(t, nil)
	task, _ := eng.AddTask("@2025-03-10 Water plants")

	got, _ := eng.st.Task(task.UID)
	got.RRule = "FREQ=WEEKLY"
	if err := eng.st.ApplyPatch(store.Patch{Upserts: []model.Task{got}}); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	if err := eng.ToggleTask(task.UID); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}

	snap := eng.Snapshot()
	if len(snap.Tasks) != 2 {
		t.Fatalf("got %d tasks after completing recurring, want 2", len(snap.Tasks))
	}
	var next model.Task
	for uid, t2 := range snap.Tasks {
		if uid != task.UID {
			next = t2
		}
	}
	if next.Status != model.StatusNeedsAction || next.RRule != "FREQ=WEEKLY" {
		t.Errorf("next occurrence = %+v", next)
	}
	wantDue := time.Date(2025, 3, 17, 23, 59, 59, 0, time.UTC)
	if next.Due == nil || !next.Due.Equal(wantDue) {
		t.Errorf("next Due = %v, want %v", next.Due, wantDue)
	}
}

func TestChangePriorityClamps(t *testing.T) {
	eng := testEngine(t, nil)
	task, _ := eng.AddTask("!3 Measure twice")

	tests := []struct {
		delta int
		want  int
	}{
		{1, 4},
		{5, 5},  // clamped high
		{-9, 0}, // clamped low
		{2, 2},
	}
	for _, tt := range tests {
		if err := eng.ChangePriority(task.UID, tt.delta); err != nil {
			t.Fatalf("ChangePriority(%d) failed: %v", tt.delta, err)
		}
		got, _ := eng.st.Task(task.UID)
		if got.Priority != tt.want {
			t.Errorf("after delta %d: Priority = %d, want %d", tt.delta, got.Priority, tt.want)
		}
	}

	if err := eng.ChangePriority("no-such-uid", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown uid err = %v, want ErrNotFound", err)
	}
}

func TestDeleteTask(t *testing.T) {
	eng := testEngine(t, nil)
	task, _ := eng.AddTask("Ephemeral")

	if err := eng.DeleteTask(task.UID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, ok := eng.st.Task(task.UID); ok {
		t.Error("task still present after delete")
	}
	if err := eng.DeleteTask(task.UID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteQueuesRemoteOp(t *testing.T) {
	repo := &stalledRepo{}
	eng := testEngine(t, repo)

	cal := model.Calendar{Href: "remote/work/", Name: "Work"}
	if err := eng.st.ApplyPatch(store.Patch{Calendars: []model.Calendar{cal}}); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	remoteTask := model.NewTask("remote/work/")
	remoteTask.Summary = "on the server"
	if err := eng.st.ApplyPatch(store.Patch{Upserts: []model.Task{remoteTask}}); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	if err := eng.DeleteTask(remoteTask.UID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	pending := eng.orch.Journal().PendingUIDs()
	if pending[remoteTask.UID] != remote.OpDelete {
		t.Errorf("pending[%s] = %q, want delete", remoteTask.UID, pending[remoteTask.UID])
	}
}

func TestMoveTask(t *testing.T) {
	repo := &stalledRepo{}
	eng := testEngine(t, repo)

	cal := model.Calendar{Href: "remote/work/", Name: "Work"}
	if err := eng.st.ApplyPatch(store.Patch{Calendars: []model.Calendar{cal}}); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	task, _ := eng.AddTask("Promote me")

	if err := eng.MoveTask(task.UID, "remote/nowhere/"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown calendar err = %v, want ErrNotFound", err)
	}
	if err := eng.MoveTask("no-such-uid", "remote/work/"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown task err = %v, want ErrNotFound", err)
	}

	// Local to remote: the remote has never seen the task, so the queued
	// op is a create.
	if err := eng.MoveTask(task.UID, "remote/work/"); err != nil {
		t.Fatalf("MoveTask failed: %v", err)
	}
	got, _ := eng.st.Task(task.UID)
	if got.CalendarHref != "remote/work/" {
		t.Errorf("CalendarHref = %q", got.CalendarHref)
	}
	if got.Href != "" || got.ETag != "" {
		t.Error("stale sync bookkeeping kept across move")
	}
	pending := eng.orch.Journal().PendingUIDs()
	if pending[task.UID] != remote.OpCreate {
		t.Errorf("pending op = %q, want create", pending[task.UID])
	}
}

func TestUpdateTaskSmartKeepsDescription(t *testing.T) {
	eng := testEngine(t, nil)
	task, _ := eng.AddTask("!1 Old title")
	if err := eng.UpdateTaskDescription(task.UID, "the long form notes"); err != nil {
		t.Fatalf("UpdateTaskDescription failed: %v", err)
	}

	if err := eng.UpdateTaskSmart(task.UID, "!4 #later New title"); err != nil {
		t.Fatalf("UpdateTaskSmart failed: %v", err)
	}
	got, _ := eng.st.Task(task.UID)
	if got.Summary != "New title" || got.Priority != 4 {
		t.Errorf("smart fields not updated: %+v", got)
	}
	if got.Description != "the long form notes" {
		t.Errorf("Description lost: %q", got.Description)
	}

	// The reverse also holds: editing the description keeps smart fields.
	if err := eng.UpdateTaskDescription(task.UID, "rewritten"); err != nil {
		t.Fatalf("UpdateTaskDescription failed: %v", err)
	}
	got, _ = eng.st.Task(task.UID)
	if got.Summary != "New title" || got.Priority != 4 || !got.HasCategory("later") {
		t.Errorf("smart fields lost on description edit: %+v", got)
	}

	if err := eng.UpdateTaskSmart(task.UID, "#only-tags"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty summary err = %v, want ErrInvalidInput", err)
	}
}

func TestAliasValidation(t *testing.T) {
	eng := testEngine(t, nil)

	if err := eng.AddAlias("", []string{"x"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty name err = %v, want ErrInvalidInput", err)
	}
	if err := eng.AddAlias("x", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("no tags err = %v, want ErrInvalidInput", err)
	}
	if err := eng.RemoveAlias("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing alias err = %v, want ErrNotFound", err)
	}

	if err := eng.AddAlias("er", []string{"errand"}); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}
	if err := eng.AddAlias("er", []string{"errand", "urgent"}); err != nil {
		t.Fatalf("overwriting alias failed: %v", err)
	}
	if got := eng.GetConfig().TagAliases["er"]; len(got) != 2 {
		t.Errorf("alias not overwritten: %v", got)
	}
	if err := eng.RemoveAlias("er"); err != nil {
		t.Fatalf("RemoveAlias failed: %v", err)
	}
}

func TestCalendarSettings(t *testing.T) {
	eng := testEngine(t, nil)
	cal := model.Calendar{Href: "remote/work/", Name: "Work"}
	if err := eng.st.ApplyPatch(store.Patch{Calendars: []model.Calendar{cal}}); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	if err := eng.SetCalendarVisibility("remote/nope/", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown calendar err = %v, want ErrNotFound", err)
	}
	if err := eng.SetDefaultCalendar("remote/nope/"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown default err = %v, want ErrNotFound", err)
	}

	if err := eng.SetCalendarVisibility("remote/work/", false); err != nil {
		t.Fatalf("SetCalendarVisibility failed: %v", err)
	}
	for _, e := range eng.GetCalendars() {
		if e.Href == "remote/work/" && e.IsVisible {
			t.Error("hidden calendar still visible")
		}
	}
	if err := eng.SetCalendarVisibility("remote/work/", true); err != nil {
		t.Fatalf("unhide failed: %v", err)
	}
	for _, e := range eng.GetCalendars() {
		if e.Href == "remote/work/" && !e.IsVisible {
			t.Error("calendar still hidden after unhide")
		}
	}
}

func TestGetConfigMasksCredentials(t *testing.T) {
	eng := testEngine(t, nil)
	if err := eng.SaveConfig("https://cal.example.com", "alice", "s3cret", false, false); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info := eng.GetConfig()
	if !info.HasPassword {
		t.Error("HasPassword = false after storing one")
	}
	if info.URL != "https://cal.example.com" || info.Username != "alice" {
		t.Errorf("info = %+v", info)
	}

	// Saving with an empty password keeps the stored credential.
	if err := eng.SaveConfig(info.URL, info.Username, "", true, true); err != nil {
		t.Fatalf("second SaveConfig failed: %v", err)
	}
	if !eng.GetConfig().HasPassword {
		t.Error("empty password cleared the stored credential")
	}
}

func TestIsBlockedUsesDependencies(t *testing.T) {
	eng := testEngine(t, nil)
	dep, _ := eng.AddTask("Pour foundation")
	task, _ := eng.AddTask("Frame walls")

	got, _ := eng.st.Task(task.UID)
	got.Dependencies = []string{dep.UID}
	if err := eng.st.ApplyPatch(store.Patch{Upserts: []model.Task{got}}); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	if !eng.IsBlocked(got) {
		t.Error("task with open dependency not blocked")
	}
	if err := eng.ToggleTask(dep.UID); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	if eng.IsBlocked(got) {
		t.Error("task still blocked after dependency completed")
	}
}

func TestGetViewTasksAllIgnoresHideCompleted(t *testing.T) {
	eng := testEngine(t, nil)
	eng.cfg.HideCompleted = true

	open, _ := eng.AddTask("still open")
	done, _ := eng.AddTask("already finished")
	if err := eng.ToggleTask(done.UID); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}

	filtered := eng.GetViewTasks("", "")
	if len(filtered) != 1 || filtered[0].UID != open.UID {
		t.Errorf("GetViewTasks = %v, want only the open task", filtered)
	}
	all := eng.GetViewTasksAll("", "")
	if len(all) != 2 {
		t.Errorf("GetViewTasksAll returned %d tasks, want 2", len(all))
	}
}

// gatedRepo holds FetchAll open until released, so a test can land a
// mutation while a sync cycle is provably in flight. Pushes succeed.
type gatedRepo struct {
	mu        sync.Mutex
	inventory remote.Inventory
	entered   chan struct{}
	release   chan struct{}
	once      sync.Once
}

func newGatedRepo(inv remote.Inventory) *gatedRepo {
	return &gatedRepo{
		inventory: inv,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (r *gatedRepo) FetchAll(ctx context.Context) (remote.Inventory, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inventory, nil
}

func (r *gatedRepo) Push(ctx context.Context, op remote.Op) error { return nil }

func serverTask(uid, summary string) model.Task {
	return model.Task{
		UID:          uid,
		CalendarHref: "remote/work/",
		Summary:      summary,
		Status:       model.StatusNeedsAction,
		ModifiedAt:   time.Now().Add(-time.Hour),
	}
}

func TestEditDuringSyncSurvivesStaleFetch(t *testing.T) {
	repo := newGatedRepo(remote.Inventory{
		Tasks:     []model.Task{serverTask("r1", "shared task")},
		Calendars: []model.Calendar{{Href: "remote/work/", Name: "Work"}},
	})
	eng := testEngine(t, repo)

	seed := serverTask("r1", "shared task")
	cal := model.Calendar{Href: "remote/work/", Name: "Work"}
	if err := eng.st.ApplyPatch(store.Patch{
		Upserts:   []model.Task{seed},
		Calendars: []model.Calendar{cal},
	}); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := eng.Sync(context.Background()); err != nil {
			t.Errorf("Sync failed: %v", err)
		}
	}()

	// Edit after the fetch started: the fetched copy is now stale for
	// this task and must not win.
	<-repo.entered
	if err := eng.UpdateTaskDescription("r1", "notes added mid-sync"); err != nil {
		t.Fatalf("UpdateTaskDescription failed: %v", err)
	}
	close(repo.release)
	<-done

	got, ok := eng.st.Task("r1")
	if !ok {
		t.Fatal("task gone after sync")
	}
	if got.Description != "notes added mid-sync" {
		t.Errorf("Description = %q, stale fetch clobbered the edit", got.Description)
	}
}

func TestAddDuringSyncKeepsBothSides(t *testing.T) {
	repo := newGatedRepo(remote.Inventory{
		Tasks: []model.Task{
			serverTask("r1", "one"),
			serverTask("r2", "two"),
			serverTask("r3", "three"),
		},
		Calendars: []model.Calendar{{Href: "remote/work/", Name: "Work"}},
	})
	eng := testEngine(t, repo)

	cal := model.Calendar{Href: "remote/work/", Name: "Work"}
	if err := eng.st.ApplyPatch(store.Patch{Calendars: []model.Calendar{cal}}); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	if err := eng.SetDefaultCalendar("remote/work/"); err != nil {
		t.Fatalf("SetDefaultCalendar failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := eng.Sync(context.Background()); err != nil {
			t.Errorf("Sync failed: %v", err)
		}
	}()

	<-repo.entered
	added, err := eng.AddTask("added mid sync")
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	close(repo.release)
	<-done

	// Neither side is lost: the new task survives the merge and the
	// remote tasks all arrive.
	snap := eng.Snapshot()
	if _, ok := snap.Tasks[added.UID]; !ok {
		t.Error("task added during sync was dropped by the merge")
	}
	for _, uid := range []string{"r1", "r2", "r3"} {
		if _, ok := snap.Tasks[uid]; !ok {
			t.Errorf("remote task %s not pulled", uid)
		}
	}
	if len(snap.Tasks) != 4 {
		t.Errorf("got %d tasks, want 4", len(snap.Tasks))
	}
}

func TestSyncEmitsEvents(t *testing.T) {
	repo := &stalledRepo{inventory: remote.Inventory{
		Tasks: []model.Task{{
			UID:          "r1",
			CalendarHref: "remote/work/",
			Summary:      "from the server",
			Status:       model.StatusNeedsAction,
			ModifiedAt:   time.Now().Add(-time.Hour),
		}},
		Calendars: []model.Calendar{{Href: "remote/work/", Name: "Work"}},
	}}
	eng := testEngine(t, repo)

	if _, err := eng.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	var types []EventType
	for len(eng.Events()) > 0 {
		types = append(types, (<-eng.Events()).Type)
	}
	if len(types) != 2 || types[0] != EventSyncStarted || types[1] != EventSyncFinished {
		t.Errorf("events = %v", types)
	}

	if _, ok := eng.st.Task("r1"); !ok {
		t.Error("sync did not pull the remote task")
	}
}
