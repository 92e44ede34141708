package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mattjoyce/missionctl/internal/model"
)

func TestFileStoreEmptyDirReadsEmptyTables(t *testing.T) {
	t.Parallel()

	st, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	tasks, err := st.Tasks()
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty table, got %d tasks", len(tasks))
	}

	if _, err := st.Activities(); err != nil {
		t.Fatalf("Activities: %v", err)
	}
	if _, err := st.Notifications(); err != nil {
		t.Fatalf("Notifications: %v", err)
	}
}

func TestFileStoreRejectsEmptyRoot(t *testing.T) {
	t.Parallel()

	if _, err := NewFileStore("   "); err == nil {
		t.Fatal("expected error for blank root")
	}
}

func TestFileStoreTaskRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	in := []model.Task{
		{
			ID:          "task_1",
			Title:       "Write a blog post about SEO",
			Status:      "inbox",
			AssigneeIDs: []string{"loki"},
			Priority:    "high",
			CreatedAtMs: model.NowMs(),
		},
		{
			ID:     "task_2",
			Title:  "Audit landing pages",
			Status: "assigned",
			Dispatch: &model.DispatchMeta{
				DispatchCount:      2,
				LastDispatchStatus: "dispatched",
				LastAgentID:        "vision",
			},
		},
	}
	if err := st.SaveTasks(in); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	// Table file lands under the root, no temp leftovers.
	if _, err := os.Stat(filepath.Join(dir, "tasks.json")); err != nil {
		t.Fatalf("tasks.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tasks.json.tmp")); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}

	out, err := st.Tasks()
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d tasks", len(out))
	}
	if out[0].ID != "task_1" || out[0].AssigneeIDs[0] != "loki" {
		t.Fatalf("task_1 mangled: %#v", out[0])
	}
	if out[1].Dispatch == nil || out[1].Dispatch.DispatchCount != 2 {
		t.Fatalf("dispatch meta mangled: %#v", out[1].Dispatch)
	}
}

func TestFileStoreFindTask(t *testing.T) {
	t.Parallel()

	st, _ := NewFileStore(t.TempDir())
	if err := st.SaveTasks([]model.Task{{ID: "task_1", Title: "x"}}); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	task, err := st.FindTask("task_1")
	if err != nil {
		t.Fatalf("FindTask: %v", err)
	}
	if task.Title != "x" {
		t.Fatalf("wrong task: %#v", task)
	}

	_, err = st.FindTask("task_ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreUpdateTask(t *testing.T) {
	t.Parallel()

	st, _ := NewFileStore(t.TempDir())
	if err := st.SaveTasks([]model.Task{{ID: "task_1", Title: "before", Status: "inbox"}}); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	err := st.UpdateTask("task_1", func(task *model.Task) {
		task.Status = "assigned"
		task.AssigneeIDs = []string{"friday"}
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	task, _ := st.FindTask("task_1")
	if task.Status != "assigned" || len(task.AssigneeIDs) != 1 {
		t.Fatalf("update not persisted: %#v", task)
	}
	if task.UpdatedAtMs == 0 {
		t.Fatal("UpdatedAtMs not stamped")
	}

	err = st.UpdateTask("task_ghost", func(task *model.Task) {})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreActivitiesRoundTrip(t *testing.T) {
	t.Parallel()

	st, _ := NewFileStore(t.TempDir())
	in := []model.Activity{
		{ID: "evt_1", Type: "task.created", Message: "created", CreatedAtMs: model.NowMs()},
		{ID: "evt_2", Type: "dispatch.dispatched", Message: "sent", Meta: map[string]any{"attempt": 1}},
	}
	if err := st.SaveActivities(in); err != nil {
		t.Fatalf("SaveActivities: %v", err)
	}

	out, err := st.Activities()
	if err != nil {
		t.Fatalf("Activities: %v", err)
	}
	if len(out) != 2 || out[1].Type != "dispatch.dispatched" {
		t.Fatalf("activities mangled: %#v", out)
	}
}

func TestFileStoreNotificationsRoundTrip(t *testing.T) {
	t.Parallel()

	st, _ := NewFileStore(t.TempDir())
	in := []model.Notification{
		{ID: "notif_1", Type: "task.assigned", TargetAgentID: "loki", TaskID: "task_1", Message: "go"},
	}
	if err := st.SaveNotifications(in); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}

	out, err := st.Notifications()
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(out) != 1 || out[0].TargetAgentID != "loki" || out[0].Delivered {
		t.Fatalf("notifications mangled: %#v", out)
	}
}

func TestFileStoreCorruptTable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, _ := NewFileStore(dir)
	if err := os.WriteFile(filepath.Join(dir, "tasks.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := st.Tasks(); err == nil {
		t.Fatal("expected parse error for corrupt table")
	}
}
