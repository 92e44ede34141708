package supervisor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mattjoyce/missionctl/internal/events"
	"github.com/mattjoyce/missionctl/internal/model"
	"github.com/mattjoyce/missionctl/internal/store"
)

func newTestService(t *testing.T, tasks ...model.Task) (*Service, *store.FileStore, *events.Hub) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := st.SaveTasks(tasks); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	hub := events.NewHub(50)
	return NewService(DefaultRegistry(), st, hub), st, hub
}

func TestRecordStateTransitionAppendsHistory(t *testing.T) {
	t.Parallel()

	svc, st, hub := newTestService(t, model.Task{ID: "task_1", Title: "x", Status: StateInbox})

	if err := svc.RecordStateTransition("task_1", StateInbox, StatePending, "jarvis", "triaged"); err != nil {
		t.Fatalf("RecordStateTransition: %v", err)
	}

	task, err := st.FindTask("task_1")
	if err != nil {
		t.Fatalf("FindTask: %v", err)
	}
	if len(task.StateHist) != 1 {
		t.Fatalf("history length: %d", len(task.StateHist))
	}
	tr := task.StateHist[0]
	if tr.From != StateInbox || tr.To != StatePending || tr.Actor != "jarvis" || tr.Reason != "triaged" {
		t.Fatalf("unexpected transition: %#v", tr)
	}

	recent := hub.Recent(1)
	if len(recent) != 1 || recent[0].Type != "task.transition" {
		t.Fatalf("expected task.transition event, got %#v", recent)
	}
}

func TestRecordStateTransitionInvalidMoveStillApplied(t *testing.T) {
	t.Parallel()

	svc, st, _ := newTestService(t, model.Task{ID: "task_1", Title: "x", Status: StateArchived})

	// Archived is terminal in the table, but agents write status files
	// directly, so the recorder must follow anyway.
	if err := svc.RecordStateTransition("task_1", StateArchived, StateInbox, "agent", ""); err != nil {
		t.Fatalf("RecordStateTransition: %v", err)
	}

	task, _ := st.FindTask("task_1")
	if len(task.StateHist) != 1 || task.StateHist[0].To != StateInbox {
		t.Fatalf("invalid transition not recorded: %#v", task.StateHist)
	}
}

func TestRecordStateTransitionHistoryBounded(t *testing.T) {
	t.Parallel()

	svc, st, _ := newTestService(t, model.Task{ID: "task_1", Title: "x", Status: StateRunning})

	for i := 0; i < model.MaxStateHistory+10; i++ {
		if err := svc.RecordStateTransition("task_1", StateRunning, StateRunning, "agent", fmt.Sprintf("tick %d", i)); err != nil {
			t.Fatalf("RecordStateTransition %d: %v", i, err)
		}
	}

	task, _ := st.FindTask("task_1")
	if len(task.StateHist) != model.MaxStateHistory {
		t.Fatalf("history length: %d", len(task.StateHist))
	}
	last := task.StateHist[len(task.StateHist)-1]
	if last.Reason != fmt.Sprintf("tick %d", model.MaxStateHistory+9) {
		t.Fatalf("newest entry trimmed: %q", last.Reason)
	}
}

func TestRecordStateTransitionUnknownTask(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	if err := svc.RecordStateTransition("task_missing", StateInbox, StatePending, "api", ""); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestStoreResultAndReadBack(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, model.Task{ID: "task_1", Title: "x", Status: StateRunning})

	stored, err := svc.StoreResult("task_1", model.TaskResult{
		Content: "final draft",
		Summary: "800 word post",
	})
	if err != nil {
		t.Fatalf("StoreResult: %v", err)
	}
	if stored.CompletedAtMs == 0 {
		t.Fatal("CompletedAtMs not defaulted")
	}

	got, err := svc.Result("task_1")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if got == nil || got.Content != "final draft" || got.Summary != "800 word post" {
		t.Fatalf("unexpected result: %#v", got)
	}
}

func TestResultNilWhenAbsent(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, model.Task{ID: "task_1", Title: "x", Status: StateInbox})

	got, err := svc.Result("task_1")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result, got %#v", got)
	}

	if _, err := svc.Result("task_missing"); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestRecordDelegationMirrorsActivity(t *testing.T) {
	t.Parallel()

	svc, st, _ := newTestService(t, model.Task{ID: "task_1", Title: "x", Status: StateAnalyzing})

	d := NewDelegation("task_1", "jarvis", "loki", "matched skills: writing, blog")
	if d.State != StateDelegated || d.Iteration != 1 {
		t.Fatalf("NewDelegation defaults: %#v", d)
	}
	svc.RecordDelegation(d)

	activities, err := st.Activities()
	if err != nil {
		t.Fatalf("Activities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(activities))
	}
	if activities[0].Type != "task.delegated" || !strings.Contains(activities[0].Message, "@loki") {
		t.Fatalf("unexpected activity: %#v", activities[0])
	}
}

func TestDelegationLogOrdering(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, model.Task{ID: "task_1", Title: "x", Status: StateAnalyzing})

	for i := 0; i < 3; i++ {
		d := NewDelegation("task_1", "jarvis", "loki", fmt.Sprintf("round %d", i))
		d.Iteration = i + 1
		svc.RecordDelegation(d)
	}

	log := svc.DelegationLog(2)
	if len(log) != 2 {
		t.Fatalf("DelegationLog(2): got %d", len(log))
	}
	if log[0].Iteration != 3 || log[1].Iteration != 2 {
		t.Fatalf("DelegationLog order: iterations %d, %d", log[0].Iteration, log[1].Iteration)
	}

	forTask := svc.DelegationsForTask("task_1")
	if len(forTask) != 3 {
		t.Fatalf("DelegationsForTask: got %d", len(forTask))
	}
	if forTask[0].Iteration != 1 || forTask[2].Iteration != 3 {
		t.Fatalf("insertion order broken: %d .. %d", forTask[0].Iteration, forTask[2].Iteration)
	}

	if got := svc.DelegationsForTask("task_other"); got != nil {
		t.Fatalf("unrelated task: %#v", got)
	}
}
