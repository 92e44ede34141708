package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mattjoyce/missionctl/internal/events"
	"github.com/mattjoyce/missionctl/internal/model"
	"github.com/mattjoyce/missionctl/internal/store"
)

// stubStrategy fails or succeeds unconditionally and counts deliveries.
type stubStrategy struct {
	name     string
	err      error
	response string
	calls    int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Deliver(_ context.Context, _ model.Task, _ string, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newTestStore(t *testing.T, tasks ...model.Task) *store.FileStore {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := st.SaveTasks(tasks); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	return st
}

func TestDispatchTaskNoAssigneesIsNoOp(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	gw := &stubStrategy{name: "RPC", response: "ok"}
	d := New(st, nil, nil, []Strategy{gw})

	records, err := d.DispatchTask(context.Background(), model.Task{ID: "task_1", Title: "orphan"})
	if err != nil {
		t.Fatalf("DispatchTask: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
	if gw.calls != 0 {
		t.Fatalf("strategy called %d times for assignee-less task", gw.calls)
	}
}

func TestDispatchTaskFansOutToAllAssignees(t *testing.T) {
	t.Parallel()

	task := model.Task{
		ID:          "task_fan",
		Title:       "Prepare launch checklist",
		Status:      "assigned",
		AssigneeIDs: []string{"loki", "vision", "friday"},
	}
	st := newTestStore(t, task)
	gw := &stubStrategy{name: "RPC", response: "delivered"}
	d := New(st, nil, nil, []Strategy{gw})

	records, err := d.DispatchTask(context.Background(), task)
	if err != nil {
		t.Fatalf("DispatchTask: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"loki", "vision", "friday"} {
		rec := records[i]
		if rec.AgentID != want {
			t.Fatalf("record %d: agent %q, want %q", i, rec.AgentID, want)
		}
		if rec.Status != StatusDispatched {
			t.Fatalf("record %d: status %q", i, rec.Status)
		}
		if rec.Attempt != 1 {
			t.Fatalf("record %d: attempt %d", i, rec.Attempt)
		}
	}

	updated, err := st.FindTask("task_fan")
	if err != nil {
		t.Fatalf("FindTask: %v", err)
	}
	if updated.Dispatch == nil || updated.Dispatch.DispatchCount != 3 {
		t.Fatalf("unexpected dispatch meta: %#v", updated.Dispatch)
	}
	if updated.Dispatch.LastAgentID != "friday" {
		t.Fatalf("LastAgentID: %q", updated.Dispatch.LastAgentID)
	}
}

func TestDispatchAllStrategiesFailProducesCombinedError(t *testing.T) {
	t.Parallel()

	task := model.Task{
		ID:          "task_seo",
		Title:       "Write a blog post about SEO",
		Status:      "assigned",
		AssigneeIDs: []string{"loki"},
	}
	st := newTestStore(t, task)
	hub := events.NewHub(50)
	strategies := []Strategy{
		&stubStrategy{name: "RPC", err: errors.New("gateway connect refused")},
		&stubStrategy{name: "CLI", err: errors.New("exec: \"openclaw\": executable file not found in $PATH")},
	}
	d := New(st, hub, nil, strategies)

	records, err := d.DispatchTask(context.Background(), task)
	if err != nil {
		t.Fatalf("DispatchTask: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Status != StatusFailed {
		t.Fatalf("status: %q", rec.Status)
	}
	if !strings.HasPrefix(rec.Error, "RPC: ") || !strings.Contains(rec.Error, " | CLI: ") {
		t.Fatalf("combined error not in RPC | CLI form: %q", rec.Error)
	}

	updated, err := st.FindTask("task_seo")
	if err != nil {
		t.Fatalf("FindTask: %v", err)
	}
	if updated.Dispatch.DispatchCount != 1 {
		t.Fatalf("DispatchCount: %d", updated.Dispatch.DispatchCount)
	}
	if updated.Dispatch.LastDispatchStatus != string(StatusFailed) {
		t.Fatalf("LastDispatchStatus: %q", updated.Dispatch.LastDispatchStatus)
	}
	if updated.Status != "assigned" {
		t.Fatalf("failed dispatch must not advance status, got %q", updated.Status)
	}

	var sawStarted, sawFailed bool
	for _, ev := range hub.Recent(10) {
		switch ev.Type {
		case "dispatch.started":
			sawStarted = true
		case "dispatch.failed":
			sawFailed = true
		case "dispatch.completed":
			t.Fatal("unexpected dispatch.completed event")
		}
	}
	if !sawStarted || !sawFailed {
		t.Fatalf("missing events: started=%v failed=%v", sawStarted, sawFailed)
	}
}

func TestDispatchFallsBackToSecondStrategy(t *testing.T) {
	t.Parallel()

	task := model.Task{
		ID:          "task_fb",
		Title:       "Draft release notes",
		Status:      "inbox",
		AssigneeIDs: []string{"loki"},
	}
	st := newTestStore(t, task)
	gw := &stubStrategy{name: "RPC", err: errors.New("session not found")}
	cli := &stubStrategy{name: "CLI", response: "cli_dispatched"}
	d := New(st, nil, nil, []Strategy{gw, cli})

	rec := d.DispatchToAgent(context.Background(), task, "loki", 1)
	if rec.Status != StatusDispatched {
		t.Fatalf("status: %q (error %q)", rec.Status, rec.Error)
	}
	if rec.Response != "cli_dispatched" {
		t.Fatalf("response: %q", rec.Response)
	}
	if gw.calls != 1 || cli.calls != 1 {
		t.Fatalf("strategy calls: gw=%d cli=%d", gw.calls, cli.calls)
	}

	updated, err := st.FindTask("task_fb")
	if err != nil {
		t.Fatalf("FindTask: %v", err)
	}
	if updated.Status != "assigned" {
		t.Fatalf("successful dispatch should promote inbox to assigned, got %q", updated.Status)
	}
}

func TestDispatchStopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	task := model.Task{ID: "task_first", Title: "x", Status: "assigned", AssigneeIDs: []string{"vision"}}
	st := newTestStore(t, task)
	gw := &stubStrategy{name: "RPC", response: "ok"}
	cli := &stubStrategy{name: "CLI", response: "cli_dispatched"}
	d := New(st, nil, nil, []Strategy{gw, cli})

	rec := d.DispatchToAgent(context.Background(), task, "vision", 1)
	if rec.Status != StatusDispatched {
		t.Fatalf("status: %q", rec.Status)
	}
	if cli.calls != 0 {
		t.Fatalf("fallback strategy called after primary success")
	}
}

func TestRetryDispatchIncrementsAttempt(t *testing.T) {
	t.Parallel()

	task := model.Task{
		ID:          "task_retry",
		Title:       "Audit keywords",
		Status:      "assigned",
		AssigneeIDs: []string{"vision"},
	}
	st := newTestStore(t, task)
	gw := &stubStrategy{name: "RPC", response: "ok"}
	d := New(st, nil, nil, []Strategy{gw})

	first, err := d.RetryDispatch(context.Background(), "task_retry", "")
	if err != nil {
		t.Fatalf("RetryDispatch 1: %v", err)
	}
	if first[0].Attempt != 1 {
		t.Fatalf("first attempt: %d", first[0].Attempt)
	}

	second, err := d.RetryDispatch(context.Background(), "task_retry", "")
	if err != nil {
		t.Fatalf("RetryDispatch 2: %v", err)
	}
	if second[0].Attempt != 2 {
		t.Fatalf("second attempt: %d", second[0].Attempt)
	}

	third, err := d.RetryDispatch(context.Background(), "task_retry", "vision")
	if err != nil {
		t.Fatalf("RetryDispatch 3: %v", err)
	}
	if len(third) != 1 || third[0].Attempt != 3 {
		t.Fatalf("targeted retry: %#v", third)
	}
}

func TestRetryDispatchUnknownTask(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	d := New(st, nil, nil, []Strategy{&stubStrategy{name: "RPC", response: "ok"}})

	_, err := d.RetryDispatch(context.Background(), "task_missing", "")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatchWritesNotificationAndActivity(t *testing.T) {
	t.Parallel()

	task := model.Task{ID: "task_note", Title: "Plan newsletter", Status: "assigned", AssigneeIDs: []string{"pepper"}}
	st := newTestStore(t, task)
	d := New(st, nil, nil, []Strategy{&stubStrategy{name: "RPC", response: "ok"}})

	d.DispatchToAgent(context.Background(), task, "pepper", 1)

	notes, err := st.Notifications()
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notes))
	}
	if notes[0].TargetAgentID != "pepper" || notes[0].Type != "task.assigned" || notes[0].Delivered {
		t.Fatalf("unexpected notification: %#v", notes[0])
	}

	activities, err := st.Activities()
	if err != nil {
		t.Fatalf("Activities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(activities))
	}
	if activities[0].Type != "dispatch.dispatched" {
		t.Fatalf("activity type: %q", activities[0].Type)
	}
	if !strings.Contains(activities[0].Message, "@pepper") {
		t.Fatalf("activity message: %q", activities[0].Message)
	}
}

func TestDispatchHistoryIsBounded(t *testing.T) {
	t.Parallel()

	task := model.Task{ID: "task_hist", Title: "x", Status: "assigned", AssigneeIDs: []string{"loki"}}
	st := newTestStore(t, task)
	d := New(st, nil, nil, []Strategy{&stubStrategy{name: "RPC", response: "ok"}})

	for i := 0; i < model.MaxDispatchHistory+5; i++ {
		d.DispatchToAgent(context.Background(), task, "loki", i+1)
	}

	updated, err := st.FindTask("task_hist")
	if err != nil {
		t.Fatalf("FindTask: %v", err)
	}
	if len(updated.Dispatch.History) != model.MaxDispatchHistory {
		t.Fatalf("history length: %d", len(updated.Dispatch.History))
	}
	last := updated.Dispatch.History[len(updated.Dispatch.History)-1]
	if last.Attempt != model.MaxDispatchHistory+5 {
		t.Fatalf("history dropped newest entries, last attempt %d", last.Attempt)
	}
}

func TestLogReturnsMostRecentFirst(t *testing.T) {
	t.Parallel()

	st := newTestStore(t,
		model.Task{ID: "task_a", Title: "a", Status: "assigned", AssigneeIDs: []string{"loki"}},
		model.Task{ID: "task_b", Title: "b", Status: "assigned", AssigneeIDs: []string{"loki"}},
	)
	d := New(st, nil, nil, []Strategy{&stubStrategy{name: "RPC", response: "ok"}})

	taskA, _ := st.FindTask("task_a")
	taskB, _ := st.FindTask("task_b")
	d.DispatchToAgent(context.Background(), taskA, "loki", 1)
	d.DispatchToAgent(context.Background(), taskB, "loki", 1)

	recent := d.Log(10)
	if len(recent) != 2 {
		t.Fatalf("Log: got %d records", len(recent))
	}
	if recent[0].TaskID != "task_b" || recent[1].TaskID != "task_a" {
		t.Fatalf("Log order: %q, %q", recent[0].TaskID, recent[1].TaskID)
	}

	forA := d.ForTask("task_a")
	if len(forA) != 1 || forA[0].TaskID != "task_a" {
		t.Fatalf("ForTask: %#v", forA)
	}
}

func TestRecordTimeout(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	hub := events.NewHub(10)
	d := New(st, hub, nil, nil)

	rec := d.RecordTimeout("task_stuck", "task in progress for 2h0m0s with no update")
	if rec.Status != StatusTimeout {
		t.Fatalf("status: %q", rec.Status)
	}
	if rec.Error == "" || rec.AgentID != "" {
		t.Fatalf("unexpected record: %#v", rec)
	}

	events := hub.Recent(1)
	if len(events) != 1 || events[0].Type != "dispatch.timeout" {
		t.Fatalf("expected dispatch.timeout event, got %#v", events)
	}

	if got := d.ForTask("task_stuck"); len(got) != 1 {
		t.Fatalf("timeout record not in log: %d", len(got))
	}
}

func TestSendAgentMessageWithoutGateway(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	d := New(st, nil, nil, nil)

	res := d.SendAgentMessage(context.Background(), "loki", "hello")
	if res.OK {
		t.Fatal("expected failure without gateway")
	}
	if res.Error != "gateway not configured" {
		t.Fatalf("error: %q", res.Error)
	}
}

func TestRingLogWrapsAtCapacity(t *testing.T) {
	t.Parallel()

	l := newRingLog(3)
	for i := 0; i < 5; i++ {
		l.append(Record{ID: fmt.Sprintf("d%d", i), TaskID: "t"})
	}

	recent := l.recent(10)
	if len(recent) != 3 {
		t.Fatalf("recent: got %d", len(recent))
	}
	if recent[0].ID != "d4" || recent[2].ID != "d2" {
		t.Fatalf("ring order: %q .. %q", recent[0].ID, recent[2].ID)
	}
}

func TestClipNeverSplitsRunes(t *testing.T) {
	t.Parallel()

	// Messages open with an emoji; truncation must count runes, not bytes.
	got := clip("🎯 "+strings.Repeat("x", 10), 4)
	if got != "🎯 xx" {
		t.Fatalf("clip: %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("clip produced invalid UTF-8: %q", got)
	}

	if clip("short", 10) != "short" {
		t.Fatalf("clip grew a short string")
	}
	if clip("🎯🎯🎯", 2) != "🎯🎯" {
		t.Fatalf("clip miscounted runes")
	}
}
