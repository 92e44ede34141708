package supervisor

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mattjoyce/missionctl/internal/events"
	"github.com/mattjoyce/missionctl/internal/log"
	"github.com/mattjoyce/missionctl/internal/model"
	"github.com/mattjoyce/missionctl/internal/store"
)

// delegationLogCapacity bounds the in-memory delegation ring.
const delegationLogCapacity = 500

// Delegation records one supervisor decision to hand a task to a worker,
// including the approval/rework iteration it belongs to. Like dispatch
// records, delegations reference tasks by id only.
type Delegation struct {
	ID            string   `json:"id"`
	TaskID        string   `json:"taskId"`
	SupervisorID  string   `json:"supervisorId"`
	WorkerID      string   `json:"workerId"`
	Reason        string   `json:"reason"`
	SkillsMatched []string `json:"skillsMatched,omitempty"`
	State         string   `json:"state"`
	Feedback      string   `json:"feedback,omitempty"`
	Iteration     int      `json:"iteration"`
	CreatedAtMs   int64    `json:"createdAtMs"`
}

// NewDelegation creates a delegation record with generated id and timestamp.
func NewDelegation(taskID, supervisorID, workerID, reason string) Delegation {
	return Delegation{
		ID:           newID("dlg"),
		TaskID:       taskID,
		SupervisorID: supervisorID,
		WorkerID:     workerID,
		Reason:       reason,
		State:        StateDelegated,
		Iteration:    1,
		CreatedAtMs:  model.NowMs(),
	}
}

// Service ties the registry and state machine to the record store and event
// bus: it records transitions and delegations and stores worker results.
type Service struct {
	registry *Registry
	store    store.Store
	hub      *events.Hub
	logger   *slog.Logger

	mu          sync.Mutex
	delegations []Delegation
	start       int
	size        int
}

// NewService creates the supervisor service around an immutable registry.
func NewService(registry *Registry, st store.Store, hub *events.Hub) *Service {
	return &Service{
		registry:    registry,
		store:       st,
		hub:         hub,
		logger:      log.WithComponent("supervisor"),
		delegations: make([]Delegation, delegationLogCapacity),
	}
}

// Registry exposes the capability snapshot.
func (s *Service) Registry() *Registry {
	return s.registry
}

// RecordStateTransition validates from → to, logs a warning when the move is
// not in the table, and appends it to the task's bounded transition history
// regardless of the validation outcome.
func (s *Service) RecordStateTransition(taskID, from, to, actor, reason string) error {
	if !ValidateTransition(from, to) {
		s.logger.Warn("invalid state transition applied", "task", taskID, "from", from, "to", to, "actor", actor)
	}

	err := s.store.UpdateTask(taskID, func(t *model.Task) {
		t.StateHist = append(t.StateHist, model.Transition{
			From:   from,
			To:     to,
			Actor:  actor,
			Reason: reason,
			AtMs:   model.NowMs(),
		})
		if len(t.StateHist) > model.MaxStateHistory {
			t.StateHist = t.StateHist[len(t.StateHist)-model.MaxStateHistory:]
		}
	})
	if err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.Publish("task.transition", map[string]any{
			"taskId": taskID,
			"from":   from,
			"to":     to,
			"actor":  actor,
		})
	}
	return nil
}

// StoreResult upserts the task's result field and returns the stored value.
// Returns store.ErrNotFound for an unknown task id.
func (s *Service) StoreResult(taskID string, result model.TaskResult) (model.TaskResult, error) {
	if result.CompletedAtMs == 0 {
		result.CompletedAtMs = model.NowMs()
	}
	err := s.store.UpdateTask(taskID, func(t *model.Task) {
		t.Result = &result
	})
	if err != nil {
		return model.TaskResult{}, err
	}
	s.logger.Info("result stored", "task", taskID, "content_len", len(result.Content))
	return result, nil
}

// Result returns a task's stored result, or nil when none exists. Unknown
// task ids yield store.ErrNotFound.
func (s *Service) Result(taskID string) (*model.TaskResult, error) {
	task, err := s.store.FindTask(taskID)
	if err != nil {
		return nil, err
	}
	return task.Result, nil
}

// RecordDelegation appends to the bounded delegation ring and mirrors the
// decision into the activity feed.
func (s *Service) RecordDelegation(d Delegation) {
	s.mu.Lock()
	capacity := len(s.delegations)
	if s.size < capacity {
		s.delegations[(s.start+s.size)%capacity] = d
		s.size++
	} else {
		s.delegations[s.start] = d
		s.start = (s.start + 1) % capacity
	}
	s.mu.Unlock()

	activities, err := s.store.Activities()
	if err != nil {
		s.logger.Error("delegation activity read failed", "error", err)
		return
	}
	activities = append(activities, model.Activity{
		ID:          newID("evt"),
		Type:        "task.delegated",
		Message:     fmt.Sprintf("📋 Supervisor delegated task to @%s: %s", d.WorkerID, d.Reason),
		TaskID:      d.TaskID,
		AgentID:     d.WorkerID,
		CreatedAtMs: model.NowMs(),
		Meta:        map[string]any{"delegationId": d.ID, "iteration": d.Iteration},
	})
	if len(activities) > model.MaxActivities {
		activities = activities[len(activities)-model.MaxActivities:]
	}
	if err := s.store.SaveActivities(activities); err != nil {
		s.logger.Error("delegation activity write failed", "error", err)
	}
}

// DelegationLog returns recent delegations, most recent first.
func (s *Service) DelegationLog(limit int) []Delegation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > s.size {
		limit = s.size
	}
	out := make([]Delegation, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, s.delegations[(s.start+s.size-1-i)%len(s.delegations)])
	}
	return out
}

// DelegationsForTask returns delegations for one task in insertion order.
func (s *Service) DelegationsForTask(taskID string) []Delegation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Delegation
	for i := 0; i < s.size; i++ {
		d := s.delegations[(s.start+i)%len(s.delegations)]
		if d.TaskID == taskID {
			out = append(out, d)
		}
	}
	return out
}

func newID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:12]
}
