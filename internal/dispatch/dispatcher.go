// Package dispatch turns a task-assignment decision into a delivered
// instruction: it builds the message, walks an ordered chain of delivery
// strategies, records the outcome on the task, and broadcasts events. A
// failure is never silently dropped; it lands in the record, the activity
// feed and a dispatch.failed event.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattjoyce/missionctl/internal/events"
	"github.com/mattjoyce/missionctl/internal/gateway"
	"github.com/mattjoyce/missionctl/internal/log"
	"github.com/mattjoyce/missionctl/internal/model"
	"github.com/mattjoyce/missionctl/internal/store"
)

// Dispatcher delivers task instructions to agents.
type Dispatcher struct {
	store      store.Store
	hub        *events.Hub
	gw         GatewaySender
	strategies []Strategy
	records    *ringLog
	logger     *slog.Logger
}

// New creates a Dispatcher. The strategies are tried in order for every
// delivery attempt.
func New(st store.Store, hub *events.Hub, gw GatewaySender, strategies []Strategy) *Dispatcher {
	return &Dispatcher{
		store:      st,
		hub:        hub,
		gw:         gw,
		strategies: strategies,
		records:    newRingLog(logCapacity),
		logger:     log.WithComponent("dispatch"),
	}
}

// DispatchTask fans a task out to every assigned agent sequentially,
// producing one record per assignee. A task with no assignees is a no-op,
// not an error.
func (d *Dispatcher) DispatchTask(ctx context.Context, task model.Task) ([]Record, error) {
	if len(task.AssigneeIDs) == 0 {
		d.logger.Info("dispatch skipped", "task", task.ID, "reason", "no_assignees")
		return nil, nil
	}

	records := make([]Record, 0, len(task.AssigneeIDs))
	for _, agentID := range task.AssigneeIDs {
		records = append(records, d.DispatchToAgent(ctx, task, agentID, 1))
	}
	return records, nil
}

// RetryDispatch re-dispatches a task, to one agent or to all assignees,
// with the attempt number seeded from the task's existing dispatch count.
// Returns store.ErrNotFound for an unknown task id.
func (d *Dispatcher) RetryDispatch(ctx context.Context, taskID, agentID string) ([]Record, error) {
	task, err := d.store.FindTask(taskID)
	if err != nil {
		return nil, err
	}

	attempt := 1
	if task.Dispatch != nil {
		attempt = task.Dispatch.DispatchCount + 1
	}

	if agentID != "" {
		return []Record{d.DispatchToAgent(ctx, task, agentID, attempt)}, nil
	}

	records := make([]Record, 0, len(task.AssigneeIDs))
	for _, aid := range task.AssigneeIDs {
		records = append(records, d.DispatchToAgent(ctx, task, aid, attempt))
	}
	return records, nil
}

// DispatchToAgent performs one delivery attempt to one agent and records the
// outcome. It always returns a record; delivery failure is expressed in the
// record's status and error, never as a Go error.
func (d *Dispatcher) DispatchToAgent(ctx context.Context, task model.Task, agentID string, attempt int) Record {
	message := BuildTaskMessage(task, agentID)
	rec := newRecord(task.ID, agentID, message, attempt)
	logger := log.WithTask(rec.TaskID).With("agent", agentID, "attempt", attempt)
	logger.Info("dispatch start")

	d.emit("dispatch.started", rec)
	d.writeNotification(task, agentID)

	rec.Status = StatusDispatching
	var failures []string
	for _, strat := range d.strategies {
		resp, err := strat.Deliver(ctx, task, agentID, message)
		if err != nil {
			logger.Warn("delivery strategy failed", "strategy", strat.Name(), "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", strat.Name(), err))
			continue
		}
		rec.Status = StatusDispatched
		rec.DispatchedAtMs = model.NowMs()
		rec.Response = clip(resp, responsePreview)
		logger.Info("dispatch success", "via", strat.Name())
		break
	}
	if rec.Status != StatusDispatched {
		rec.Status = StatusFailed
		rec.Error = strings.Join(failures, " | ")
		logger.Error("dispatch failed", "error", rec.Error)
	}
	rec.CompletedAtMs = model.NowMs()

	d.records.append(rec)
	d.updateTaskMeta(rec)
	d.recordActivity(rec)

	if rec.Status == StatusDispatched {
		d.emit("dispatch.completed", rec)
	} else {
		d.emit("dispatch.failed", rec)
	}
	return rec
}

// SendAgentMessage delivers a direct message to an agent's heartbeat session
// with immediate delivery. Failures are reported in the result, not as an
// error.
func (d *Dispatcher) SendAgentMessage(ctx context.Context, agentID, message string) MessageResult {
	if d.gw == nil {
		return MessageResult{Error: "gateway not configured"}
	}
	logger := log.WithAgent(agentID)
	payload, err := d.gw.SendMessage(ctx, message, gateway.HeartbeatSessionKey(agentID), true)
	if err != nil {
		logger.Error("agent message failed", "error", err)
		return MessageResult{Error: err.Error()}
	}
	logger.Info("agent message sent")
	return MessageResult{OK: true, Result: clip(string(payload), messagePreview)}
}

// MessageResult is the outcome of a direct agent message.
type MessageResult struct {
	OK     bool   `json:"ok"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Log returns recent dispatch records, most recent first.
func (d *Dispatcher) Log(limit int) []Record {
	return d.records.recent(limit)
}

// ForTask returns dispatch records for one task, oldest first.
func (d *Dispatcher) ForTask(taskID string) []Record {
	return d.records.forTask(taskID)
}

// RecordTimeout appends a synthetic timeout record for a stale task and
// broadcasts it. Used by the orchestrator scan; the delivery path never
// produces this status.
func (d *Dispatcher) RecordTimeout(taskID, reason string) Record {
	rec := newRecord(taskID, "", "", 1)
	rec.Status = StatusTimeout
	rec.Error = reason
	rec.CompletedAtMs = model.NowMs()
	d.records.append(rec)
	d.emit("dispatch.timeout", rec)
	return rec
}

// writeNotification appends an undelivered notification so the agent sees
// the task on its next heartbeat file scan. The table keeps every
// undelivered entry plus the last 50 delivered ones.
func (d *Dispatcher) writeNotification(task model.Task, agentID string) {
	notifications, err := d.store.Notifications()
	if err != nil {
		d.logger.Error("notification read failed", "agent", agentID, "error", err)
		return
	}

	notifications = append(notifications, model.Notification{
		ID:            newID("notif"),
		Type:          "task.assigned",
		TargetAgentID: agentID,
		TaskID:        task.ID,
		Title:         task.Title,
		Message:       fmt.Sprintf("You have been assigned task: %s. Check mission_control/tasks.json for details.", task.Title),
		Priority:      task.Priority,
		CreatedAtMs:   model.NowMs(),
	})

	var undelivered, delivered []model.Notification
	for _, n := range notifications {
		if n.Delivered {
			delivered = append(delivered, n)
		} else {
			undelivered = append(undelivered, n)
		}
	}
	if len(delivered) > model.MaxDeliveredNotices {
		delivered = delivered[len(delivered)-model.MaxDeliveredNotices:]
	}

	if err := d.store.SaveNotifications(append(undelivered, delivered...)); err != nil {
		d.logger.Error("notification write failed", "agent", agentID, "error", err)
		return
	}
	d.logger.Info("notification written", "agent", agentID, "task", task.ID)
}

// updateTaskMeta folds the attempt into the task's dispatch sub-record and
// promotes a not-yet-started task to assigned on successful delivery.
func (d *Dispatcher) updateTaskMeta(rec Record) {
	err := d.store.UpdateTask(rec.TaskID, func(t *model.Task) {
		if t.Dispatch == nil {
			t.Dispatch = &model.DispatchMeta{}
		}
		t.Dispatch.LastDispatchAtMs = rec.DispatchedAtMs
		t.Dispatch.LastDispatchStatus = string(rec.Status)
		t.Dispatch.DispatchCount++
		t.Dispatch.LastAgentID = rec.AgentID
		t.Dispatch.LastError = rec.Error

		t.Dispatch.History = append(t.Dispatch.History, rec.attemptEntry())
		if len(t.Dispatch.History) > model.MaxDispatchHistory {
			t.Dispatch.History = t.Dispatch.History[len(t.Dispatch.History)-model.MaxDispatchHistory:]
		}

		if (t.Status == "inbox" || t.Status == "assigned") && rec.Status == StatusDispatched {
			t.Status = "assigned"
		}
	})
	if err != nil {
		d.logger.Error("task meta update failed", "task", rec.TaskID, "error", err)
	}
}

// recordActivity appends a human-readable entry to the activity feed.
func (d *Dispatcher) recordActivity(rec Record) {
	activities, err := d.store.Activities()
	if err != nil {
		d.logger.Error("activity read failed", "error", err)
		return
	}

	marker := "✅"
	if rec.Status != StatusDispatched {
		marker = "❌"
	}
	activities = append(activities, model.Activity{
		ID:          newID("evt"),
		Type:        "dispatch." + string(rec.Status),
		Message:     fmt.Sprintf("%s Task dispatched to @%s: %s", marker, rec.AgentID, rec.TaskID),
		TaskID:      rec.TaskID,
		AgentID:     rec.AgentID,
		CreatedAtMs: model.NowMs(),
		Meta: map[string]any{
			"dispatchId": rec.ID,
			"attempt":    rec.Attempt,
			"error":      rec.Error,
		},
	})
	if len(activities) > model.MaxActivities {
		activities = activities[len(activities)-model.MaxActivities:]
	}

	if err := d.store.SaveActivities(activities); err != nil {
		d.logger.Error("activity write failed", "error", err)
	}
}

func (d *Dispatcher) emit(eventType string, rec Record) {
	if d.hub == nil {
		return
	}
	d.hub.Publish(eventType, rec)
}
