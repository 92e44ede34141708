// Package model defines the record shapes shared between the engine and the
// flat-file record store. JSON tags are camelCase to match the on-disk
// tables, which are also read by the agents themselves.
package model

import "time"

// Bounds applied when mutating task sub-records. Agents and dashboards read
// these files directly, so the tables must never grow without limit.
const (
	MaxDispatchHistory  = 20
	MaxStateHistory     = 50
	MaxEditHistory      = 30
	MaxActivities       = 500
	MaxDeliveredNotices = 50
)

// Task is a unit of work assigned to one or more agents. The engine owns the
// dispatch sub-record, stateHistory and result; everything else belongs to
// the routing layer.
type Task struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	AssigneeIDs []string       `json:"assigneeIds,omitempty"`
	Priority    string         `json:"priority,omitempty"`
	Dispatch    *DispatchMeta  `json:"dispatch,omitempty"`
	StateHist   []Transition   `json:"stateHistory,omitempty"`
	EditHist    []EditRevision `json:"editHistory,omitempty"`
	Result      *TaskResult    `json:"result,omitempty"`
	CreatedAtMs int64          `json:"createdAtMs,omitempty"`
	UpdatedAtMs int64          `json:"updatedAtMs,omitempty"`
}

// DispatchMeta aggregates delivery attempts for one task.
type DispatchMeta struct {
	LastDispatchAtMs   int64             `json:"lastDispatchAtMs,omitempty"`
	LastDispatchStatus string            `json:"lastDispatchStatus,omitempty"`
	DispatchCount      int               `json:"dispatchCount"`
	LastAgentID        string            `json:"lastAgentId,omitempty"`
	LastError          string            `json:"lastError,omitempty"`
	History            []DispatchAttempt `json:"history,omitempty"`
}

// DispatchAttempt is one entry in a task's bounded dispatch history.
type DispatchAttempt struct {
	ID      string `json:"id"`
	AgentID string `json:"agentId"`
	Status  string `json:"status"`
	Attempt int    `json:"attempt"`
	AtMs    int64  `json:"atMs"`
	Error   string `json:"error,omitempty"`
}

// Transition is one recorded lifecycle state change.
type Transition struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
	AtMs   int64  `json:"atMs"`
}

// EditRevision is one entry in a task's bounded edit history. It records the
// value a field held before the edit.
type EditRevision struct {
	Field    string `json:"field"`
	Previous string `json:"previous,omitempty"`
	Actor    string `json:"actor,omitempty"`
	AtMs     int64  `json:"atMs"`
}

// TaskResult holds a worker's stored output for supervisor review.
type TaskResult struct {
	Content       string         `json:"resultContent"`
	Summary       string         `json:"resultSummary,omitempty"`
	Files         []string       `json:"resultFiles,omitempty"`
	Metadata      map[string]any `json:"resultMetadata,omitempty"`
	ExecutionLog  string         `json:"executionLog,omitempty"`
	CompletedAtMs int64          `json:"completedAtMs"`
}

// Notification is a file-based delivery hint an agent picks up on its next
// heartbeat scan.
type Notification struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	TargetAgentID string `json:"targetAgentId"`
	TaskID        string `json:"taskId"`
	Title         string `json:"title,omitempty"`
	Message       string `json:"message"`
	Priority      string `json:"priority,omitempty"`
	Delivered     bool   `json:"delivered"`
	CreatedAtMs   int64  `json:"createdAtMs"`
}

// Activity is one entry in the human-readable activity feed.
type Activity struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Message     string         `json:"message"`
	TaskID      string         `json:"taskId,omitempty"`
	AgentID     string         `json:"agentId,omitempty"`
	CreatedAtMs int64          `json:"createdAtMs"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// NowMs returns the current wall clock in unix milliseconds, the timestamp
// unit used throughout the tables.
func NowMs() int64 {
	return time.Now().UnixMilli()
}
