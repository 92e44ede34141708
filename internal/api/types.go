package api

import "encoding/json"

// CreateTaskRequest is the JSON body for POST /api/tasks.
type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	AssigneeIDs []string `json:"assigneeIds,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// PatchTaskRequest is the JSON body for PATCH /api/tasks/{taskID}. Nil
// pointers leave the field untouched.
type PatchTaskRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	AssigneeIDs *[]string `json:"assigneeIds,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// DispatchRequest is the optional JSON body for POST /api/dispatch/{taskID}
// and its retry variant.
type DispatchRequest struct {
	AgentID string `json:"agentId,omitempty"`
}

// DelegateRequest is the optional JSON body for POST /api/tasks/{taskID}/delegate.
type DelegateRequest struct {
	WorkerID string `json:"workerId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// MessageRequest is the JSON body for POST /api/agents/{agentID}/message.
type MessageRequest struct {
	Message string `json:"message"`
}

// StoreResultRequest is the JSON body for POST /api/tasks/{taskID}/result.
type StoreResultRequest struct {
	Content      string         `json:"resultContent"`
	Summary      string         `json:"summary,omitempty"`
	Files        []string       `json:"files,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ExecutionLog string         `json:"executionLog,omitempty"`
}

// MatchRequest is the JSON body for POST /api/match.
type MatchRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// MatchResponse is returned by POST /api/match.
type MatchResponse struct {
	AgentID string   `json:"agentId"`
	Skills  []string `json:"skills,omitempty"`
}

// AgentInfo describes one registry entry in GET /api/agents.
type AgentInfo struct {
	ID           string   `json:"id"`
	Role         string   `json:"role"`
	Skills       []string `json:"skills,omitempty"`
	IsSupervisor bool     `json:"isSupervisor,omitempty"`
}

// GatewayHealthResponse is returned by GET /api/gateway/health.
type GatewayHealthResponse struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Tasks         int    `json:"tasks"`
	AgentsLoaded  int    `json:"agents_loaded"`
	Subscribers   int    `json:"event_subscribers"`
}
