package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mattjoyce/missionctl/internal/dispatch"
	"github.com/mattjoyce/missionctl/internal/model"
	"github.com/mattjoyce/missionctl/internal/store"
	"github.com/mattjoyce/missionctl/internal/supervisor"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.Tasks()
	if err != nil {
		s.logger.Error("failed to read task table", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read task table")
		return
	}

	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Tasks:         len(tasks),
		AgentsLoaded:  len(s.sup.Registry().IDs()),
	}
	if s.hub != nil {
		resp.Subscribers = s.hub.SubscriberCount()
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleListTasks handles GET /api/tasks. Supports ?status= and ?assignee=.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.Tasks()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read task table")
		return
	}

	status := r.URL.Query().Get("status")
	assignee := r.URL.Query().Get("assignee")

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if status != "" && t.Status != status {
			continue
		}
		if assignee != "" && !contains(t.AssigneeIDs, assignee) {
			continue
		}
		out = append(out, t)
	}
	respondJSON(w, http.StatusOK, out)
}

// handleCreateTask handles POST /api/tasks.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	status := req.Status
	if status == "" {
		status = supervisor.StateInbox
	}

	now := model.NowMs()
	task := model.Task{
		ID:          "task_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		AssigneeIDs: req.AssigneeIDs,
		Priority:    req.Priority,
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}

	tasks, err := s.store.Tasks()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read task table")
		return
	}
	tasks = append(tasks, task)
	if err := s.store.SaveTasks(tasks); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to save task")
		return
	}

	if s.hub != nil {
		s.hub.Publish("task.created", map[string]any{"taskId": task.ID, "title": task.Title})
	}

	if s.config.AutoDispatch {
		task = s.autoDispatch(r.Context(), task)
	}
	respondJSON(w, http.StatusCreated, task)
}

// autoDispatch matches an agent for an unassigned task and sends it out in
// the same request. Failures are logged only; the created task is returned
// as-is and the sweep loop recovers it later.
func (s *Server) autoDispatch(ctx context.Context, task model.Task) model.Task {
	if len(task.AssigneeIDs) == 0 && s.sup != nil {
		agentID := s.sup.Registry().MatchAgentForTask(task)
		if agentID == "" {
			return task
		}
		err := s.store.UpdateTask(task.ID, func(t *model.Task) {
			t.AssigneeIDs = []string{agentID}
		})
		if err != nil {
			s.logger.Error("auto-dispatch assignment failed", "task", task.ID, "error", err)
			return task
		}
		task.AssigneeIDs = []string{agentID}
	}
	if len(task.AssigneeIDs) == 0 {
		return task
	}

	if _, err := s.dispatcher.DispatchTask(ctx, task); err != nil {
		s.logger.Error("auto-dispatch failed", "task", task.ID, "error", err)
		return task
	}
	if updated, err := s.store.FindTask(task.ID); err == nil {
		return updated
	}
	return task
}

// handleGetTask handles GET /api/tasks/{taskID}.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.FindTask(chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// handlePatchTask handles PATCH /api/tasks/{taskID}. Status changes go
// through the supervisor so the transition history stays complete.
func (s *Server) handlePatchTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req PatchTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var fromStatus string
	err := s.store.UpdateTask(taskID, func(t *model.Task) {
		fromStatus = t.Status
		if req.Title != nil {
			t.EditHist = append(t.EditHist, model.EditRevision{
				Field:    "title",
				Previous: t.Title,
				Actor:    req.Actor,
				AtMs:     model.NowMs(),
			})
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.EditHist = append(t.EditHist, model.EditRevision{
				Field:    "description",
				Previous: t.Description,
				Actor:    req.Actor,
				AtMs:     model.NowMs(),
			})
			t.Description = *req.Description
		}
		if len(t.EditHist) > model.MaxEditHistory {
			t.EditHist = t.EditHist[len(t.EditHist)-model.MaxEditHistory:]
		}
		if req.AssigneeIDs != nil {
			t.AssigneeIDs = *req.AssigneeIDs
		}
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
		if req.Status != nil {
			t.Status = *req.Status
		}
	})
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	if req.Status != nil && *req.Status != fromStatus {
		actor := req.Actor
		if actor == "" {
			actor = "api"
		}
		if err := s.sup.RecordStateTransition(taskID, fromStatus, *req.Status, actor, req.Reason); err != nil {
			s.logger.Error("failed to record state transition", "task", taskID, "error", err)
		}
	}

	task, err := s.store.FindTask(taskID)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// handleGetResult handles GET /api/tasks/{taskID}/result.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.sup.Result(chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	if result == nil {
		s.writeError(w, http.StatusNotFound, "task has no result")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleStoreResult handles POST /api/tasks/{taskID}/result.
func (s *Server) handleStoreResult(w http.ResponseWriter, r *http.Request) {
	var req StoreResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.sup.StoreResult(chi.URLParam(r, "taskID"), model.TaskResult{
		Content:      req.Content,
		Summary:      req.Summary,
		Files:        req.Files,
		Metadata:     req.Metadata,
		ExecutionLog: req.ExecutionLog,
	})
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleDelegate handles POST /api/tasks/{taskID}/delegate. Without an
// explicit worker the capability matcher picks one.
func (s *Server) handleDelegate(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req DelegateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	task, err := s.store.FindTask(taskID)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	registry := s.sup.Registry()
	workerID := req.WorkerID
	if workerID == "" {
		workerID = registry.MatchAgentForTask(task)
	}
	if workerID == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "no worker matches this task")
		return
	}
	if _, ok := registry.Get(workerID); !ok {
		s.writeError(w, http.StatusBadRequest, "unknown worker: "+workerID)
		return
	}

	reason := req.Reason
	if reason == "" {
		skills := registry.MatchedSkills(task, workerID)
		if len(skills) > 0 {
			reason = "matched skills: " + strings.Join(skills, ", ")
		} else {
			reason = "selected by operator"
		}
	}

	d := supervisor.NewDelegation(taskID, registry.SupervisorID(), workerID, reason)
	d.SkillsMatched = registry.MatchedSkills(task, workerID)

	message := registry.BuildWorkerMessage(task, workerID, d)
	res := s.dispatcher.SendAgentMessage(r.Context(), workerID, message)
	if !res.OK {
		s.writeError(w, http.StatusBadGateway, "delegation message failed: "+res.Error)
		return
	}

	s.sup.RecordDelegation(d)
	if err := s.sup.RecordStateTransition(taskID, task.Status, supervisor.StateDelegated, registry.SupervisorID(), reason); err != nil {
		s.logger.Error("failed to record delegation transition", "task", taskID, "error", err)
	}
	respondJSON(w, http.StatusOK, d)
}

// handleDispatch handles POST /api/dispatch/{taskID}.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req DispatchRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	task, err := s.store.FindTask(taskID)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	if req.AgentID != "" {
		task.AssigneeIDs = []string{req.AgentID}
	}
	records, err := s.dispatcher.DispatchTask(r.Context(), task)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(records) == 0 {
		s.writeError(w, http.StatusBadRequest, "task has no assignees")
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// handleRetryDispatch handles POST /api/dispatch/{taskID}/retry.
func (s *Server) handleRetryDispatch(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req DispatchRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	records, err := s.dispatcher.RetryDispatch(r.Context(), taskID, req.AgentID)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}
	if records == nil {
		records = []dispatch.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

// handleDispatchLogs handles GET /api/dispatch/logs?limit=N.
func (s *Server) handleDispatchLogs(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveInt(r.URL.Query().Get("limit"), 100)
	respondJSON(w, http.StatusOK, s.dispatcher.Log(limit))
}

// handleDispatchLogsForTask handles GET /api/dispatch/logs/{taskID}.
func (s *Server) handleDispatchLogsForTask(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.dispatcher.ForTask(chi.URLParam(r, "taskID")))
}

// handleListAgents handles GET /api/agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	registry := s.sup.Registry()
	out := make([]AgentInfo, 0, len(registry.IDs()))
	for _, id := range registry.IDs() {
		cap, _ := registry.Get(id)
		out = append(out, AgentInfo{
			ID:           id,
			Role:         cap.Role,
			Skills:       cap.Skills,
			IsSupervisor: cap.IsSupervisor,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// handleAgentMessage handles POST /api/agents/{agentID}/message.
func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	res := s.dispatcher.SendAgentMessage(r.Context(), agentID, req.Message)
	status := http.StatusOK
	if !res.OK {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, res)
}

// handleAgentWake handles POST /api/agents/{agentID}/wake.
func (s *Server) handleAgentWake(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		s.writeError(w, http.StatusServiceUnavailable, "gateway not configured")
		return
	}

	payload, err := s.gateway.WakeAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, GatewayHealthResponse{OK: true, Detail: payload})
}

// handleGatewayHealth handles GET /api/gateway/health.
func (s *Server) handleGatewayHealth(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		respondJSON(w, http.StatusOK, GatewayHealthResponse{OK: false, Error: "gateway not configured"})
		return
	}

	payload, err := s.gateway.Health(r.Context())
	if err != nil {
		respondJSON(w, http.StatusOK, GatewayHealthResponse{OK: false, Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, GatewayHealthResponse{OK: true, Detail: payload})
}

// handleDelegations handles GET /api/delegations?taskId=&limit=.
func (s *Server) handleDelegations(w http.ResponseWriter, r *http.Request) {
	if taskID := r.URL.Query().Get("taskId"); taskID != "" {
		respondJSON(w, http.StatusOK, s.sup.DelegationsForTask(taskID))
		return
	}
	limit := parsePositiveInt(r.URL.Query().Get("limit"), 100)
	respondJSON(w, http.StatusOK, s.sup.DelegationLog(limit))
}

// handleMatch handles POST /api/match.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task := model.Task{Title: req.Title, Description: req.Description}
	registry := s.sup.Registry()
	agentID := registry.MatchAgentForTask(task)

	resp := MatchResponse{AgentID: agentID}
	if agentID != "" {
		resp.Skills = registry.MatchedSkills(task, agentID)
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleActivity handles GET /api/activity?limit=N, most recent first.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	activities, err := s.store.Activities()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read activity table")
		return
	}

	limit := parsePositiveInt(r.URL.Query().Get("limit"), 100)
	if limit > len(activities) {
		limit = len(activities)
	}
	out := make([]model.Activity, 0, limit)
	for i := len(activities) - 1; i >= len(activities)-limit; i-- {
		out = append(out, activities[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// handleCronJobs handles GET /api/cron/jobs.
func (s *Server) handleCronJobs(w http.ResponseWriter, r *http.Request) {
	if s.cron == nil {
		s.writeError(w, http.StatusServiceUnavailable, "agent CLI not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.cron.CronJobs(r.Context()))
}

// handleCronRuns handles GET /api/cron/runs?agent=&limit=.
func (s *Server) handleCronRuns(w http.ResponseWriter, r *http.Request) {
	if s.cron == nil {
		s.writeError(w, http.StatusServiceUnavailable, "agent CLI not configured")
		return
	}
	agentID := r.URL.Query().Get("agent")
	limit := parsePositiveInt(r.URL.Query().Get("limit"), 20)
	respondJSON(w, http.StatusOK, s.cron.CronRuns(r.Context(), agentID, limit))
}

func (s *Server) writeTaskError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func parsePositiveInt(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
