package supervisor

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/missionctl/internal/model"
)

// reviewPreview caps how much worker output is embedded in a review prompt.
const reviewPreview = 3000

// BuildAnalysisMessage builds the prompt sent to the supervisor for task
// analysis and delegation. Pure function of task + registry.
func (r *Registry) BuildAnalysisMessage(task model.Task) string {
	desc := task.Description
	if desc == "" {
		desc = "No description."
	}

	var workers []string
	for _, id := range r.ids {
		caps := r.agents[id]
		if caps.IsSupervisor {
			continue
		}
		workers = append(workers, fmt.Sprintf("  - @%s (%s): %s", id, caps.Role, strings.Join(caps.Skills, ", ")))
	}

	suggestion := ""
	if suggested := r.MatchAgentForTask(task); suggested != "" {
		suggestion = fmt.Sprintf("\nSuggested worker: @%s", suggested)
	}

	return fmt.Sprintf(`🎯 SUPERVISOR TASK — Analyze and Delegate

Task ID: %s
Title: %s
Priority: %s
Description: %s

Available Workers:
%s
%s

YOUR ROLE AS SUPERVISOR:
1. Analyze this task — determine required capabilities.
2. Select the best worker agent from the list above.
3. Delegate by updating mission_control/tasks.json:
   - Set status to "delegated"
   - Set assigneeIds to the chosen worker's ID
   - Add a "delegation" field with your reasoning
4. The system will auto-dispatch to the chosen worker.
5. Monitor the worker's progress via their WORKING.md.
6. When the worker completes, review their output.
7. If satisfactory, set status to "completed".
8. If not, provide feedback and re-delegate.

DO NOT execute this task yourself. You are the supervisor.
Analyze → Delegate → Review → Approve.`,
		task.ID, task.Title, priorityLabel(task.Priority), desc, strings.Join(workers, "\n"), suggestion)
}

// BuildWorkerMessage builds the prompt sent to a worker after delegation,
// carrying any supervisor feedback from a prior iteration.
func (r *Registry) BuildWorkerMessage(task model.Task, workerID string, delegation Delegation) string {
	supervisorID := r.SupervisorID()

	feedbackSection := ""
	if delegation.Feedback != "" {
		feedbackSection = fmt.Sprintf("\nSUPERVISOR FEEDBACK (Iteration %d):\n%s\n", delegation.Iteration, delegation.Feedback)
	}

	return fmt.Sprintf(`📋 TASK ASSIGNED BY SUPERVISOR — %s

Task ID: %s
Priority: %s
Delegated By: @%s (Supervisor)
Iteration: %d

%s
%s
EXECUTION INSTRUCTIONS:
1. Update memory/WORKING.md with your execution plan.
2. Execute the task fully.
3. Store your results:
   - Update mission_control/tasks.json — add a "result" field with:
     {"resultContent": "<your output>", "resultSummary": "<brief summary>"}
   - Set task status to "review" when done.
4. Post completion summary to mission_control/activities.json.

The supervisor (@%s) will review your output.`,
		task.Title, task.ID, priorityLabel(task.Priority), supervisorID, delegation.Iteration,
		task.Description, feedbackSection, supervisorID)
}

// BuildReviewMessage builds the prompt asking the supervisor to review a
// worker's stored result.
func (r *Registry) BuildReviewMessage(task model.Task, workerID string) string {
	content := "(no result content found)"
	summary := ""
	if task.Result != nil {
		if task.Result.Content != "" {
			content = task.Result.Content
		}
		summary = task.Result.Summary
	}
	if runes := []rune(content); len(runes) > reviewPreview {
		content = string(runes[:reviewPreview])
	}

	return fmt.Sprintf(`🔍 REVIEW REQUIRED — Worker output ready

Task ID: %s
Title: %s
Worker: @%s

Result Summary: %s

Worker Output:
%s

REVIEW INSTRUCTIONS:
1. Evaluate the quality of the output.
2. If SATISFIED:
   - Set task status to "completed" in mission_control/tasks.json
   - Add a "reviewNote" to the task result
3. If NOT SATISFIED:
   - Set task status to "delegated" with feedback
   - The system will re-dispatch to the worker with your feedback
4. Update memory/WORKING.md with your review decision.`,
		task.ID, task.Title, workerID, summary, content)
}

func priorityLabel(priority string) string {
	if priority == "" {
		return "NORMAL"
	}
	return strings.ToUpper(priority)
}
