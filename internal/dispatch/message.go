package dispatch

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/missionctl/internal/model"
)

// BuildTaskMessage constructs the structured instruction delivered to an
// agent's heartbeat session. Kept concise: the agent's own heartbeat file
// already tells it to consult tasks.json for full details.
func BuildTaskMessage(task model.Task, agentID string) string {
	title := task.Title
	if title == "" {
		title = "Untitled Task"
	}
	desc := task.Description
	if desc == "" {
		desc = "No description provided."
	}

	return fmt.Sprintf(`📋 NEW TASK ASSIGNED — %s

Task ID: %s
Priority: %s
Assigned To: %s

%s

ACTION REQUIRED:
1. Check mission_control/tasks.json — find task %s.
2. Check mission_control/notifications.json — mark your notification delivered=true.
3. Update memory/WORKING.md with your execution plan.
4. Execute the task.
5. When done, update the task status in mission_control/tasks.json to "done".
6. Post a summary to mission_control/activities.json.`,
		title, task.ID, priorityLabel(task.Priority), agentID, desc, task.ID)
}

// buildShortMessage is the compact variant handed to the CLI fallback.
func buildShortMessage(task model.Task) string {
	desc := task.Description
	if len(desc) > 200 {
		desc = desc[:200]
	}
	return fmt.Sprintf("TASK ASSIGNED: %s. Task ID: %s. %s. Check your WORKING.md and execute this task.",
		task.Title, task.ID, desc)
}

func priorityLabel(priority string) string {
	if priority == "" {
		return "NORMAL"
	}
	return strings.ToUpper(priority)
}
