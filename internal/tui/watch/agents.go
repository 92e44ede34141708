package watch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/missionctl/internal/events"
)

// AgentState tracks an agent discovered from dispatch events.
type AgentState struct {
	ID           string
	ActiveTasks  map[string]*TaskState
	LastStatus   string // last completed dispatch status
	LastDispatch time.Time
}

// TaskState tracks an individual task dispatch.
type TaskState struct {
	ID        string
	AgentID   string
	Status    string
	Attempt   int
	StartTime time.Time
	EndTime   time.Time
}

// updateAgentState processes an event and updates agent/task tracking.
func updateAgentState(agents map[string]*AgentState, tasks map[string]*TaskState, e events.Event) {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	taskID, _ := data["taskId"].(string)
	if taskID == "" {
		return
	}

	switch e.Type {
	case "dispatch.started":
		task, ok := tasks[taskID]
		if !ok {
			task = &TaskState{ID: taskID}
			tasks[taskID] = task
		}
		if agentID, ok := data["agentId"].(string); ok {
			task.AgentID = agentID
		}
		if attempt, ok := data["attempt"].(float64); ok {
			task.Attempt = int(attempt)
		}
		task.Status = "dispatching"
		task.StartTime = time.Now()

		if task.AgentID != "" {
			a := getOrCreateAgent(agents, task.AgentID)
			a.ActiveTasks[taskID] = task
		}

	case "dispatch.completed", "dispatch.failed", "dispatch.timeout":
		task, ok := tasks[taskID]
		if !ok {
			task = &TaskState{ID: taskID}
			tasks[taskID] = task
			if agentID, ok := data["agentId"].(string); ok {
				task.AgentID = agentID
			}
		}
		status, _ := data["status"].(string)
		task.Status = status
		task.EndTime = time.Now()

		if a, ok := agents[task.AgentID]; ok {
			delete(a.ActiveTasks, taskID)
			a.LastStatus = status
			a.LastDispatch = time.Now()
		}
	}
}

func getOrCreateAgent(agents map[string]*AgentState, id string) *AgentState {
	a, ok := agents[id]
	if !ok {
		a = &AgentState{
			ID:          id,
			ActiveTasks: make(map[string]*TaskState),
		}
		agents[id] = a
	}
	return a
}

// sortedAgentIDs returns agent ids in stable sorted order.
func sortedAgentIDs(agents map[string]*AgentState) []string {
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func renderAgents(agents map[string]*AgentState, selected int, theme Theme, width int) string {
	innerWidth := width - 4

	if len(agents) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("AGENTS"),
			theme.Dim.Render("  No dispatch activity yet..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	ids := sortedAgentIDs(agents)

	var lines []string
	for i, id := range ids {
		a := agents[id]
		line := renderAgentRow(i+1, a, i == selected, theme)
		lines = append(lines, line)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{theme.Title.Render("AGENTS")}, lines...)...,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func renderAgentRow(num int, a *AgentState, isSelected bool, theme Theme) string {
	activeCount := len(a.ActiveTasks)

	// Status indicator
	var statusStr string
	if activeCount > 0 {
		statusStr = theme.StatusRunning.Render(fmt.Sprintf("[%d active]", activeCount))
	} else {
		statusStr = theme.Dim.Render("[idle]")
	}

	// Last dispatch info
	var lastStr string
	if !a.LastDispatch.IsZero() {
		ago := time.Since(a.LastDispatch).Round(time.Second)
		icon := statusIcon(a.LastStatus, theme)
		lastStr = fmt.Sprintf("Last: %s %s", formatAgo(ago), icon)
	}

	// Build line
	nameStyle := lipgloss.NewStyle()
	if isSelected {
		nameStyle = nameStyle.Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))
	}

	var line strings.Builder
	line.WriteString(fmt.Sprintf(" %d. %s  %s  %s",
		num,
		nameStyle.Render(fmt.Sprintf("%-16s", "@"+a.ID)),
		statusStr,
		lastStr,
	))

	// Show active tasks underneath
	if activeCount > 0 {
		for _, task := range a.ActiveTasks {
			duration := "-"
			if !task.StartTime.IsZero() {
				duration = time.Since(task.StartTime).Round(time.Second).String()
			}

			taskID := task.ID
			if len(taskID) > 12 {
				taskID = taskID[:12]
			}

			taskLine := fmt.Sprintf("    └─ Task %s: attempt %d %s",
				theme.Highlight.Render(taskID),
				task.Attempt,
				theme.Dim.Render(duration),
			)
			line.WriteString("\n" + taskLine)
		}
	}

	return line.String()
}

func statusIcon(status string, theme Theme) string {
	switch status {
	case "dispatched":
		return theme.StatusOK.Render("✅")
	case "failed":
		return theme.StatusFailed.Render("❌")
	case "timeout":
		return theme.StatusFailed.Render("⏱")
	default:
		return ""
	}
}

func formatAgo(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh ago", int(d.Hours()))
}
