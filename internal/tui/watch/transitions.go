package watch

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/missionctl/internal/events"
)

// TransitionState tracks the most recent lifecycle move per task.
type TransitionState struct {
	TaskID string
	From   string
	To     string
	Actor  string
	At     time.Time
}

// updateTransitionState records task.transition events per task.
func updateTransitionState(transitions map[string]*TransitionState, e events.Event) {
	if e.Type != "task.transition" {
		return
	}

	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	taskID, _ := data["taskId"].(string)
	if taskID == "" {
		return
	}

	st, ok := transitions[taskID]
	if !ok {
		st = &TransitionState{TaskID: taskID}
		transitions[taskID] = st
	}
	st.From, _ = data["from"].(string)
	st.To, _ = data["to"].(string)
	st.Actor, _ = data["actor"].(string)
	st.At = time.Now()
}

func renderTransitions(transitions map[string]*TransitionState, theme Theme, width int) string {
	innerWidth := width - 4

	if len(transitions) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("TASK LIFECYCLE"),
			theme.Dim.Render("  No transitions yet..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	// Most recent first, capped at 5 rows.
	all := make([]*TransitionState, 0, len(transitions))
	for _, st := range transitions {
		all = append(all, st)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].At.After(all[j].At) })
	if len(all) > 5 {
		all = all[:5]
	}

	var lines []string
	for _, st := range all {
		taskID := st.TaskID
		if len(taskID) > 12 {
			taskID = taskID[:12]
		}
		toStyle := theme.StatusQueued
		switch st.To {
		case "completed", "done":
			toStyle = theme.StatusOK
		case "in_progress", "running", "delegated":
			toStyle = theme.StatusRunning
		}
		lines = append(lines, fmt.Sprintf(" %s  %s %s %s  %s %s",
			theme.Highlight.Render(taskID),
			theme.Dim.Render(st.From),
			theme.Dim.Render("→"),
			toStyle.Render(st.To),
			theme.Dim.Render("by"),
			st.Actor,
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{theme.Title.Render("TASK LIFECYCLE")}, lines...)...,
	)

	return theme.Border.Width(innerWidth).Render(content)
}
