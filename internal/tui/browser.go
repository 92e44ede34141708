// Package tui holds the interactive task browser for missionctl.
package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/missionctl/internal/model"
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD"))

	statusOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	statusQueued  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)
)

// Browser is a table-driven view over the task store, refreshed by polling
// the HTTP API.
type Browser struct {
	apiURL string
	apiKey string

	width  int
	height int

	tasks     []model.Task
	taskTable table.Model
	detail    viewport.Model
	showing   bool
	lastError string
}

type tasksMsg []model.Task
type taskErrMsg error

// NewBrowser creates the task browser model.
func NewBrowser(apiURL, apiKey string) *Browser {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "ID", Width: 14},
			{Title: "Title", Width: 36},
			{Title: "Assignees", Width: 18},
			{Title: "Dispatch", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Browser{
		apiURL:    apiURL,
		apiKey:    apiKey,
		taskTable: t,
	}
}

func (b Browser) Init() tea.Cmd {
	return tea.Batch(
		b.fetchTasks(),
		tea.EnterAltScreen,
	)
}

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return b, tea.Quit
		case "enter":
			b.showing = !b.showing
			if b.showing {
				b.detail.SetContent(b.renderDetail())
			}
		case "esc":
			b.showing = false
		case "r":
			return b, b.fetchTasks()
		}

	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		b.taskTable.SetWidth(b.width - 6)
		b.detail.Width = b.width - 6
		b.detail.Height = b.height / 3

	case tasksMsg:
		b.tasks = msg
		b.lastError = ""
		b.updateTable()
		return b, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return b.loadTasks()
		})

	case taskErrMsg:
		b.lastError = msg.Error()
		return b, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return b.loadTasks()
		})
	}

	if b.showing {
		b.detail, cmd = b.detail.Update(msg)
	} else {
		b.taskTable, cmd = b.taskTable.Update(msg)
	}
	return b, cmd
}

func (b *Browser) updateTable() {
	rows := make([]table.Row, 0, len(b.tasks))
	for _, t := range b.tasks {
		dispatchStr := "-"
		if t.Dispatch != nil {
			dispatchStr = fmt.Sprintf("%s #%d", t.Dispatch.LastDispatchStatus, t.Dispatch.DispatchCount)
		}
		rows = append(rows, table.Row{
			taskStatusSymbol(t.Status),
			t.ID,
			t.Title,
			strings.Join(t.AssigneeIDs, ","),
			dispatchStr,
		})
	}
	b.taskTable.SetRows(rows)
}

func taskStatusSymbol(status string) string {
	switch status {
	case "inbox", "pending":
		return statusQueued.Render("○")
	case "assigned", "delegated":
		return statusRunning.Render("◉")
	case "in_progress", "running", "analyzing", "review", "reviewing":
		return statusRunning.Render("◔")
	case "done", "completed", "archived":
		return statusOK.Render("●")
	default:
		return "○"
	}
}

func (b Browser) renderDetail() string {
	cursor := b.taskTable.Cursor()
	if cursor < 0 || cursor >= len(b.tasks) {
		return "No task selected."
	}
	t := b.tasks[cursor]

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  [%s]\n\n", t.Title, t.Status)
	if t.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", t.Description)
	}
	if len(t.AssigneeIDs) > 0 {
		fmt.Fprintf(&sb, "Assignees: %s\n", strings.Join(t.AssigneeIDs, ", "))
	}
	if t.Dispatch != nil {
		fmt.Fprintf(&sb, "Dispatches: %d (last: %s", t.Dispatch.DispatchCount, t.Dispatch.LastDispatchStatus)
		if t.Dispatch.LastError != "" {
			fmt.Fprintf(&sb, ", error: %s", t.Dispatch.LastError)
		}
		sb.WriteString(")\n")
	}
	for _, tr := range t.StateHist {
		fmt.Fprintf(&sb, "  %s → %s  by %s\n", tr.From, tr.To, tr.Actor)
	}
	if t.Result != nil {
		fmt.Fprintf(&sb, "\nResult: %s\n", t.Result.Summary)
	}
	return sb.String()
}

func (b Browser) View() string {
	if b.width == 0 {
		return "Initializing..."
	}

	title := titleStyle.Render("TASKS")
	main := borderStyle.Width(b.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, b.taskTable.View()),
	)

	parts := []string{main}
	if b.showing {
		parts = append(parts, borderStyle.Width(b.width-4).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("DETAIL"), b.detail.View()),
		))
	}
	if b.lastError != "" {
		parts = append(parts, statusFailed.Render(" ⚠ "+b.lastError))
	}
	parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [enter] Detail • [r] Refresh"))

	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (b Browser) fetchTasks() tea.Cmd {
	return func() tea.Msg {
		return b.loadTasks()
	}
}

func (b Browser) loadTasks() tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest("GET", b.apiURL+"/api/tasks", nil)
	if err != nil {
		return taskErrMsg(err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return taskErrMsg(err)
	}
	defer resp.Body.Close()

	var tasks []model.Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return taskErrMsg(err)
	}
	return tasksMsg(tasks)
}
