package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

// pollInterval is how often task status is polled.
var pollInterval = time.Second

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// errAborted is returned when the user stops an in-process generation.
var errAborted = errors.New("generation aborted")

// tickMsg triggers polling the task status
type tickMsg time.Time

// taskUpdateMsg carries the updated task snapshot
type taskUpdateMsg struct {
	task *models.Task
	err  error
}

// progressModel is the bubbletea model for task progress.
type progressModel struct {
	backend  backend
	taskID   string
	url      string
	task     *models.Task
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

// newProgressModel creates a new progress model.
func newProgressModel(b backend, taskID, url string) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		backend:  b,
		taskID:   taskID,
		url:      url,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init fetches the first snapshot right away, then polls.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchTask(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchTask()

	case taskUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch task status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.task = msg.task

		switch m.task.Status {
		case models.TaskStatusCompleted:
			m.done = true
			return m, tea.Quit
		case models.TaskStatusFailed:
			m.done = true
			m.err = taskError(m.task)
			return m, tea.Quit
		}

		return m, tickCmd()

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	if m.task == nil {
		return "Submitting " + m.url + "...\n"
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.task.Status))
	bar := m.progress.ViewAs(float64(m.task.Progress) / 100)
	pct := fmt.Sprintf("%3d%%", m.task.Progress)

	hint := "Press Ctrl+C to abort"
	if m.backend.Remote() {
		hint = "Press Ctrl+C to continue in background"
	}

	return fmt.Sprintf("%s %s %s\n%s\n%s\n", status, bar, pct, m.task.Message, m.theme.hintStyle().Render(hint))
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		if m.backend.Remote() {
			msg := fmt.Sprintf("\nTask %s continues in background.\nUse 'factsheet tasks %s --server <url>' to check status.\n",
				m.taskID, m.taskID)
			return m.theme.hintStyle().Render(msg)
		}
		return m.theme.errorStyle().Render("\n✗ Aborted\n")
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}

	return m.theme.completedStyle().Render("✓ Factsheet generated") + "\n\n" + formatResult(m.task)
}

// fetchTask fetches the current task status.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) fetchTask() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		task, err := m.backend.Task(ctx, m.taskID)
		return taskUpdateMsg{task: task, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunTaskProgress runs the interactive progress UI for a task.
// Returns nil on success or, for a server task, on Ctrl+C (it keeps running).
func RunTaskProgress(b backend, taskID, url string) error {
	model := newProgressModel(b, taskID, url)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			if b.Remote() {
				return nil
			}
			return errAborted
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}

// pollTask prints a line whenever the task's state changes until it
// finishes. Used when stdout is not a terminal.
func pollTask(ctx context.Context, b backend, taskID string, w io.Writer) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last string
	for {
		task, err := b.Task(ctx, taskID)
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}

		line := fmt.Sprintf("[%s] %3d%% %s", task.Status, task.Progress, task.Message)
		if line != last {
			fmt.Fprintln(w, line)
			last = line
		}

		switch task.Status {
		case models.TaskStatusCompleted:
			fmt.Fprintln(w)
			fmt.Fprint(w, formatResult(task))
			return nil
		case models.TaskStatusFailed:
			return taskError(task)
		}

		select {
		case <-ctx.Done():
			if b.Remote() {
				fmt.Fprintf(w, "Task %s continues in background.\n", taskID)
				return nil
			}
			return errAborted
		case <-ticker.C:
		}
	}
}

func taskError(t *models.Task) error {
	if t.Error == "" {
		return errors.New("factsheet generation failed")
	}
	return errors.New(t.Error)
}

func formatResult(t *models.Task) string {
	if t == nil || t.Result == nil {
		return ""
	}
	r := t.Result
	var b strings.Builder
	fmt.Fprintf(&b, "  Company:  %s\n", r.CompanyName)
	fmt.Fprintf(&b, "  File:     %s\n", r.Filename)
	if r.Path != "" {
		fmt.Fprintf(&b, "  Path:     %s\n", r.Path)
	}
	fmt.Fprintf(&b, "  Words:    %d\n", r.WordCount)
	if t.Provider != "" {
		fmt.Fprintf(&b, "  Model:    %s/%s\n", t.Provider, t.Model)
	}
	return b.String()
}
