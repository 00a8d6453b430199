// Package tui is the interactive roster screen. Every action is sent to the
// attendance dispatcher from a bubbletea command; the model only ever holds
// the last rendered view.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rollbook/internal/attendance"
	"rollbook/internal/model"
	"rollbook/internal/render"
	"rollbook/internal/state"
)

const maxNameWidth = 32

type resultMsg struct {
	view   render.View
	err    error
	notice string
}

type noticeMsg struct {
	text string
	err  bool
}

type noticeFadeMsg struct{}

type queuedCommand struct {
	cmd    attendance.Command
	notice string
}

// Model is the bubbletea model for the roster screen.
type Model struct {
	ctx        context.Context
	dispatcher attendance.Dispatcher
	keys       KeyMap
	theme      Theme

	view   render.View
	cursor int

	searching bool
	search    textinput.Model

	notice    string
	noticeErr bool

	// At most one command is in flight; the rest wait in key order.
	inFlight bool
	pending  []queuedCommand

	width  int
	height int
}

// New creates the model over an already loaded view.
func New(ctx context.Context, dispatcher attendance.Dispatcher, view render.View) Model {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "name or ID"
	search.SetValue(view.Search)
	return Model{
		ctx:        ctx,
		dispatcher: dispatcher,
		keys:       DefaultKeyMap,
		theme:      DefaultTheme,
		view:       view,
		search:     search,
	}
}

func (m Model) Init() tea.Cmd { return nil }

// enqueue sends cmd now when nothing is in flight and queues it otherwise.
func (m Model) enqueue(cmd attendance.Command, success string) (Model, tea.Cmd) {
	if m.inFlight {
		m.pending = append(m.pending, queuedCommand{cmd: cmd, notice: success})
		return m, nil
	}
	m.inFlight = true
	return m, m.dispatch(cmd, success)
}

// next dispatches the oldest queued command, if any.
func (m Model) next() (Model, tea.Cmd) {
	if len(m.pending) == 0 {
		m.inFlight = false
		return m, nil
	}
	queued := m.pending[0]
	m.pending = m.pending[1:]
	return m, m.dispatch(queued.cmd, queued.notice)
}

func (m Model) dispatch(cmd attendance.Command, success string) tea.Cmd {
	ctx, dispatcher := m.ctx, m.dispatcher
	return func() tea.Msg {
		view, err := dispatcher.Dispatch(ctx, cmd)
		return resultMsg{view: view, err: err, notice: success}
	}
}

func (m Model) selected() (render.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Rows) {
		return render.Row{}, false
	}
	return m.view.Rows[m.cursor], true
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.view.Rows) {
		m.cursor = len(m.view.Rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKeys(message)
		}
		return m.handleKeys(message)

	case resultMsg:
		m.view = message.view
		m.clampCursor()
		var fade tea.Cmd
		switch {
		case message.err != nil:
			m.notice, m.noticeErr = message.err.Error(), true
			fade = fadeNotice()
		case message.notice != "":
			m.notice, m.noticeErr = message.notice, false
			fade = fadeNotice()
		}
		var nextCmd tea.Cmd
		m, nextCmd = m.next()
		return m, tea.Batch(fade, nextCmd)

	case noticeMsg:
		m.notice, m.noticeErr = message.text, message.err

	case noticeFadeMsg:
		m.notice, m.noticeErr = "", false

	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
		m.search.Width = max(message.Width-4, 10)

	default:
		// Cursor blinks for the search box.
		if m.searching {
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(message)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) handleKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(message, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(message, m.keys.Down):
		if m.cursor < len(m.view.Rows)-1 {
			m.cursor++
		}

	case key.Matches(message, m.keys.Present):
		return m.mark(model.Present)
	case key.Matches(message, m.keys.Absent):
		return m.mark(model.Absent)
	case key.Matches(message, m.keys.Clear):
		return m.mark(model.Unmarked)

	case key.Matches(message, m.keys.AllPresent):
		return m.enqueue(attendance.MarkAll{Status: model.Present}, "Marked everyone present")
	case key.Matches(message, m.keys.AllAbsent):
		return m.enqueue(attendance.MarkAll{Status: model.Absent}, "Marked everyone absent")
	case key.Matches(message, m.keys.ClearDay):
		return m.enqueue(attendance.MarkAll{Status: model.Unmarked}, "Cleared the day")

	case key.Matches(message, m.keys.PrevDay):
		return m.enqueue(m.shiftDate(-1), "")
	case key.Matches(message, m.keys.NextDay):
		return m.enqueue(m.shiftDate(1), "")
	case key.Matches(message, m.keys.Today):
		return m.enqueue(attendance.SetDate{}, "")

	case key.Matches(message, m.keys.NextClass):
		if id, ok := nextClass(m.view); ok {
			m.cursor = 0
			return m.enqueue(attendance.SelectClass{ID: id}, "")
		}

	case key.Matches(message, m.keys.Reload):
		return m.enqueue(attendance.LoadClasses{}, "Reloaded")

	case key.Matches(message, m.keys.Search):
		m.searching = true
		m.cursor = 0
		return m, m.search.Focus()

	case key.Matches(message, m.keys.SearchClear):
		if m.view.Search != "" {
			m.search.SetValue("")
			return m.enqueue(attendance.SetSearch{}, "")
		}

	case key.Matches(message, m.keys.CopyShare):
		if m.view.ShareText == "" {
			m.notice, m.noticeErr = "Create a class first.", true
			return m, fadeNotice()
		}
		m.notice, m.noticeErr = "Copied attendance summary", false
		return m, copyToClipboard(m.view.ShareText)
	}
	return m, nil
}

func (m Model) handleSearchKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, m.keys.Confirm):
		m.searching = false
		m.search.Blur()
		return m, nil

	case key.Matches(message, m.keys.SearchClear):
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		return m.enqueue(attendance.SetSearch{}, "")
	}

	var inputCmd tea.Cmd
	m.search, inputCmd = m.search.Update(message)
	if m.search.Value() == m.view.Search {
		return m, inputCmd
	}
	m.cursor = 0
	m, searchCmd := m.enqueue(attendance.SetSearch{Text: m.search.Value()}, "")
	return m, tea.Batch(inputCmd, searchCmd)
}

func (m Model) mark(status model.Status) (Model, tea.Cmd) {
	row, ok := m.selected()
	if !ok {
		return m, nil
	}
	return m.enqueue(attendance.SetStatus{StudentID: row.Student.ID, Status: status}, "")
}

// shiftDate returns the command that moves the date by days, or back to
// today when the current date does not parse.
func (m Model) shiftDate(days int) attendance.Command {
	day, err := time.Parse(state.DateLayout, m.view.Date)
	if err != nil {
		return attendance.SetDate{}
	}
	return attendance.SetDate{Date: day.AddDate(0, 0, days).Format(state.DateLayout)}
}

// nextClass returns the class after the active one, wrapping around.
func nextClass(view render.View) (int64, bool) {
	if len(view.Classes) < 2 {
		return 0, false
	}
	for i, card := range view.Classes {
		if card.Active {
			return view.Classes[(i+1)%len(view.Classes)].Class.ID, true
		}
	}
	return view.Classes[0].Class.ID, true
}

// ---------- Rendering ----------

func (m Model) View() string {
	theme := m.theme
	if !m.view.Authenticated {
		return lipgloss.NewStyle().Foreground(theme.FaintText).Render("Not signed in. Run `rollbook login` first.") + "\n"
	}

	width := m.width
	if width <= 0 {
		width = 72
	}
	var sections []string

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.HeaderForeground).Render(m.view.ClassName)
	user := lipgloss.NewStyle().Foreground(theme.FaintText).Render(m.view.UserLabel)
	sections = append(sections, title+"  "+user)
	sections = append(sections, lipgloss.NewStyle().Foreground(theme.NormalText).Render(m.view.SummaryDate))
	sections = append(sections, m.renderCounts())
	if tabs := m.renderClasses(); tabs != "" {
		sections = append(sections, tabs)
	}
	if m.searching {
		sections = append(sections, m.search.View())
	} else if m.view.Search != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.FaintText).Render("search: "+m.view.Search))
	}

	separator := lipgloss.NewStyle().Foreground(theme.BorderColor).Render(strings.Repeat("─", width))
	sections = append(sections, separator)
	sections = append(sections, m.renderRows(len(sections)+3)...)
	sections = append(sections, separator)
	sections = append(sections, m.renderHelp())
	if m.notice != "" {
		color := theme.NoticeText
		if m.noticeErr {
			color = theme.ErrorText
		}
		sections = append(sections, lipgloss.NewStyle().Foreground(color).Render(m.notice))
	}
	return strings.Join(sections, "\n") + "\n"
}

func (m Model) renderCounts() string {
	counts := m.view.Counts
	part := func(status model.Status, n int) string {
		return lipgloss.NewStyle().Foreground(m.theme.StatusColor(status)).
			Render(fmt.Sprintf("%s %d", status.Label(), n))
	}
	return strings.Join([]string{
		part(model.Present, counts.Present),
		part(model.Absent, counts.Absent),
		part(model.Unmarked, counts.Unmarked),
	}, "   ")
}

func (m Model) renderClasses() string {
	if len(m.view.Classes) < 2 {
		return ""
	}
	parts := make([]string, 0, len(m.view.Classes))
	for _, card := range m.view.Classes {
		style := lipgloss.NewStyle().Foreground(m.theme.FaintText)
		if card.Active {
			style = lipgloss.NewStyle().Bold(true).Foreground(m.theme.SelectedForeground).Background(m.theme.SelectedBackground)
		}
		parts = append(parts, style.Render(" "+card.Class.Name+" "))
	}
	return strings.Join(parts, " ")
}

// renderRows draws the visible slice of the roster. chrome is the number of
// lines the rest of the screen takes.
func (m Model) renderRows(chrome int) []string {
	if len(m.view.Rows) == 0 {
		return []string{lipgloss.NewStyle().Foreground(m.theme.FaintText).Render(m.view.EmptyMessage)}
	}

	nameWidth := 4
	for _, row := range m.view.Rows {
		nameWidth = max(nameWidth, lipgloss.Width(row.Student.Name))
	}
	nameWidth = min(nameWidth, maxNameWidth)

	start, end := 0, len(m.view.Rows)
	if m.height > 0 {
		visible := max(m.height-chrome, 1)
		if m.cursor >= visible {
			start = m.cursor - visible + 1
		}
		end = min(start+visible, len(m.view.Rows))
	}

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		row := m.view.Rows[i]
		name := lipgloss.NewStyle().Width(nameWidth).MaxWidth(nameWidth).Render(row.Student.Name)
		uid := lipgloss.NewStyle().Foreground(m.theme.FaintText).Width(12).Render(row.Student.StudentUID)
		status := lipgloss.NewStyle().Foreground(m.theme.StatusColor(row.Status)).Render(row.Status.Label())
		line := fmt.Sprintf("  %s  %s  %s", name, uid, status)
		if i == m.cursor {
			line = lipgloss.NewStyle().
				Foreground(m.theme.SelectedForeground).
				Background(m.theme.SelectedBackground).
				Render("▸ " + line[2:])
		}
		lines = append(lines, line)
	}
	return lines
}

func (m Model) renderHelp() string {
	bindings := m.keys.ShortHelp()
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return lipgloss.NewStyle().Foreground(m.theme.HelpText).Render(strings.Join(parts, " · "))
}
