// Package tui is the terminal front end for the task service.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskboard/internal/client"
	"taskboard/internal/events"
	"taskboard/internal/logger"
	"taskboard/internal/models"
)

const (
	statusTTL = 3 * time.Second
	opTimeout = 10 * time.Second
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
)

type statusBar struct {
	text    string
	isError bool
	seq     int
}

type Model struct {
	state  *client.State
	feed   <-chan events.Event
	filter client.Filter
	cursor int
	mode   mode
	input  textinput.Model

	// add mode
	addCompleted bool
	// edit mode
	editID string

	status   statusBar
	loaded   bool
	quitting bool
}

type loadedMsg struct{ err error }

type opDoneMsg struct {
	text string
	err  error
}

type clearStatusMsg struct{ seq int }

type eventMsg struct{ ev events.Event }

func New(state *client.State, feed <-chan events.Event) Model {
	ti := textinput.New()
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 1000
	ti.Width = 50

	return Model{
		state: state,
		feed:  feed,
		input: ti,
		mode:  modeList,
	}
}

// Run blocks until the user quits.
func Run(state *client.State, feed <-chan events.Event) error {
	program := tea.NewProgram(New(state, feed), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.waitForEvent())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.mode {
		case modeAdd:
			return m.updateAddMode(msg)
		case modeEdit:
			return m.updateEditMode(msg)
		}
		return m.updateListMode(msg.String())
	case tea.WindowSizeMsg:
		if msg.Width > 20 {
			m.input.Width = msg.Width - 20
		}
		return m, nil
	case loadedMsg:
		m.loaded = true
		m.clampCursor()
		if msg.err != nil {
			return m.setStatus(client.FriendlyMessage("load tasks", msg.err), true)
		}
		return m, nil
	case opDoneMsg:
		m.clampCursor()
		if msg.err != nil {
			return m.setStatus(msg.text, true)
		}
		return m.setStatus(msg.text, false)
	case clearStatusMsg:
		if msg.seq == m.status.seq {
			m.status.text = ""
			m.status.isError = false
		}
		return m, nil
	case eventMsg:
		if msg.ev.Type == events.Resync {
			return m, tea.Batch(m.loadCmd(), m.waitForEvent())
		}
		m.state.Apply(msg.ev)
		m.clampCursor()
		return m, m.waitForEvent()
	}
	return m, nil
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case "tab":
		m.setFilter(m.filter.Next())
	case "1":
		m.setFilter(client.FilterAll)
	case "2":
		m.setFilter(client.FilterActive)
	case "3":
		m.setFilter(client.FilterCompleted)
	case "a":
		m.mode = modeAdd
		m.addCompleted = false
		m.input.Placeholder = "What needs to be done?"
		m.input.SetValue("")
		return m, m.input.Focus()
	case " ":
		if task, ok := m.selected(); ok {
			return m, m.toggleCmd(task)
		}
	case "e", "enter":
		if task, ok := m.selected(); ok {
			m.mode = modeEdit
			m.editID = task.ID
			m.input.Placeholder = ""
			m.input.SetValue(task.Description)
			m.input.CursorEnd()
			return m, m.input.Focus()
		}
	case "d":
		if task, ok := m.selected(); ok {
			return m, m.deleteCmd(task)
		}
	case "c":
		return m, m.clearCompletedCmd()
	case "r":
		return m, m.reloadCmd()
	}
	return m, nil
}

func (m Model) updateAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveInput()
		return m.setStatus("Cancelled", false)
	case "ctrl+t":
		m.addCompleted = !m.addCompleted
		return m, nil
	case "enter":
		description, completed := m.input.Value(), m.addCompleted
		m.leaveInput()
		return m, m.addCmd(description, completed)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateEditMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveInput()
		return m.setStatus("Edit cancelled", false)
	case "enter":
		id, draft := m.editID, m.input.Value()
		m.leaveInput()
		return m, m.editCmd(id, draft)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) leaveInput() {
	m.mode = modeList
	m.editID = ""
	m.addCompleted = false
	m.input.SetValue("")
	m.input.Blur()
}

func (m *Model) setFilter(f client.Filter) {
	m.filter = f
	m.cursor = 0
}

// setStatus shows a notification that disappears after statusTTL unless a
// newer one replaced it.
func (m Model) setStatus(text string, isError bool) (Model, tea.Cmd) {
	m.status = statusBar{text: text, isError: isError, seq: m.status.seq + 1}
	seq := m.status.seq
	return m, tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

func (m Model) visible() []models.Task {
	return m.state.Visible(m.filter)
}

func (m Model) selected() (models.Task, bool) {
	tasks := m.visible()
	if m.cursor < 0 || m.cursor >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) waitForEvent() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	feed := m.feed
	return func() tea.Msg {
		ev, ok := <-feed
		if !ok {
			return nil
		}
		return eventMsg{ev: ev}
	}
}

func (m Model) loadCmd() tea.Cmd {
	state := m.state
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		err := state.Load(ctx)
		if err != nil {
			logger.Error(ctx, err, "load tasks")
		}
		return loadedMsg{err: err}
	}
}

func (m Model) reloadCmd() tea.Cmd {
	return m.op("reload", func(ctx context.Context, st *client.State) (string, error) {
		if err := st.Load(ctx); err != nil {
			return "", err
		}
		return "Reloaded", nil
	})
}

func (m Model) addCmd(description string, completed bool) tea.Cmd {
	return m.op("add the task", func(ctx context.Context, st *client.State) (string, error) {
		task, err := st.Add(ctx, description, completed)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Added %q", task.Description), nil
	})
}

func (m Model) toggleCmd(task models.Task) tea.Cmd {
	return m.op("update the task", func(ctx context.Context, st *client.State) (string, error) {
		updated, err := st.Toggle(ctx, task.ID)
		if err != nil {
			return "", err
		}
		if updated.Completed {
			return "Marked completed", nil
		}
		return "Marked active", nil
	})
}

func (m Model) editCmd(id, draft string) tea.Cmd {
	return m.op("save the edit", func(ctx context.Context, st *client.State) (string, error) {
		if _, err := st.Edit(ctx, id, draft); err != nil {
			return "", err
		}
		return "Saved", nil
	})
}

func (m Model) deleteCmd(task models.Task) tea.Cmd {
	return m.op("delete the task", func(ctx context.Context, st *client.State) (string, error) {
		if err := st.Delete(ctx, task.ID); err != nil {
			return "", err
		}
		return "Deleted", nil
	})
}

func (m Model) clearCompletedCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		removed, err := m.state.ClearCompleted(ctx)
		if err != nil {
			logger.Error(ctx, err, "clear completed", "removed", removed)
			return opDoneMsg{
				text: fmt.Sprintf("Cleared %d, %d could not be deleted. Press r to reload.", removed, failures(err)),
				err:  err,
			}
		}
		if removed == 0 {
			return opDoneMsg{text: "No completed tasks"}
		}
		return opDoneMsg{text: fmt.Sprintf("Cleared %d completed", removed)}
	}
}

// op runs fn against the state off the UI goroutine and reports the outcome.
func (m Model) op(name string, fn func(context.Context, *client.State) (string, error)) tea.Cmd {
	state := m.state
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		text, err := fn(ctx, state)
		switch {
		case err == nil:
			return opDoneMsg{text: text}
		case errors.Is(err, client.ErrEmptyDescription):
			return opDoneMsg{text: "Description cannot be empty", err: err}
		case errors.Is(err, client.ErrEditCancelled):
			return opDoneMsg{text: "Edit cancelled"}
		case errors.Is(err, client.ErrUnknownTask):
			return opDoneMsg{text: "That task is gone. Press r to reload.", err: err}
		}
		logger.Error(ctx, err, name)
		return opDoneMsg{text: client.FriendlyMessage(name, err), err: err}
	}
}

func failures(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}
