package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskboard/internal/client"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	tabStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTab  = tabStyle.Bold(true).Underline(true).Foreground(lipgloss.Color("255"))

	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	completedStyle = lipgloss.NewStyle().Strikethrough(true).Faint(true)

	countsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var filters = []client.Filter{client.FilterAll, client.FilterActive, client.FilterCompleted}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Tasks"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")
	b.WriteString(m.renderList())
	b.WriteString("\n")
	b.WriteString(m.renderCounts())
	b.WriteString("\n")

	switch m.mode {
	case modeAdd:
		flag := "[ ]"
		if m.addCompleted {
			flag = "[x]"
		}
		fmt.Fprintf(&b, "\nNew %s %s\n", flag, m.input.View())
	case modeEdit:
		fmt.Fprintf(&b, "\nEdit: %s\n", m.input.View())
	}

	if m.status.text != "" {
		style := infoStyle
		if m.status.isError {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.status.text) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(filters))
	for i, f := range filters {
		label := fmt.Sprintf("%d %s", i+1, f)
		if f == m.filter {
			tabs = append(tabs, activeTab.Render(label))
			continue
		}
		tabs = append(tabs, tabStyle.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderList() string {
	if !m.loaded {
		return "Loading...\n"
	}

	tasks := m.visible()
	if len(tasks) == 0 {
		switch m.filter {
		case client.FilterActive:
			return "Nothing left to do.\n"
		case client.FilterCompleted:
			return "No completed tasks.\n"
		}
		return "No tasks yet. Press a to add one.\n"
	}

	var b strings.Builder
	for i, t := range tasks {
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		check := "[ ]"
		desc := t.Description
		if m.mode == modeEdit && t.ID == m.editID {
			desc = "(editing)"
		}
		if t.Completed {
			check = "[x]"
			desc = completedStyle.Render(desc)
		}
		fmt.Fprintf(&b, "%s%s %s\n", cursor, check, desc)
	}
	return b.String()
}

func (m Model) renderCounts() string {
	c := m.state.Counts()
	return countsStyle.Render(fmt.Sprintf("%d total, %d active, %d completed", c.Total, c.Active, c.Completed))
}

func (m Model) helpLine() string {
	switch m.mode {
	case modeAdd:
		return "enter: save  ctrl+t: toggle completed  esc: cancel"
	case modeEdit:
		return "enter: save  esc: cancel"
	}
	return "a: add  space: toggle  e: edit  d: delete  c: clear completed  tab/1-3: filter  r: reload  q: quit"
}
