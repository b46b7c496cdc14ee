package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard/internal/client"
	"taskboard/internal/events"
	"taskboard/internal/models"
	"taskboard/internal/testutil"
)

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model, cmd
}

func press(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	return update(t, m, keyMsg(key))
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

// finish runs a service command and feeds its result back. The status
// timer it schedules is dropped.
func finish(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m, _ = update(t, m, cmd())
	return m
}

func newModel(t *testing.T, api *testutil.FakeAPI) Model {
	t.Helper()
	m := New(client.NewState(api), nil)
	return finish(t, m, m.loadCmd())
}

func calls(api *testutil.FakeAPI, prefix string) int {
	n := 0
	for _, c := range api.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func TestViewShowsTasksAndCounts(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.Seed("buy milk", false)
	api.Seed("walk dog", true)
	m := newModel(t, api)

	view := m.View()
	for _, want := range []string{"buy milk", "walk dog", "2 total, 1 active, 1 completed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestAddTask(t *testing.T) {
	api := testutil.NewFakeAPI()
	m := newModel(t, api)

	m, _ = press(t, m, "a")
	if m.mode != modeAdd {
		t.Fatal("expected add mode")
	}
	m = typeText(t, m, "buy milk")
	m, _ = press(t, m, "ctrl+t")
	m, cmd := press(t, m, "enter")
	m = finish(t, m, cmd)

	if m.mode != modeList {
		t.Error("expected to return to list mode")
	}
	tasks := api.Tasks()
	if len(tasks) != 1 || tasks[0].Description != "buy milk" || !tasks[0].Completed {
		t.Fatalf("unexpected service state: %+v", tasks)
	}
	if !strings.HasPrefix(m.status.text, "Added") || m.status.isError {
		t.Errorf("unexpected status: %+v", m.status)
	}
	if !strings.Contains(m.View(), "buy milk") {
		t.Error("new task not rendered")
	}
}

func TestAddBlankDoesNotCallService(t *testing.T) {
	api := testutil.NewFakeAPI()
	m := newModel(t, api)

	m, _ = press(t, m, "a")
	m = typeText(t, m, "   ")
	m, cmd := press(t, m, "enter")
	m = finish(t, m, cmd)

	if calls(api, "create") != 0 {
		t.Error("blank description reached the service")
	}
	if !m.status.isError || m.status.text != "Description cannot be empty" {
		t.Errorf("unexpected status: %+v", m.status)
	}
}

func TestAddEscCancels(t *testing.T) {
	api := testutil.NewFakeAPI()
	m := newModel(t, api)

	m, _ = press(t, m, "a")
	m = typeText(t, m, "never mind")
	m, _ = press(t, m, "esc")

	if m.mode != modeList || m.input.Value() != "" {
		t.Errorf("expected input cleared and list mode, got mode=%d value=%q", m.mode, m.input.Value())
	}
	if calls(api, "create") != 0 {
		t.Error("cancelled add reached the service")
	}
}

func TestToggleSelected(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.Seed("first", false)
	api.Seed("second", false)
	m := newModel(t, api)

	m, _ = press(t, m, "j")
	m, cmd := press(t, m, " ")
	m = finish(t, m, cmd)

	tasks := api.Tasks()
	if tasks[0].Completed || !tasks[1].Completed {
		t.Errorf("wrong task toggled: %+v", tasks)
	}
	if m.status.text != "Marked completed" {
		t.Errorf("unexpected status %q", m.status.text)
	}
}

func TestInlineEdit(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.Seed("old", false)
	m := newModel(t, api)

	m, _ = press(t, m, "e")
	if m.mode != modeEdit || m.input.Value() != "old" {
		t.Fatalf("edit should start from the current description, got %q", m.input.Value())
	}
	m = typeText(t, m, " and new")
	m, cmd := press(t, m, "enter")
	m = finish(t, m, cmd)

	if got := api.Tasks()[0].Description; got != "old and new" {
		t.Errorf("expected edited description, got %q", got)
	}
	if m.status.text != "Saved" {
		t.Errorf("unexpected status %q", m.status.text)
	}
}

func TestInlineEditUnchangedIsCancelled(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.Seed("same", false)
	m := newModel(t, api)

	m, _ = press(t, m, "enter")
	m, cmd := press(t, m, "enter")
	m = finish(t, m, cmd)

	if calls(api, "update:") != 0 {
		t.Error("unchanged draft reached the service")
	}
	if m.status.text != "Edit cancelled" || m.status.isError {
		t.Errorf("unexpected status: %+v", m.status)
	}
}

func TestInlineEditEscDiscardsDraft(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.Seed("keep me", false)
	m := newModel(t, api)

	m, _ = press(t, m, "e")
	m = typeText(t, m, " changed")
	m, _ = press(t, m, "esc")

	if calls(api, "update:") != 0 {
		t.Error("discarded draft reached the service")
	}
	if got, _ := m.selected(); got.Description != "keep me" {
		t.Errorf("mirror changed: %+v", got)
	}
}

func TestDeleteSelected(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.Seed("only", false)
	m := newModel(t, api)

	m, cmd := press(t, m, "d")
	m = finish(t, m, cmd)

	if len(api.Tasks()) != 0 || len(m.visible()) != 0 {
		t.Error("task not deleted")
	}
	if m.cursor != 0 {
		t.Errorf("cursor should clamp to 0, got %d", m.cursor)
	}
}

func TestFilterKeys(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.Seed("active", false)
	api.Seed("done", true)
	m := newModel(t, api)

	m, _ = press(t, m, "2")
	if v := m.visible(); len(v) != 1 || v[0].Description != "active" {
		t.Errorf("active filter: %+v", v)
	}
	m, _ = press(t, m, "3")
	if v := m.visible(); len(v) != 1 || v[0].Description != "done" {
		t.Errorf("completed filter: %+v", v)
	}
	m, _ = press(t, m, "tab")
	if m.filter != client.FilterAll || len(m.visible()) != 2 {
		t.Errorf("tab should wrap to all, got %v", m.filter)
	}
}

func TestClearCompletedPartialFailure(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.Seed("active", false)
	api.Seed("done ok", true)
	stuck := api.Seed("done stuck", true)
	api.DeleteErr[stuck] = errors.New("timeout")
	m := newModel(t, api)

	m, cmd := press(t, m, "c")
	m = finish(t, m, cmd)

	if !m.status.isError || !strings.Contains(m.status.text, "Cleared 1, 1 could not be deleted") {
		t.Errorf("unexpected status: %+v", m.status)
	}
	if c := m.state.Counts(); c.Total != 2 || c.Completed != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

func TestFailedCallShowsFriendlyError(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.Seed("task", false)
	api.UpdateErr = &client.APIError{Status: 404, Message: "task not found"}
	m := newModel(t, api)

	m, cmd := press(t, m, " ")
	m = finish(t, m, cmd)

	if !m.status.isError || !strings.Contains(m.status.text, "Press r to reload") {
		t.Errorf("unexpected status: %+v", m.status)
	}
	if got, _ := m.selected(); got.Completed {
		t.Error("mirror patched despite failure")
	}
}

func TestStatusClearsOnlyLatest(t *testing.T) {
	m := New(client.NewState(testutil.NewFakeAPI()), nil)

	m, _ = m.setStatus("first", false)
	first := m.status.seq
	m, _ = m.setStatus("second", false)

	m, _ = update(t, m, clearStatusMsg{seq: first})
	if m.status.text != "second" {
		t.Fatalf("stale timer cleared a newer status: %+v", m.status)
	}
	m, _ = update(t, m, clearStatusMsg{seq: m.status.seq})
	if m.status.text != "" {
		t.Errorf("status not cleared: %+v", m.status)
	}
}

func TestChangeFeedUpdatesList(t *testing.T) {
	feed := make(chan events.Event, 1)
	m := New(client.NewState(testutil.NewFakeAPI()), feed)
	m = finish(t, m, m.loadCmd())

	feed <- events.Event{Type: events.TaskCreated, Task: models.Task{ID: "remote", Description: "from another client"}}
	m, next := update(t, m, m.waitForEvent()())

	if !strings.Contains(m.View(), "from another client") {
		t.Error("remote change not rendered")
	}
	if next == nil {
		t.Error("expected to keep listening for events")
	}
}

func TestQuit(t *testing.T) {
	m := newModel(t, testutil.NewFakeAPI())
	m, cmd := press(t, m, "q")
	if !m.quitting || cmd == nil {
		t.Fatal("expected quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestToggleTaskRemovedElsewhere(t *testing.T) {
	api := testutil.NewFakeAPI()
	id := api.Seed("gone soon", false)
	m := newModel(t, api)

	if err := api.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	m, cmd := press(t, m, " ")
	m = finish(t, m, cmd)

	if !m.status.isError || !strings.Contains(m.status.text, "Press r to reload") {
		t.Errorf("unexpected status: %+v", m.status)
	}
}

func TestResyncReloadsMissedChanges(t *testing.T) {
	api := testutil.NewFakeAPI()
	feed := make(chan events.Event)
	m := New(client.NewState(api), feed)
	m = finish(t, m, m.loadCmd())

	// Created while the change feed was disconnected.
	api.Seed("missed while offline", false)

	m, cmd := update(t, m, eventMsg{ev: events.Event{Type: events.Resync}})
	if cmd == nil {
		t.Fatal("expected reload and listen commands")
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok || len(batch) != 2 {
		t.Fatalf("expected a batch of two commands, got %T", msg)
	}
	m = finish(t, m, batch[0])

	if !strings.Contains(m.View(), "missed while offline") {
		t.Error("missed task not rendered after resync")
	}
}
