package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"taskboard/internal/client"
	"taskboard/internal/models"
)

const helpText = `Commands:
/list [all|active|completed] - show tasks
/add <text> - add a task
/done <n> - toggle task n from the last list
/edit <n> <text> - change the description of task n
/delete <n> - delete task n
/clear - delete every completed task
/help - this message

Plain text messages are added as new tasks.`

// Bot turns chat commands into task service calls. Numbers in commands refer
// to positions in the chat's most recent /list reply.
type Bot struct {
	state *client.State

	mu     sync.Mutex
	listed map[int64][]string
}

func NewBot(state *client.State) *Bot {
	return &Bot{state: state, listed: make(map[int64][]string)}
}

// Reply handles one message and returns the text to send back.
func (b *Bot) Reply(ctx context.Context, chatID int64, command, args string) string {
	args = strings.TrimSpace(args)

	switch command {
	case "start", "help":
		return helpText
	case "list", "add", "", "done", "edit", "delete", "clear":
	default:
		return "Unknown command. Use /help for the list of commands."
	}

	if err := b.state.Load(ctx); err != nil {
		return client.FriendlyMessage("reach the task service", err)
	}

	switch command {
	case "list":
		return b.list(chatID, args)
	case "add", "":
		return b.add(ctx, args)
	case "done":
		return b.toggle(ctx, chatID, args)
	case "edit":
		return b.edit(ctx, chatID, args)
	case "delete":
		return b.delete(ctx, chatID, args)
	default:
		return b.clear(ctx)
	}
}

func (b *Bot) list(chatID int64, args string) string {
	filter, err := client.ParseFilter(args)
	if err != nil {
		return err.Error()
	}

	tasks := b.state.Visible(filter)
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	b.mu.Lock()
	b.listed[chatID] = ids
	b.mu.Unlock()

	if len(tasks) == 0 {
		return "No tasks found"
	}

	var sb strings.Builder
	for i, t := range tasks {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		fmt.Fprintf(&sb, "%d. %s %s\n", i+1, mark, t.Description)
	}
	c := b.state.Counts()
	fmt.Fprintf(&sb, "\n%d total, %d active, %d completed", c.Total, c.Active, c.Completed)
	return sb.String()
}

func (b *Bot) add(ctx context.Context, text string) string {
	task, err := b.state.Add(ctx, text, false)
	if errors.Is(err, client.ErrEmptyDescription) {
		return "Write the task after the command: /add Buy milk"
	}
	if err != nil {
		return client.FriendlyMessage("add the task", err)
	}
	return fmt.Sprintf("Added: %s", task.Description)
}

func (b *Bot) toggle(ctx context.Context, chatID int64, args string) string {
	task, errText := b.pick(chatID, args)
	if errText != "" {
		return errText
	}
	updated, err := b.state.Toggle(ctx, task.ID)
	if err != nil {
		return b.failure("update the task", err)
	}
	if updated.Completed {
		return fmt.Sprintf("Done: %s", updated.Description)
	}
	return fmt.Sprintf("Reopened: %s", updated.Description)
}

func (b *Bot) edit(ctx context.Context, chatID int64, args string) string {
	pos, text, _ := strings.Cut(args, " ")
	task, errText := b.pick(chatID, pos)
	if errText != "" {
		return errText
	}
	updated, err := b.state.Edit(ctx, task.ID, text)
	if errors.Is(err, client.ErrEditCancelled) {
		return "Nothing to change. Usage: /edit 1 New text"
	}
	if err != nil {
		return b.failure("edit the task", err)
	}
	return fmt.Sprintf("Updated: %s", updated.Description)
}

func (b *Bot) delete(ctx context.Context, chatID int64, args string) string {
	task, errText := b.pick(chatID, args)
	if errText != "" {
		return errText
	}
	if err := b.state.Delete(ctx, task.ID); err != nil {
		return b.failure("delete the task", err)
	}
	return fmt.Sprintf("Deleted: %s", task.Description)
}

func (b *Bot) clear(ctx context.Context) string {
	removed, err := b.state.ClearCompleted(ctx)
	if err != nil {
		return fmt.Sprintf("Cleared %d completed tasks, some could not be deleted. Try /clear again.", removed)
	}
	return fmt.Sprintf("Cleared %d completed tasks", removed)
}

// pick resolves a 1-based position against the chat's last listing, or the
// full list when the chat has not listed anything yet.
func (b *Bot) pick(chatID int64, arg string) (models.Task, string) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 {
		return models.Task{}, "Give the task number from /list, e.g. /done 1"
	}

	b.mu.Lock()
	ids, ok := b.listed[chatID]
	b.mu.Unlock()
	if !ok {
		for _, t := range b.state.Snapshot() {
			ids = append(ids, t.ID)
		}
	}

	if n > len(ids) {
		return models.Task{}, fmt.Sprintf("There is no task %d. Use /list to see the numbers.", n)
	}
	task, found := b.state.Find(ids[n-1])
	if !found {
		return models.Task{}, "That task no longer exists. Use /list to refresh."
	}
	return task, ""
}

func (b *Bot) failure(op string, err error) string {
	if client.IsNotFound(err) {
		return "That task no longer exists. Use /list to refresh."
	}
	return client.FriendlyMessage(op, err)
}
