package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"taskboard/internal/client"
	"taskboard/internal/config"
	"taskboard/internal/export"
	"taskboard/internal/logger"
	"taskboard/internal/models"
)

const requestTimeout = 15 * time.Second

var errUsage = errors.New("usage")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Init("todo", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := run(ctx, client.New(cfg.APIURL), os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, api *client.Client, args []string, out io.Writer) error {
	if len(args) < 1 {
		printHelp(out)
		return errUsage
	}

	state := client.NewState(api)
	if err := state.Load(ctx); err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	command, rest := args[0], args[1:]
	switch command {
	case "add":
		return handleAddCommand(ctx, state, rest, out)
	case "list":
		return handleListCommand(state, rest, out)
	case "complete":
		return handleCompleteCommand(ctx, state, rest, out)
	case "edit":
		return handleEditCommand(ctx, state, rest, out)
	case "delete":
		return handleDeleteCommand(ctx, state, rest, out)
	case "clear-completed":
		return handleClearCommand(ctx, state, out)
	case "export":
		return handleExportCommand(state, rest, out)
	case "help", "-h", "--help":
		printHelp(out)
		return nil
	}
	fmt.Fprintf(out, "Unknown command: %s\n", command)
	printHelp(out)
	return errUsage
}

func handleAddCommand(ctx context.Context, state *client.State, args []string, out io.Writer) error {
	addCmd := flag.NewFlagSet("add", flag.ContinueOnError)
	desc := addCmd.String("desc", "", "Task description")
	completed := addCmd.Bool("completed", false, "Create the task already completed")
	if err := addCmd.Parse(args); err != nil {
		return errUsage
	}

	task, err := state.Add(ctx, *desc, *completed)
	if errors.Is(err, client.ErrEmptyDescription) {
		return errors.New("--desc is required")
	}
	if err != nil {
		return errors.New(client.FriendlyMessage("add the task", err))
	}
	fmt.Fprintf(out, "Added task %s\n", task.ID)
	return nil
}

func handleListCommand(state *client.State, args []string, out io.Writer) error {
	listCmd := flag.NewFlagSet("list", flag.ContinueOnError)
	filterFlag := listCmd.String("filter", "all", "Filter tasks (all|active|completed)")
	if err := listCmd.Parse(args); err != nil {
		return errUsage
	}
	filter, err := client.ParseFilter(*filterFlag)
	if err != nil {
		return err
	}

	tasks := state.Visible(filter)
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found")
		return nil
	}
	for _, task := range tasks {
		status := "Active"
		if task.Completed {
			status = "Completed"
		}
		fmt.Fprintf(out, "%s: %s [%s]\n", shortID(task.ID), task.Description, status)
	}
	c := state.Counts()
	fmt.Fprintf(out, "\n%d total, %d active, %d completed\n", c.Total, c.Active, c.Completed)
	return nil
}

func handleCompleteCommand(ctx context.Context, state *client.State, args []string, out io.Writer) error {
	task, err := taskFromFlags("complete", state, args, nil)
	if err != nil {
		return err
	}
	if task.Completed {
		fmt.Fprintf(out, "Task %s is already completed\n", shortID(task.ID))
		return nil
	}
	if _, err := state.Toggle(ctx, task.ID); err != nil {
		return errors.New(client.FriendlyMessage("complete the task", err))
	}
	fmt.Fprintf(out, "Task %s marked as completed\n", shortID(task.ID))
	return nil
}

func handleEditCommand(ctx context.Context, state *client.State, args []string, out io.Writer) error {
	var desc *string
	task, err := taskFromFlags("edit", state, args, func(fs *flag.FlagSet) {
		desc = fs.String("desc", "", "New description")
	})
	if err != nil {
		return err
	}
	_, err = state.Edit(ctx, task.ID, *desc)
	if errors.Is(err, client.ErrEditCancelled) {
		fmt.Fprintln(out, "Nothing to change")
		return nil
	}
	if err != nil {
		return errors.New(client.FriendlyMessage("edit the task", err))
	}
	fmt.Fprintf(out, "Task %s updated\n", shortID(task.ID))
	return nil
}

func handleDeleteCommand(ctx context.Context, state *client.State, args []string, out io.Writer) error {
	task, err := taskFromFlags("delete", state, args, nil)
	if err != nil {
		return err
	}
	if err := state.Delete(ctx, task.ID); err != nil {
		return errors.New(client.FriendlyMessage("delete the task", err))
	}
	fmt.Fprintf(out, "Task %s deleted\n", shortID(task.ID))
	return nil
}

func handleClearCommand(ctx context.Context, state *client.State, out io.Writer) error {
	removed, err := state.ClearCompleted(ctx)
	fmt.Fprintf(out, "Cleared %d completed tasks\n", removed)
	return err
}

func handleExportCommand(state *client.State, args []string, out io.Writer) error {
	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	formatFlag := exportCmd.String("format", "json", "Export format (json|csv|pdf)")
	outFile := exportCmd.String("out", "", "Output file path")
	if err := exportCmd.Parse(args); err != nil {
		return errUsage
	}
	if *outFile == "" {
		return errors.New("--out is required")
	}
	format, err := export.ParseFormat(*formatFlag)
	if err != nil {
		return err
	}

	if err := export.SaveFile(*outFile, format, state.Snapshot()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Tasks exported to %s in %s format\n", *outFile, format)
	return nil
}

// taskFromFlags parses --id (a full ID or a unique prefix) plus any extra
// flags registered by extra.
func taskFromFlags(name string, state *client.State, args []string, extra func(*flag.FlagSet)) (models.Task, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.String("id", "", "Task ID or unique ID prefix")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return models.Task{}, errUsage
	}
	if *id == "" {
		return models.Task{}, errors.New("--id is required")
	}
	return resolve(state, *id)
}

func resolve(state *client.State, id string) (models.Task, error) {
	if task, ok := state.Find(id); ok {
		return task, nil
	}
	var matches []models.Task
	for _, t := range state.Snapshot() {
		if strings.HasPrefix(t.ID, id) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return models.Task{}, fmt.Errorf("no task with id %q", id)
	case 1:
		return matches[0], nil
	}
	return models.Task{}, fmt.Errorf("id %q is ambiguous (%d matches)", id, len(matches))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `Usage: todo <command> [flags]

Commands:
  add      --desc="..." [--completed]        Add new task
  list     [--filter=all|active|completed]   List tasks
  complete --id=ID                           Mark task as completed
  edit     --id=ID --desc="..."              Change a task's description
  delete   --id=ID                           Delete task
  clear-completed                            Delete every completed task
  export   --format=json|csv|pdf --out=FILE  Export tasks

IDs may be shortened to any unique prefix.
The service address comes from TASKS_API_URL (default http://localhost:8080).`)
}
