package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"taskboard/internal/events"
	"taskboard/internal/models"
)

var (
	// ErrEmptyDescription is returned by Add without calling the service.
	ErrEmptyDescription = errors.New("description is empty")
	// ErrEditCancelled means the draft was blank or unchanged; nothing was sent.
	ErrEditCancelled = errors.New("edit cancelled")
	// ErrUnknownTask means the ID is not in the local mirror.
	ErrUnknownTask = errors.New("task is not in the local list")
)

type Filter int

const (
	FilterAll Filter = iota
	FilterActive
	FilterCompleted
)

func (f Filter) String() string {
	switch f {
	case FilterActive:
		return "active"
	case FilterCompleted:
		return "completed"
	default:
		return "all"
	}
}

// Next cycles all -> active -> completed -> all.
func (f Filter) Next() Filter {
	return (f + 1) % 3
}

func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "active", "pending":
		return FilterActive, nil
	case "completed", "done":
		return FilterCompleted, nil
	}
	return FilterAll, fmt.Errorf("unknown filter %q (want all|active|completed)", s)
}

func (f Filter) match(t models.Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

type Counts struct {
	Total     int
	Active    int
	Completed int
}

// State mirrors the service's task list. Every mutation goes to the service
// first; the mirror is patched only after the call succeeds and is left
// untouched when it fails.
type State struct {
	api API

	mu    sync.RWMutex
	tasks []models.Task
}

func NewState(api API) *State {
	return &State{api: api, tasks: []models.Task{}}
}

// Load replaces the mirror with the service's current list.
func (s *State) Load(ctx context.Context) error {
	tasks, err := s.api.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tasks = append([]models.Task(nil), tasks...)
	s.mu.Unlock()
	return nil
}

func (s *State) Snapshot() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Task(nil), s.tasks...)
}

func (s *State) Find(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i], true
	}
	return models.Task{}, false
}

func (s *State) Visible(f Filter) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.match(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s *State) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{Total: len(s.tasks)}
	for _, t := range s.tasks {
		if t.Completed {
			c.Completed++
		}
	}
	c.Active = c.Total - c.Completed
	return c
}

func (s *State) Add(ctx context.Context, description string, completed bool) (models.Task, error) {
	if strings.TrimSpace(description) == "" {
		return models.Task{}, ErrEmptyDescription
	}

	task, err := s.api.Create(ctx, description, completed)
	if err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	s.upsert(task)
	s.mu.Unlock()
	return task, nil
}

func (s *State) Toggle(ctx context.Context, id string) (models.Task, error) {
	task, ok := s.Find(id)
	if !ok {
		return models.Task{}, ErrUnknownTask
	}
	task.Completed = !task.Completed
	return s.replace(ctx, task)
}

// Edit commits draft as the new description. A blank or unchanged draft
// returns ErrEditCancelled without calling the service.
func (s *State) Edit(ctx context.Context, id, draft string) (models.Task, error) {
	task, ok := s.Find(id)
	if !ok {
		return models.Task{}, ErrUnknownTask
	}

	draft = strings.TrimSpace(draft)
	if draft == "" || draft == task.Description {
		return task, ErrEditCancelled
	}
	task.Description = draft
	return s.replace(ctx, task)
}

func (s *State) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	s.remove(id)
	s.mu.Unlock()
	return nil
}

// ClearCompleted deletes every completed task with one parallel call each.
// There is no atomicity: tasks whose delete succeeded leave the mirror, the
// rest stay and their errors are joined into the result.
func (s *State) ClearCompleted(ctx context.Context) (int, error) {
	var ids []string
	for _, t := range s.Visible(FilterCompleted) {
		ids = append(ids, t.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = s.api.Delete(ctx, id)
		}(i, id)
	}
	wg.Wait()

	removed := 0
	var failed []error
	s.mu.Lock()
	for i, id := range ids {
		if errs[i] != nil {
			failed = append(failed, fmt.Errorf("delete %s: %w", id, errs[i]))
			continue
		}
		s.remove(id)
		removed++
	}
	s.mu.Unlock()

	return removed, errors.Join(failed...)
}

// Apply merges a server-confirmed change. Applying the same event twice, or an
// event for a change already patched locally, is a no-op.
func (s *State) Apply(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case events.TaskCreated, events.TaskUpdated:
		s.upsert(ev.Task)
	case events.TaskDeleted:
		s.remove(ev.Task.ID)
	}
}

func (s *State) replace(ctx context.Context, task models.Task) (models.Task, error) {
	if err := s.api.Update(ctx, task); err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(task.ID); i >= 0 {
		s.tasks[i].Description = task.Description
		s.tasks[i].Completed = task.Completed
		return s.tasks[i], nil
	}
	return task, nil
}

// Callers of upsert, remove and indexOf hold mu.

func (s *State) upsert(task models.Task) {
	if i := s.indexOf(task.ID); i >= 0 {
		s.tasks[i] = task
		return
	}
	s.tasks = append(s.tasks, task)
}

func (s *State) remove(id string) {
	if i := s.indexOf(id); i >= 0 {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	}
}

func (s *State) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// FriendlyMessage turns a failed operation into the short text shown to users.
func FriendlyMessage(op string, err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return fmt.Sprintf("Could not %s: the description is not valid.", op)
	case IsNotFound(err):
		return fmt.Sprintf("Could not %s: the task no longer exists. Press r to reload.", op)
	default:
		return fmt.Sprintf("Could not %s. Please try again.", op)
	}
}
