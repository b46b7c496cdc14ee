// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"taskboard/internal/client"
	"taskboard/internal/models"
)

// NotFound and BadRequest build the errors the real client returns for 404 and 400.
func NotFound() error {
	return &client.APIError{Status: http.StatusNotFound, Message: "task not found"}
}

func BadRequest(msg string) error {
	return &client.APIError{Status: http.StatusBadRequest, Message: msg}
}

// FakeAPI is an in-memory implementation of client.API for testing.
type FakeAPI struct {
	mu     sync.Mutex
	tasks  []models.Task
	nextID int
	calls  []string

	// Error injection for testing
	ListErr   error
	CreateErr error
	UpdateErr error
	DeleteErr map[string]error // taskID -> error
}

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{DeleteErr: make(map[string]error)}
}

// Seed adds a task directly, bypassing call recording. Returns its ID.
func (f *FakeAPI) Seed(description string, completed bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.add(description, completed).ID
}

// Tasks returns the fake server-side list.
func (f *FakeAPI) Tasks() []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Task(nil), f.tasks...)
}

// Calls returns the recorded operations, e.g. "create", "update:<id>".
func (f *FakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeAPI) List(ctx context.Context) ([]models.Task, error) {
	f.record("list")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Tasks(), nil
}

func (f *FakeAPI) Create(ctx context.Context, description string, completed bool) (models.Task, error) {
	f.record("create")
	if f.CreateErr != nil {
		return models.Task{}, f.CreateErr
	}
	if strings.TrimSpace(description) == "" {
		return models.Task{}, BadRequest("validation failed: description cannot be empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.add(description, completed), nil
}

func (f *FakeAPI) Update(ctx context.Context, task models.Task) error {
	f.record("update:" + task.ID)
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID != task.ID {
			continue
		}
		if strings.TrimSpace(task.Description) == "" {
			return BadRequest("validation failed: description cannot be empty")
		}
		f.tasks[i].Description = task.Description
		f.tasks[i].Completed = task.Completed
		f.tasks[i].UpdatedAt = time.Now()
		return nil
	}
	return NotFound()
}

func (f *FakeAPI) Delete(ctx context.Context, id string) error {
	f.record("delete:" + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.DeleteErr[id]; err != nil {
		return err
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return NotFound()
}

func (f *FakeAPI) add(description string, completed bool) models.Task {
	f.nextID++
	now := time.Now()
	task := models.Task{
		ID:          fmt.Sprintf("task-%d", f.nextID),
		Description: description,
		Completed:   completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.tasks = append(f.tasks, task)
	return task
}

func (f *FakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}
