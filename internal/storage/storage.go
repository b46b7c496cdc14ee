package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskboard/internal/models"
)

// ErrNotFound is returned when no task has the requested ID.
var ErrNotFound = errors.New("task not found")

// Store is the task storage abstraction. Each call is atomic with respect to the others.
type Store interface {
	List(ctx context.Context) ([]models.Task, error)
	Get(ctx context.Context, id string) (models.Task, error)
	Create(ctx context.Context, task models.Task) error
	Update(ctx context.Context, id, description string, completed bool) (models.Task, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)

	Close() error
}

// MemoryStorage keeps tasks in insertion order in a plain slice.
type MemoryStorage struct {
	mu    sync.Mutex
	tasks []models.Task
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{tasks: make([]models.Task, 0)}
}

func (m *MemoryStorage) List(ctx context.Context) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make([]models.Task, len(m.tasks))
	copy(tasks, m.tasks)
	return tasks, nil
}

func (m *MemoryStorage) Get(ctx context.Context, id string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return m.tasks[i], nil
}

func (m *MemoryStorage) Create(ctx context.Context, task models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(task.ID) >= 0 {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *MemoryStorage) Update(ctx context.Context, id, description string, completed bool) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	m.tasks[i].Description = description
	m.tasks[i].Completed = completed
	m.tasks[i].UpdatedAt = time.Now()
	return m.tasks[i], nil
}

func (m *MemoryStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
	return nil
}

func (m *MemoryStorage) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks), nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

// indexOf is a linear scan; callers hold mu.
func (m *MemoryStorage) indexOf(id string) int {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return i
		}
	}
	return -1
}
