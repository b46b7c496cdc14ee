package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"taskboard/internal/events"
	"taskboard/internal/logger"
	"taskboard/internal/models"
	"taskboard/internal/storage"
)

// MaxDescriptionLength is counted in characters, not bytes.
const MaxDescriptionLength = 1000

var (
	// ErrValidation wraps every rejected description.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is the storage sentinel re-exported for handlers.
	ErrNotFound = storage.ErrNotFound
)

var (
	addTaskCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_tasks_added_total",
			Help: "Total number of AddTask operations",
		},
		[]string{"status"},
	)

	updateTaskCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_tasks_updated_total",
			Help: "Total number of UpdateTask operations",
		},
		[]string{"status"},
	)

	deleteTaskCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_tasks_deleted_total",
			Help: "Total number of DeleteTask operations",
		},
		[]string{"status"},
	)

	taskDescLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskboard_task_desc_length_chars",
			Help:    "Length distribution of task descriptions",
			Buckets: []float64{10, 50, 100, 500, 1000},
		},
	)

	addTaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskboard_add_task_duration_seconds",
			Help:    "Duration of AddTask operation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	updateTaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskboard_update_task_duration_seconds",
			Help:    "Duration of UpdateTask operation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	tasksStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskboard_tasks",
			Help: "Number of tasks currently in the store",
		},
	)
)

// TaskManager validates requests, assigns identifiers and reports every
// successful mutation to its publisher.
type TaskManager struct {
	store  storage.Store
	events events.Publisher
}

func NewTaskManager(store storage.Store, pub events.Publisher) *TaskManager {
	if pub == nil {
		pub = events.Noop{}
	}
	return &TaskManager{store: store, events: pub}
}

func (tm *TaskManager) ListTasks(ctx context.Context) ([]models.Task, error) {
	return tm.store.List(ctx)
}

func (tm *TaskManager) GetTask(ctx context.Context, id string) (models.Task, error) {
	return tm.store.Get(ctx, id)
}

func (tm *TaskManager) AddTask(ctx context.Context, description string, completed bool) (models.Task, error) {
	startTime := time.Now()
	defer func() {
		addTaskDuration.Observe(time.Since(startTime).Seconds())
	}()

	description, err := validateDescription(description)
	if err != nil {
		addTaskCount.WithLabelValues("error").Inc()
		return models.Task{}, err
	}

	now := time.Now()
	task := models.Task{
		ID:          uuid.New().String(),
		Description: description,
		Completed:   completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := tm.store.Create(ctx, task); err != nil {
		addTaskCount.WithLabelValues("error").Inc()
		return models.Task{}, fmt.Errorf("store task: %w", err)
	}

	addTaskCount.WithLabelValues("success").Inc()
	taskDescLength.Observe(float64(utf8.RuneCountInString(description)))
	tm.refreshGauge(ctx)
	tm.publish(events.TaskCreated, task)

	logger.Debug(ctx, "task created", "task_id", task.ID)
	return task, nil
}

// UpdateTask replaces description and completed of an existing task.
// An unknown id is reported as ErrNotFound whatever the request holds.
func (tm *TaskManager) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (models.Task, error) {
	startTime := time.Now()
	defer func() {
		updateTaskDuration.Observe(time.Since(startTime).Seconds())
	}()

	if _, err := tm.store.Get(ctx, id); err != nil {
		updateTaskCount.WithLabelValues("error").Inc()
		return models.Task{}, err
	}

	description, err := validateDescription(req.Description)
	if err != nil {
		updateTaskCount.WithLabelValues("error").Inc()
		return models.Task{}, err
	}

	task, err := tm.store.Update(ctx, id, description, req.Completed)
	if err != nil {
		updateTaskCount.WithLabelValues("error").Inc()
		return models.Task{}, err
	}

	updateTaskCount.WithLabelValues("success").Inc()
	tm.publish(events.TaskUpdated, task)

	logger.Debug(ctx, "task updated", "task_id", id, "completed", task.Completed)
	return task, nil
}

func (tm *TaskManager) DeleteTask(ctx context.Context, id string) error {
	if err := tm.store.Delete(ctx, id); err != nil {
		deleteTaskCount.WithLabelValues("error").Inc()
		return err
	}

	deleteTaskCount.WithLabelValues("success").Inc()
	tm.refreshGauge(ctx)
	tm.publish(events.TaskDeleted, models.Task{ID: id})

	logger.Debug(ctx, "task deleted", "task_id", id)
	return nil
}

func (tm *TaskManager) publish(kind events.Type, task models.Task) {
	tm.events.Publish(events.Event{Type: kind, Task: task, At: time.Now()})
}

func (tm *TaskManager) refreshGauge(ctx context.Context) {
	n, err := tm.store.Count(ctx)
	if err != nil {
		logger.Error(ctx, err, "count tasks")
		return
	}
	tasksStored.Set(float64(n))
}

func validateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("%w: description cannot be empty", ErrValidation)
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", fmt.Errorf("%w: description cannot exceed %d characters", ErrValidation, MaxDescriptionLength)
	}
	return description, nil
}
