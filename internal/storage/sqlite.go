package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskboard/internal/models"

	_ "modernc.org/sqlite"
)

// SQLiteStorage keeps tasks in a private in-memory SQLite database.
// The database lives exactly as long as the storage value.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage() (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Every new connection to ":memory:" is a fresh empty database, so pin the pool to one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db}, nil
}

func createTables(db *sql.DB) error {
	createTasksTable := `
	CREATE TABLE IF NOT EXISTS tasks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`

	if _, err := db.Exec(createTasksTable); err != nil {
		return fmt.Errorf("create table tasks: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

const selectTask = `SELECT id, description, completed, created_at, updated_at FROM tasks`

func (s *SQLiteStorage) List(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, selectTask+` ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *SQLiteStorage) Get(ctx context.Context, id string) (models.Task, error) {
	return getTask(ctx, s.db, id)
}

func (s *SQLiteStorage) Create(ctx context.Context, task models.Task) error {
	query := `
	INSERT INTO tasks (id, description, completed, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.Description, task.Completed, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) Update(ctx context.Context, id, description string, completed bool) (models.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Task{}, err
	}
	defer tx.Rollback()

	query := `UPDATE tasks SET description = ?, completed = ?, updated_at = ? WHERE id = ?`
	result, err := tx.ExecContext(ctx, query, description, completed, time.Now(), id)
	if err != nil {
		return models.Task{}, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return models.Task{}, err
	}
	if rowsAffected == 0 {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	task, err := getTask(ctx, tx, id)
	if err != nil {
		return models.Task{}, err
	}
	return task, tx.Commit()
}

func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&n)
	return n, err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTask(ctx context.Context, q queryRower, id string) (models.Task, error) {
	var task models.Task
	err := q.QueryRowContext(ctx, selectTask+` WHERE id = ?`, id).Scan(
		&task.ID, &task.Description, &task.Completed, &task.CreatedAt, &task.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	for rows.Next() {
		var task models.Task
		err := rows.Scan(&task.ID, &task.Description, &task.Completed, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
