package models

import "time"

// Task is the single record kept by the store.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// UpdateTaskRequest is the body of PUT /api/tasks/{id}. Both mutable fields are replaced.
type UpdateTaskRequest struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// ErrorResponse is written for every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
