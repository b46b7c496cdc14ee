package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskboard/internal/logger"
	"taskboard/internal/manager"
	"taskboard/internal/models"
)

const maxBodyBytes = 1 << 20

var errTrailingData = errors.New("unexpected data after JSON body")

// NewRouter wires the task API onto tm. feed serves /api/events and may be nil.
func NewRouter(tm *manager.TaskManager, feed http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Location"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", listTasksHandler(tm))
		r.Post("/tasks", addTaskHandler(tm))
		r.Get("/tasks/{id}", getTaskHandler(tm))
		r.Put("/tasks/{id}", updateTaskHandler(tm))
		r.Delete("/tasks/{id}", deleteTaskHandler(tm))

		if feed != nil {
			r.Handle("/events", feed)
		}
	})

	return r
}

func listTasksHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks, err := tm.ListTasks(r.Context())
		if err != nil {
			writeTaskError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

func addTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateTaskRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		task, err := tm.AddTask(r.Context(), req.Description, req.Completed)
		if err != nil {
			writeTaskError(w, r, err)
			return
		}

		logger.Info(r.Context(), "task created", "task_id", task.ID)
		w.Header().Set("Location", "/api/tasks/"+task.ID)
		writeJSON(w, http.StatusCreated, task)
	}
}

func getTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := tm.GetTask(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeTaskError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func updateTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req models.UpdateTaskRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if _, err := tm.UpdateTask(r.Context(), id, req); err != nil {
			writeTaskError(w, r, err)
			return
		}

		logger.Info(r.Context(), "task updated", "task_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteTaskHandler(tm *manager.TaskManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := tm.DeleteTask(r.Context(), id); err != nil {
			writeTaskError(w, r, err)
			return
		}

		logger.Info(r.Context(), "task deleted", "task_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeBody accepts exactly one JSON value, optionally followed by whitespace.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

// writeTaskError maps manager errors onto the two client-visible kinds.
func writeTaskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, manager.ErrValidation):
		logger.Warn(r.Context(), "rejected task", "error", err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, manager.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	default:
		logger.Error(r.Context(), err, "task operation failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(context.Background(), err, "encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
