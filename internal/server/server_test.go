package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"taskboard/internal/events"
	"taskboard/internal/manager"
	"taskboard/internal/models"
	"taskboard/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *events.Hub) {
	t.Helper()
	hub := events.NewHub()
	tm := manager.NewTaskManager(storage.NewMemoryStorage(), hub)
	srv := httptest.NewServer(NewRouter(tm, hub))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			rdr = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func listTasks(t *testing.T, base string) []models.Task {
	t.Helper()
	resp := doJSON(t, http.MethodGet, base+"/api/tasks", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/tasks: status %d", resp.StatusCode)
	}
	var tasks []models.Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return tasks
}

func findTask(tasks []models.Task, id string) (models.Task, bool) {
	for _, task := range tasks {
		if task.ID == id {
			return task, true
		}
	}
	return models.Task{}, false
}

func TestEndToEnd(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", models.CreateTaskRequest{Description: "buy milk"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST: expected 201, got %d", resp.StatusCode)
	}
	var created models.Task
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" || created.Completed {
		t.Fatalf("unexpected created task: %+v", created)
	}
	if loc := resp.Header.Get("Location"); loc != "/api/tasks/"+created.ID {
		t.Errorf("unexpected Location %q", loc)
	}

	task, ok := findTask(listTasks(t, srv.URL), created.ID)
	if !ok || task.Completed {
		t.Fatalf("expected listed task with completed=false, got %+v (found=%v)", task, ok)
	}

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/tasks/"+created.ID,
		models.UpdateTaskRequest{Description: "buy milk", Completed: true})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT: expected 204, got %d", resp.StatusCode)
	}

	task, ok = findTask(listTasks(t, srv.URL), created.ID)
	if !ok || !task.Completed {
		t.Fatalf("expected completed=true after PUT, got %+v", task)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/tasks/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE: expected 204, got %d", resp.StatusCode)
	}

	if _, ok := findTask(listTasks(t, srv.URL), created.ID); ok {
		t.Error("task still listed after DELETE")
	}
}

func TestListEmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/tasks", nil)
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected [], got %s", body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestCreateValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := map[string]string{
		"empty":      `{"description":""}`,
		"whitespace": `{"description":"   "}`,
		"missing":    `{"completed":true}`,
		"malformed":  `{"description":`,
		"wrong type": `{"description":42}`,
		"trailing":   `{"description":"a"} trailing garbage`,
		"two values": `{"description":"a"}{"description":"b"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
			var errResp models.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
				t.Errorf("expected JSON error body, got err=%v body=%+v", err, errResp)
			}
		})
	}

	if n := len(listTasks(t, srv.URL)); n != 0 {
		t.Errorf("store changed after rejected creates: %d tasks", n)
	}
}

func TestCreateCompletedTask(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", models.CreateTaskRequest{Description: "done already", Completed: true})
	var created models.Task
	_ = json.NewDecoder(resp.Body).Decode(&created)
	if !created.Completed {
		t.Error("expected completed=true to be honoured")
	}
}

func TestUnknownIDs(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/tasks", models.CreateTaskRequest{Description: "bystander"})

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/tasks/nope", models.UpdateTaskRequest{Description: "x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("PUT unknown: expected 404, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/tasks/nope", `{"description":"","completed":true}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("PUT unknown with blank description: expected 404, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/tasks/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("DELETE unknown: expected 404, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tasks/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET unknown: expected 404, got %d", resp.StatusCode)
	}

	tasks := listTasks(t, srv.URL)
	if len(tasks) != 1 || tasks[0].Description != "bystander" {
		t.Errorf("store changed: %+v", tasks)
	}
}

func TestUpdateRejectsBadBodies(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", models.CreateTaskRequest{Description: "original"})
	var created models.Task
	_ = json.NewDecoder(resp.Body).Decode(&created)

	for _, body := range []string{`{"description":"  ","completed":true}`, `not json`} {
		resp := doJSON(t, http.MethodPut, srv.URL+"/api/tasks/"+created.ID, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("PUT %s: expected 400, got %d", body, resp.StatusCode)
		}
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tasks/"+created.ID, nil)
	var got models.Task
	_ = json.NewDecoder(resp.Body).Decode(&got)
	if got.Description != "original" || got.Completed {
		t.Errorf("task changed by rejected update: %+v", got)
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected Access-Control-Allow-Origin *, got %q", got)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", resp.StatusCode)
	}

	doJSON(t, http.MethodPost, srv.URL+"/api/tasks", models.CreateTaskRequest{Description: "counted"})

	resp = doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"taskboard_http_requests_total", "taskboard_tasks_added_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
	if !strings.Contains(string(body), `route="/api/tasks"`) {
		t.Error("expected requests to be labelled by route pattern")
	}
}

func TestEventsFeed(t *testing.T) {
	srv, hub := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	doJSON(t, http.MethodPost, srv.URL+"/api/tasks", models.CreateTaskRequest{Description: "streamed"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != events.TaskCreated || ev.Task.Description != "streamed" {
		t.Errorf("unexpected event: %+v", ev)
	}
}
