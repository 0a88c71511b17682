package devserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/taskboards/taskboards/internal/api"
	"github.com/taskboards/taskboards/internal/demo"
	"github.com/taskboards/taskboards/internal/types"
)

func newServer(t *testing.T, dbConfigured bool) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewServer(&Config{
		Addr:         "127.0.0.1:0",
		DBConfigured: dbConfigured,
		Tasks:        demo.SeedTasks(),
		Logger:       logger,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer dev-token")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusReportsDBFlag(t *testing.T) {
	for _, configured := range []bool{true, false} {
		s := newServer(t, configured)
		rec := do(t, s.Handler(), http.MethodGet, "/status", "", false)
		if rec.Code != http.StatusOK {
			t.Fatalf("status code = %d", rec.Code)
		}
		var payload map[string]any
		if err := sonic.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload["db_configured"] != configured {
			t.Errorf("db_configured = %v, want %v", payload["db_configured"], configured)
		}
		for _, field := range []string{"app_version", "secret_key_configured", "cors_origins", "websocket_origins", "uptime_seconds"} {
			if _, ok := payload[field]; !ok {
				t.Errorf("missing %s", field)
			}
		}
	}
}

func TestDataRoutesWithoutDB(t *testing.T) {
	s := newServer(t, false)
	for _, path := range []string{"/tasks", "/api/tasks", "/api/projects"} {
		if rec := do(t, s.Handler(), http.MethodGet, path, "", true); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", path, rec.Code)
		}
	}
	if rec := do(t, s.Handler(), http.MethodGet, "/", "", false); rec.Code != http.StatusOK {
		t.Errorf("GET / = %d", rec.Code)
	}
}

func TestDataRoutesRequireAuth(t *testing.T) {
	s := newServer(t, true)
	if rec := do(t, s.Handler(), http.MethodGet, "/tasks", "", false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("GET /tasks without token = %d", rec.Code)
	}
	rec := do(t, s.Handler(), http.MethodGet, "/tasks", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tasks = %d", rec.Code)
	}
	var tasks []types.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 5 {
		t.Fatalf("got %d tasks", len(tasks))
	}
}

func TestTaskCRUD(t *testing.T) {
	s := newServer(t, true)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/tasks", `{"title":"New","status":"Weird"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST = %d: %s", rec.Code, rec.Body.String())
	}
	var created types.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Status != types.StatusBacklog {
		t.Fatalf("unexpected created task %+v", created)
	}

	rec = do(t, h, http.MethodPut, "/api/tasks/m1", `{"title":"Draft onboarding flow","status":"Done","order":2}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT = %d", rec.Code)
	}
	if got := s.Tasks()[0]; got.Status != types.StatusDone || got.Order != 2 {
		t.Fatalf("update not stored: %+v", got)
	}

	if rec := do(t, h, http.MethodPut, "/api/tasks/nope", `{"title":"x"}`, true); rec.Code != http.StatusNotFound {
		t.Fatalf("PUT unknown = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/tasks/m2", "", true); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE = %d", rec.Code)
	}
	if types.IndexOf(s.Tasks(), "m2") >= 0 {
		t.Fatal("m2 still stored after delete")
	}
}

func TestClientAgainstServer(t *testing.T) {
	s := newServer(t, true)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	client := api.New(srv.URL, api.WithToken(func() string { return "dev-token" }))
	tasks, err := client.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	tasks[1].Status = types.StatusReview
	if err := client.UpdateTask(context.Background(), tasks[1]); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if got := s.Tasks()[1].Status; got != types.StatusReview {
		t.Fatalf("status = %s", got)
	}

	anon := api.New(srv.URL)
	if _, err := anon.Tasks(context.Background()); !api.IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
}

func TestPresenceHub(t *testing.T) {
	s := newServer(t, true)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := websocket.Dial(ctx, "ws://"+s.Addr()+"/ws", nil); err == nil {
		t.Fatal("expected dial without token to fail")
	}

	alice := dial(t, ctx, s.Addr())
	bob := dial(t, ctx, s.Addr())
	waitFor(t, func() bool { return s.Hub().ClientCount() == 2 })

	send(t, ctx, alice, `{"type":"join","user":{"id":"u1","name":"Alice"}}`)
	msg := next(t, ctx, bob, func(m Message) bool { return m.Type == "presence" })
	if len(msg.Users) != 1 || msg.Users[0].ID != "u1" {
		t.Fatalf("unexpected presence %+v", msg)
	}

	send(t, ctx, bob, `{"type":"join","user":{"id":"u2","name":"Bob"}}`)
	next(t, ctx, alice, func(m Message) bool { return m.Type == "presence" && len(m.Users) == 2 })

	send(t, ctx, alice, `not json`)
	send(t, ctx, alice, `{"type":"cursor","userId":"spoofed","x":10,"y":20}`)
	msg = next(t, ctx, bob, func(m Message) bool { return m.Type == "cursor" })
	if msg.UserID != "u1" || msg.X != 10 || msg.Y != 20 {
		t.Fatalf("unexpected cursor %+v", msg)
	}

	alice.Close(websocket.StatusNormalClosure, "")
	next(t, ctx, bob, func(m Message) bool {
		return m.Type == "presence" && len(m.Users) == 1 && m.Users[0].ID == "u2"
	})
	bob.Close(websocket.StatusNormalClosure, "")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func dial(t *testing.T, ctx context.Context, addr string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/ws?token=dev-token", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, payload string) {
	t.Helper()
	if err := conn.Write(ctx, websocket.MessageText, []byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// next reads until a message satisfying match arrives.
func next(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(Message) bool) Message {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}
