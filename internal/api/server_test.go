package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"praxus/pkg/assistant"
	"praxus/pkg/logx"
	"praxus/pkg/schedule"
	"praxus/pkg/task"
)

// --- In-memory task store ---

type memTaskStore struct {
	mu    sync.Mutex
	tasks []*task.Task
	seq   int
}

func (s *memTaskStore) find(id string) (int, error) {
	for i, t := range s.tasks {
		if t.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("get task %s: %w", id, task.ErrNotFound)
}

func (s *memTaskStore) Create(_ context.Context, t *task.Task) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if t.ID == "" {
		t.ID = fmt.Sprintf("t%d", s.seq)
	}
	if t.Importance == nil {
		t.Importance = task.IntPtr(task.DefaultImportance)
	}
	cp := *t
	s.tasks = append(s.tasks, &cp)
	return t, nil
}

func (s *memTaskStore) Get(_ context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.find(id)
	if err != nil {
		return nil, err
	}
	cp := *s.tasks[i]
	return &cp, nil
}

func (s *memTaskStore) Update(_ context.Context, id string, updates map[string]any) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if v, ok := updates["name"]; ok {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: name", task.ErrInvalidUpdate)
		}
		s.tasks[i].Name = name
	}
	cp := *s.tasks[i]
	return &cp, nil
}

func (s *memTaskStore) Complete(ctx context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	i, err := s.find(id)
	if err == nil {
		s.tasks[i].Completed = true
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *memTaskStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.find(id)
	if err != nil {
		return err
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return nil
}

func (s *memTaskStore) List(_ context.Context) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (s *memTaskStore) Count(_ context.Context) (int, error) { return len(s.tasks), nil }
func (s *memTaskStore) PendingCount(_ context.Context) (int, error) {
	n := 0
	for _, t := range s.tasks {
		if !t.Completed {
			n++
		}
	}
	return n, nil
}
func (s *memTaskStore) EnsureTable(context.Context) error { return nil }

// --- In-memory schedule store ---

type memScheduleStore struct {
	mu     sync.Mutex
	blocks []schedule.Block
	fail   bool
}

func (s *memScheduleStore) Replace(_ context.Context, blocks []schedule.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("%w: disk full", schedule.ErrPersistence)
	}
	s.blocks = append([]schedule.Block{}, blocks...)
	return nil
}

func (s *memScheduleStore) List(_ context.Context) ([]schedule.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schedule.Block{}, s.blocks...), nil
}

func (s *memScheduleStore) Count(_ context.Context) (int, error) { return len(s.blocks), nil }
func (s *memScheduleStore) EnsureTable(context.Context) error    { return nil }

// --- Fake assistant ---

type fakeChat struct {
	sessions map[string][]assistant.Message
}

func (c *fakeChat) Reply(_ context.Context, sessionID, message string) (*assistant.Reply, error) {
	if sessionID == "" {
		sessionID = assistant.DefaultSession
	}
	if c.sessions == nil {
		c.sessions = map[string][]assistant.Message{}
	}
	c.sessions[sessionID] = append(c.sessions[sessionID],
		assistant.Message{SessionID: sessionID, Sender: assistant.SenderUser, Content: message},
		assistant.Message{SessionID: sessionID, Sender: assistant.SenderAI, Content: "echo: " + message},
	)
	return &assistant.Reply{Text: "echo: " + message, Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}, nil
}

func (c *fakeChat) History(_ context.Context, sessionID string, limit int) ([]assistant.Message, error) {
	msgs := c.sessions[sessionID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	if msgs == nil {
		msgs = []assistant.Message{}
	}
	return msgs, nil
}

type testEnv struct {
	srv    *Server
	tasks  *memTaskStore
	blocks *memScheduleStore
	bus    *schedule.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tasks := &memTaskStore{}
	blocks := &memScheduleStore{}
	bus := schedule.NewBus()
	clock := func() time.Time { return time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) }
	planner := schedule.NewPlanner(tasks, blocks, logx.Nop(),
		schedule.WithBus(bus),
		schedule.WithClock(clock),
		schedule.WithDayStart("09:00", time.UTC),
	)
	srv := New(Deps{
		Tasks:    tasks,
		Schedule: blocks,
		Planner:  planner,
		Bus:      bus,
		Chat:     &fakeChat{},
		Log:      logx.Nop(),
	})
	return &testEnv{srv: srv, tasks: tasks, blocks: blocks, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestTaskRoutes(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "GET", "/api/tasks", "")
	if rec.Code != 200 || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list: %d %s", rec.Code, rec.Body)
	}

	rec = e.do(t, "POST", "/api/tasks", `{"name":"Write report","estimatedTime":60}`)
	if rec.Code != 201 {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	created := decode[task.Task](t, rec)
	if created.ID == "" || created.Name != "Write report" || *created.EstimatedTime != 60 {
		t.Fatalf("created = %+v", created)
	}

	rec = e.do(t, "PATCH", "/api/tasks/"+created.ID, `{"name":"Write summary"}`)
	if rec.Code != 200 || decode[task.Task](t, rec).Name != "Write summary" {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}

	rec = e.do(t, "PATCH", "/api/tasks/"+created.ID, `{"name":7}`)
	if rec.Code != 400 {
		t.Fatalf("bad update: %d %s", rec.Code, rec.Body)
	}

	rec = e.do(t, "POST", "/api/tasks/"+created.ID+"/complete", "")
	if rec.Code != 200 || !decode[task.Task](t, rec).Completed {
		t.Fatalf("complete: %d %s", rec.Code, rec.Body)
	}

	rec = e.do(t, "DELETE", "/api/tasks/"+created.ID, "")
	if rec.Code != 204 {
		t.Fatalf("delete: %d", rec.Code)
	}

	for _, tc := range []struct{ method, path, body string }{
		{"GET", "/api/tasks/missing", ""},
		{"PATCH", "/api/tasks/missing", `{"name":"x"}`},
		{"POST", "/api/tasks/missing/complete", ""},
		{"DELETE", "/api/tasks/missing", ""},
	} {
		if rec := e.do(t, tc.method, tc.path, tc.body); rec.Code != 404 {
			t.Errorf("%s %s: %d, want 404", tc.method, tc.path, rec.Code)
		}
	}

	if rec := e.do(t, "POST", "/api/tasks", `{"name":`); rec.Code != 400 {
		t.Errorf("malformed create: %d, want 400", rec.Code)
	}
}

func TestPlanningRoute(t *testing.T) {
	e := newTestEnv(t)

	body := `{"action":"optimize","tasks":[
		{"id":"a","importance":2,"estimatedTime":60,"completed":false},
		{"id":"b","importance":5,"estimatedTime":30,"completed":false},
		{"id":"c","importance":5,"estimatedTime":20,"deadline":"2099-01-01","completed":true}]}`
	rec := e.do(t, "POST", "/api/planning", body)
	if rec.Code != 200 {
		t.Fatalf("optimize: %d %s", rec.Code, rec.Body)
	}
	want := `{"schedule":[` +
		`{"taskId":"b","startTime":"2026-03-02T09:00:00Z","endTime":"2026-03-02T09:30:00Z"},` +
		`{"taskId":"a","startTime":"2026-03-02T09:30:00Z","endTime":"2026-03-02T10:30:00Z"}]}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Fatalf("body = %s\nwant  %s", got, want)
	}

	rec = e.do(t, "GET", "/api/schedule", "")
	if got := strings.TrimSpace(rec.Body.String()); rec.Code != 200 || got != want {
		t.Fatalf("stored schedule = %d %s", rec.Code, got)
	}
}

func TestPlanningErrors(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		fail     bool
		wantCode int
		wantKind string
	}{
		{"unknown action", `{"action":"shuffle"}`, false, 400, "unknown_action"},
		{"tasks not a list", `{"action":"optimize","tasks":{"id":"a"}}`, false, 400, "input_shape"},
		{"persistence", `{"action":"optimize","tasks":[{"id":"a"}]}`, true, 500, "persistence"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.blocks.fail = tc.fail
			rec := e.do(t, "POST", "/api/planning", tc.body)
			if rec.Code != tc.wantCode {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tc.wantCode, rec.Body)
			}
			got := decode[map[string]string](t, rec)
			if got["kind"] != tc.wantKind || got["error"] == "" {
				t.Errorf("body = %v", got)
			}
		})
	}

	e := newTestEnv(t)
	if rec := e.do(t, "POST", "/api/planning", `not json`); rec.Code != 400 {
		t.Errorf("garbage body: %d", rec.Code)
	}
}

func TestPlanningFromTaskStore(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, "POST", "/api/tasks", `{"id":"low","importance":1}`)
	e.do(t, "POST", "/api/tasks", `{"id":"high","importance":5}`)

	rec := e.do(t, "POST", "/api/planning", `{"action":"optimize","dayStart":"08:00"}`)
	if rec.Code != 200 {
		t.Fatalf("optimize: %d %s", rec.Code, rec.Body)
	}
	resp := decode[struct {
		Schedule []schedule.Block `json:"schedule"`
	}](t, rec)
	if len(resp.Schedule) != 2 || resp.Schedule[0].TaskID != "high" || resp.Schedule[0].StartTime.Hour() != 8 {
		t.Fatalf("schedule = %+v", resp.Schedule)
	}
}

func TestChatRoutes(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/api/chat", `{"message":"hello","sessionId":"s1"}`)
	if rec.Code != 200 {
		t.Fatalf("chat: %d %s", rec.Code, rec.Body)
	}
	if r := decode[assistant.Reply](t, rec); r.Text != "echo: hello" {
		t.Errorf("reply = %+v", r)
	}

	rec = e.do(t, "GET", "/api/chat/s1", "")
	if msgs := decode[[]assistant.Message](t, rec); len(msgs) != 2 || msgs[1].Sender != assistant.SenderAI {
		t.Errorf("history = %+v", msgs)
	}

	if rec := e.do(t, "POST", "/api/chat", `{"message":"  "}`); rec.Code != 400 {
		t.Errorf("empty message: %d", rec.Code)
	}

	noChat := New(Deps{Tasks: e.tasks, Schedule: e.blocks})
	rec = httptest.NewRecorder()
	noChat.ServeHTTP(rec, httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"message":"hi"}`)))
	if rec.Code != 503 {
		t.Errorf("no assistant: %d", rec.Code)
	}
}

func TestStatusAndHealth(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, "POST", "/api/tasks", `{"id":"a"}`)
	e.do(t, "POST", "/api/tasks", `{"id":"b"}`)
	e.do(t, "POST", "/api/tasks/b/complete", "")
	e.do(t, "POST", "/api/planning", `{"action":"optimize"}`)

	rec := e.do(t, "GET", "/api/status", "")
	got := decode[map[string]any](t, rec)
	if got["tasks"] != 2.0 || got["pending_tasks"] != 1.0 || got["blocks"] != 1.0 {
		t.Errorf("status = %v", got)
	}

	rec = e.do(t, "GET", "/health", "")
	if rec.Code != 200 || decode[map[string]string](t, rec)["status"] != "ok" {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
}

func TestScheduleStream(t *testing.T) {
	e := newTestEnv(t)
	ts := httptest.NewServer(e.srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/schedule/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	rd := bufio.NewReader(resp.Body)
	first := readEvent(t, rd)
	if len(first.Schedule) != 0 {
		t.Fatalf("initial schedule = %+v", first.Schedule)
	}

	post, err := http.Post(ts.URL+"/api/planning", "application/json",
		strings.NewReader(`{"action":"optimize","tasks":[{"id":"x","estimatedTime":50}]}`))
	if err != nil {
		t.Fatal(err)
	}
	post.Body.Close()

	next := readEvent(t, rd)
	if len(next.Schedule) != 1 || next.Schedule[0].TaskID != "x" {
		t.Fatalf("streamed schedule = %+v", next.Schedule)
	}
}

func readEvent(t *testing.T, rd *bufio.Reader) schedule.Update {
	t.Helper()
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		data, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: ")
		if !ok {
			continue
		}
		var u schedule.Update
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			t.Fatalf("decode event %q: %v", data, err)
		}
		return u
	}
}

func TestPlanningStatusMapping(t *testing.T) {
	cases := map[error]int{
		nil:                                   200,
		schedule.ErrInputShape:                400,
		schedule.ErrUnknownAction:             400,
		schedule.ErrPersistence:               500,
		schedule.ErrTaskStore:                 500,
		errors.New("something else entirely"): 500,
	}
	for err, want := range cases {
		if got := planningStatus(err); got != want {
			t.Errorf("planningStatus(%v) = %d, want %d", err, got, want)
		}
	}
}
