package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"praxus/pkg/logx"
	"praxus/pkg/task"
)

// --- Fake task store ---

type fakeTaskStore struct {
	tasks   []task.Task
	listErr error
}

func (s *fakeTaskStore) Create(_ context.Context, t *task.Task) (*task.Task, error) {
	s.tasks = append(s.tasks, *t)
	return t, nil
}
func (s *fakeTaskStore) Get(_ context.Context, id string) (*task.Task, error) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			cp := s.tasks[i]
			return &cp, nil
		}
	}
	return nil, task.ErrNotFound
}
func (s *fakeTaskStore) Update(_ context.Context, id string, _ map[string]any) (*task.Task, error) {
	return s.Get(context.Background(), id)
}
func (s *fakeTaskStore) Complete(_ context.Context, id string) (*task.Task, error) {
	return s.Get(context.Background(), id)
}
func (s *fakeTaskStore) Delete(_ context.Context, _ string) error { return nil }
func (s *fakeTaskStore) List(_ context.Context) ([]task.Task, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]task.Task(nil), s.tasks...), nil
}
func (s *fakeTaskStore) Count(_ context.Context) (int, error)        { return len(s.tasks), nil }
func (s *fakeTaskStore) PendingCount(_ context.Context) (int, error) { return 0, nil }
func (s *fakeTaskStore) EnsureTable(_ context.Context) error         { return nil }

// --- Fake schedule store ---

// fakeScheduleStore records replacements and can fail on demand. It also
// flags overlapping Replace calls.
type fakeScheduleStore struct {
	mu         sync.Mutex
	blocks     []Block
	replaceErr error
	replaces   int

	inFlight   int
	overlapped bool
	delay      time.Duration
}

func (s *fakeScheduleStore) Replace(_ context.Context, blocks []Block) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > 1 {
		s.overlapped = true
	}
	s.mu.Unlock()

	time.Sleep(s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.blocks = append([]Block(nil), blocks...)
	s.replaces++
	return nil
}
func (s *fakeScheduleStore) List(_ context.Context) ([]Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Block{}, s.blocks...), nil
}
func (s *fakeScheduleStore) Count(_ context.Context) (int, error) { return len(s.blocks), nil }
func (s *fakeScheduleStore) EnsureTable(_ context.Context) error  { return nil }

func fixedClock() time.Time { return time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC) }

func newTestPlanner(tasks *fakeTaskStore, store *fakeScheduleStore, opts ...Option) *Planner {
	opts = append([]Option{WithClock(fixedClock), WithDayStart("09:00", time.UTC)}, opts...)
	return NewPlanner(tasks, store, logx.Nop(), opts...)
}

const exampleTasks = `[
	{"id":"a","importance":2,"estimatedTime":60,"completed":false},
	{"id":"b","importance":5,"estimatedTime":30,"completed":false},
	{"id":"c","importance":5,"estimatedTime":20,"deadline":"2099-01-01","completed":true}
]`

func TestHandleOptimizeInline(t *testing.T) {
	store := &fakeScheduleStore{}
	p := newTestPlanner(&fakeTaskStore{}, store)

	resp := p.Handle(context.Background(), Request{Action: "optimize", Tasks: json.RawMessage(exampleTasks)})
	if resp.Err != nil {
		t.Fatalf("Handle: %v", resp.Err)
	}
	if got := ids(resp.Schedule); !equalIDs(got, []string{"b", "a"}) {
		t.Fatalf("schedule = %v, want [b a]", got)
	}
	if !resp.Schedule[0].StartTime.Equal(nine) {
		t.Errorf("first block at %v, want %v", resp.Schedule[0].StartTime, nine)
	}
	stored, _ := store.List(context.Background())
	assertSameBlocks(t, stored, resp.Schedule)
}

func TestHandleOptimizeReadsTaskStore(t *testing.T) {
	tasks := &fakeTaskStore{tasks: []task.Task{
		{ID: "x", Importance: task.IntPtr(1)},
		{ID: "y", Importance: task.IntPtr(4)},
	}}
	for _, raw := range []string{"", "null", "  null "} {
		store := &fakeScheduleStore{}
		p := newTestPlanner(tasks, store)
		resp := p.Handle(context.Background(), Request{Action: "optimize", Tasks: json.RawMessage(raw)})
		if resp.Err != nil {
			t.Fatalf("tasks %q: %v", raw, resp.Err)
		}
		if got := ids(resp.Schedule); !equalIDs(got, []string{"y", "x"}) {
			t.Errorf("tasks %q: schedule = %v", raw, got)
		}
	}
}

func TestHandleDayStartOverride(t *testing.T) {
	p := newTestPlanner(&fakeTaskStore{}, &fakeScheduleStore{})
	tasks := json.RawMessage(`[{"id":"a"}]`)

	resp := p.Handle(context.Background(), Request{Action: "optimize", Tasks: tasks, DayStart: "13:30"})
	if resp.Err != nil || !resp.Schedule[0].StartTime.Equal(at(13, 30)) {
		t.Fatalf("HH:MM override: %+v", resp)
	}

	resp = p.Handle(context.Background(), Request{Action: "optimize", Tasks: tasks, DayStart: "2026-05-01T08:00:00Z"})
	if resp.Err != nil || !resp.Schedule[0].StartTime.Equal(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("RFC3339 override: %+v", resp)
	}

	resp = p.Handle(context.Background(), Request{Action: "optimize", Tasks: tasks, DayStart: "noon"})
	if !errors.Is(resp.Err, ErrInputShape) || !strings.Contains(resp.Err.Error(), "dayStart:") {
		t.Fatalf("bad day start: err = %v", resp.Err)
	}
}

func TestOptimizeStoresWhatItReturns(t *testing.T) {
	store, _ := newTestStore(t)
	p := NewPlanner(&fakeTaskStore{}, store, logx.Nop())
	start := time.Date(2026, 5, 1, 8, 0, 0, 123456789, time.UTC)

	blocks, err := p.Optimize(context.Background(), []task.Task{{ID: "a"}, {ID: "b"}}, start)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if want := start.Truncate(time.Microsecond); !blocks[0].StartTime.Equal(want) {
		t.Fatalf("first block starts %v, want %v", blocks[0].StartTime, want)
	}
	stored, err := p.Schedule(context.Background())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	assertSameBlocks(t, stored, blocks)
}

func TestHandleUnknownAction(t *testing.T) {
	store := &fakeScheduleStore{}
	p := newTestPlanner(&fakeTaskStore{}, store)

	resp := p.Handle(context.Background(), Request{Action: "shuffle", Tasks: json.RawMessage(exampleTasks)})
	if !errors.Is(resp.Err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", resp.Err)
	}
	if store.replaces != 0 {
		t.Fatalf("store touched on unknown action")
	}
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"kind":"unknown_action"`) || !strings.Contains(string(b), "shuffle") {
		t.Errorf("response = %s", b)
	}
}

func TestHandleMalformedTasks(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"object", `{"id":"a"}`},
		{"string", `"a,b,c"`},
		{"number", `42`},
		{"list of numbers", `[1, 2]`},
		{"list of strings", `["a"]`},
		{"wrong field type", `[{"id":"a","importance":"high"}]`},
		{"truncated", `[{"id":"a"`},
		{"null record", `[null, {"id":"a"}]`},
		{"nested list", `[[{"id":"a"}]]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeScheduleStore{blocks: sampleBlocks()}
			p := newTestPlanner(&fakeTaskStore{}, store)
			resp := p.Handle(context.Background(), Request{Action: "optimize", Tasks: json.RawMessage(tc.raw)})
			if !errors.Is(resp.Err, ErrInputShape) {
				t.Fatalf("err = %v, want ErrInputShape", resp.Err)
			}
			if store.replaces != 0 {
				t.Fatal("schedule replaced despite malformed input")
			}
			stored, _ := store.List(context.Background())
			assertSameBlocks(t, stored, sampleBlocks())
		})
	}
}

func TestHandlePersistenceFailure(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	store := &fakeScheduleStore{blocks: sampleBlocks(), replaceErr: ErrPersistence}
	p := newTestPlanner(&fakeTaskStore{}, store, WithBus(bus))

	resp := p.Handle(context.Background(), Request{Action: "optimize", Tasks: json.RawMessage(`[{"id":"new"}]`)})
	if ErrorKind(resp.Err) != "persistence" {
		t.Fatalf("kind = %q (err %v), want persistence", ErrorKind(resp.Err), resp.Err)
	}
	stored, _ := store.List(context.Background())
	assertSameBlocks(t, stored, sampleBlocks())

	select {
	case u := <-sub:
		t.Fatalf("failed run was published: %+v", u)
	default:
	}
}

func TestHandleTaskStoreFailure(t *testing.T) {
	p := newTestPlanner(&fakeTaskStore{listErr: errors.New("disk on fire")}, &fakeScheduleStore{})
	resp := p.Handle(context.Background(), Request{Action: "optimize"})
	if !errors.Is(resp.Err, ErrTaskStore) {
		t.Fatalf("err = %v, want ErrTaskStore", resp.Err)
	}
}

func TestOptimizeTwiceMatchesOnce(t *testing.T) {
	store := &fakeScheduleStore{}
	p := newTestPlanner(&fakeTaskStore{}, store)
	tasks, _, _ := DecodeTasks(json.RawMessage(exampleTasks))

	if _, err := p.Optimize(context.Background(), tasks, nine); err != nil {
		t.Fatal(err)
	}
	once, _ := store.List(context.Background())
	if _, err := p.Optimize(context.Background(), tasks, nine); err != nil {
		t.Fatal(err)
	}
	twice, _ := store.List(context.Background())
	assertSameBlocks(t, twice, once)
}

func TestOptimizePublishes(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	p := newTestPlanner(&fakeTaskStore{}, &fakeScheduleStore{}, WithBus(bus))
	blocks, err := p.Optimize(context.Background(), []task.Task{{ID: "a"}}, nine)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case u := <-sub:
		assertSameBlocks(t, u.Schedule, blocks)
		if !u.GeneratedAt.Equal(fixedClock()) {
			t.Errorf("generatedAt = %v", u.GeneratedAt)
		}
	case <-time.After(time.Second):
		t.Fatal("no update published")
	}
}

func TestConcurrentRunsDoNotInterleave(t *testing.T) {
	store := &fakeScheduleStore{delay: 5 * time.Millisecond}
	p := newTestPlanner(&fakeTaskStore{}, store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Optimize(context.Background(), []task.Task{{ID: "a"}}, nine)
		}()
	}
	wg.Wait()

	if store.overlapped {
		t.Fatal("Replace calls overlapped")
	}
	if store.replaces != 8 {
		t.Fatalf("replaces = %d, want 8", store.replaces)
	}
}

func TestTodayFollowsSetDayStart(t *testing.T) {
	p := newTestPlanner(&fakeTaskStore{}, &fakeScheduleStore{})
	got, err := p.Today()
	if err != nil || !got.Equal(nine) {
		t.Fatalf("Today = %v, %v", got, err)
	}
	p.SetDayStart("10:15", time.UTC)
	got, _ = p.Today()
	if !got.Equal(at(10, 15)) {
		t.Fatalf("Today after SetDayStart = %v", got)
	}
}

func TestResponseJSON(t *testing.T) {
	b, _ := json.Marshal(Response{})
	if string(b) != `{"schedule":[]}` {
		t.Errorf("empty response = %s", b)
	}
	b, _ = json.Marshal(Response{Schedule: []Block{{TaskID: "a", StartTime: nine, EndTime: at(9, 30)}}})
	want := `{"schedule":[{"taskId":"a","startTime":"2026-03-02T09:00:00Z","endTime":"2026-03-02T09:30:00Z"}]}`
	if string(b) != want {
		t.Errorf("response = %s, want %s", b, want)
	}
}
