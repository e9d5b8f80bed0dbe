package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"praxus/pkg/logx"
	"praxus/pkg/task"
)

// ActionOptimize is the only planning action.
const ActionOptimize = "optimize"

// Planner runs planning requests against one schedule store.
//
// Runs are serialized: a second run waits until the first has committed.
type Planner struct {
	tasks task.Store
	store Store
	bus   *Bus
	log   logx.Logger
	now   func() time.Time

	mu sync.Mutex // one planning run at a time

	cfgMu    sync.RWMutex
	dayStart string
	loc      *time.Location
}

// Option configures a Planner.
type Option func(*Planner)

// WithBus publishes every committed schedule on b.
func WithBus(b *Bus) Option { return func(p *Planner) { p.bus = b } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(p *Planner) { p.now = now } }

// WithDayStart sets the default anchor clock ("HH:MM") and its location.
func WithDayStart(clock string, loc *time.Location) Option {
	return func(p *Planner) { p.dayStart, p.loc = clock, loc }
}

// NewPlanner creates a Planner.
func NewPlanner(tasks task.Store, store Store, log logx.Logger, opts ...Option) *Planner {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Planner{
		tasks:    tasks,
		store:    store,
		log:      log.With(logx.String("component", "planner")),
		now:      time.Now,
		dayStart: DefaultDayStart,
		loc:      time.Local,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetDayStart changes the default anchor; used on config reload.
func (p *Planner) SetDayStart(clock string, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	p.cfgMu.Lock()
	p.dayStart, p.loc = clock, loc
	p.cfgMu.Unlock()
}

// Today returns the configured anchor on the current date.
func (p *Planner) Today() (time.Time, error) {
	p.cfgMu.RLock()
	clock, loc := p.dayStart, p.loc
	p.cfgMu.RUnlock()
	return DayStart(p.now().In(loc), clock)
}

// Optimize plans tasks from dayStart and replaces the stored schedule.
// On error nothing is published and the stored schedule is unchanged.
func (p *Planner) Optimize(ctx context.Context, tasks []task.Task, dayStart time.Time) ([]Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.optimizeLocked(ctx, tasks, dayStart)
}

// OptimizeStored plans every task in the task store.
func (p *Planner) OptimizeStored(ctx context.Context, dayStart time.Time) ([]Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tasks, err := p.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTaskStore, err)
	}
	return p.optimizeLocked(ctx, tasks, dayStart)
}

func (p *Planner) optimizeLocked(ctx context.Context, tasks []task.Task, dayStart time.Time) ([]Block, error) {
	start := time.Now()
	// Stores keep microseconds.
	dayStart = dayStart.Truncate(time.Microsecond)
	blocks := GeneratePlan(tasks, dayStart)

	if err := p.store.Replace(ctx, blocks); err != nil {
		p.log.Error("schedule not stored", logx.Int("blocks", len(blocks)), logx.Err(err))
		return nil, err
	}

	p.log.Info("schedule stored",
		logx.Int("tasks", len(tasks)),
		logx.Int("blocks", len(blocks)),
		logx.Time("day_start", dayStart),
		logx.Duration("took", time.Since(start)),
	)
	if p.bus != nil {
		p.bus.Publish(Update{Schedule: blocks, GeneratedAt: p.now()})
	}
	return blocks, nil
}

// Schedule returns the stored schedule.
func (p *Planner) Schedule(ctx context.Context) ([]Block, error) {
	return p.store.List(ctx)
}

// Request is a planning request as received from the CLI or HTTP API.
//
// Tasks absent or null means "plan the task store". DayStart is optional:
// either an RFC 3339 timestamp or an "HH:MM" clock on today's date. An
// unreadable DayStart is reported as ErrInputShape with a "dayStart:" prefix.
type Request struct {
	Action   string          `json:"action"`
	Tasks    json.RawMessage `json:"tasks,omitempty"`
	DayStart string          `json:"dayStart,omitempty"`
}

// Response is the result of a planning request. Exactly one of Schedule and
// Err is meaningful.
type Response struct {
	Schedule []Block
	Err      error
}

// MarshalJSON renders {"schedule": [...]} or {"error": ..., "kind": ...}.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}{r.Err.Error(), ErrorKind(r.Err)})
	}
	s := r.Schedule
	if s == nil {
		s = []Block{}
	}
	return json.Marshal(struct {
		Schedule []Block `json:"schedule"`
	}{s})
}

// Handle executes a planning request. Failures are returned inside the
// Response, never as panics.
func (p *Planner) Handle(ctx context.Context, req Request) Response {
	if req.Action != ActionOptimize {
		return Response{Err: fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)}
	}

	dayStart, err := p.resolveDayStart(req.DayStart)
	if err != nil {
		return Response{Err: err}
	}

	tasks, inline, err := DecodeTasks(req.Tasks)
	if err != nil {
		return Response{Err: err}
	}

	var blocks []Block
	if inline {
		blocks, err = p.Optimize(ctx, tasks, dayStart)
	} else {
		blocks, err = p.OptimizeStored(ctx, dayStart)
	}
	if err != nil {
		return Response{Err: err}
	}
	return Response{Schedule: blocks}
}

func (p *Planner) resolveDayStart(s string) (time.Time, error) {
	if s == "" {
		return p.Today()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	p.cfgMu.RLock()
	loc := p.loc
	p.cfgMu.RUnlock()
	t, err := DayStart(p.now().In(loc), s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: dayStart: %v", ErrInputShape, err)
	}
	return t, nil
}

// DecodeTasks decodes an inline task collection. inline is false when raw is
// absent or null, meaning the caller should read the task store instead.
// Every element must be a JSON object.
func DecodeTasks(raw json.RawMessage) (tasks []task.Task, inline bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}
	if trimmed[0] != '[' {
		return nil, false, fmt.Errorf("%w: tasks must be a list of task records", ErrInputShape)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInputShape, err)
	}
	tasks = make([]task.Task, len(elems))
	for i, el := range elems {
		if len(el) == 0 || el[0] != '{' {
			return nil, false, fmt.Errorf("%w: tasks[%d] is not a task record", ErrInputShape, i)
		}
		if err := json.Unmarshal(el, &tasks[i]); err != nil {
			return nil, false, fmt.Errorf("%w: tasks[%d]: %v", ErrInputShape, i, err)
		}
	}
	return tasks, true, nil
}
