package task

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// DefaultImportance is applied on create when the caller omits importance.
const DefaultImportance = 3

// DefaultCategory is applied on create when the caller omits category.
const DefaultCategory = "work"

// ErrNotFound is returned when no task has the requested ID.
var ErrNotFound = errors.New("task not found")

// ErrInvalidUpdate is returned when an update value has the wrong type.
var ErrInvalidUpdate = errors.New("invalid task update")

// Task is a unit of work the user wants to get done.
//
// Importance and EstimatedTime are pointers so an absent value can be told
// apart from zero; the scheduler applies its own defaults to absent values.
type Task struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Notes         string    `json:"notes,omitempty"`
	Category      string    `json:"category,omitempty"`
	Importance    *int      `json:"importance,omitempty"`    // higher = more urgent
	Deadline      string    `json:"deadline,omitempty"`      // date/time text, empty = none
	EstimatedTime *int      `json:"estimatedTime,omitempty"` // minutes
	Completed     bool      `json:"completed"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store is the contract for task persistence.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	Get(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, id string, updates map[string]any) (*Task, error)
	Complete(ctx context.Context, id string) (*Task, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Task, error)
	Count(ctx context.Context) (int, error)
	PendingCount(ctx context.Context) (int, error)
	EnsureTable(ctx context.Context) error
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// column is one SET clause entry produced from an update map.
type column struct {
	name  string
	value any
}

// updateColumns translates camelCase update keys into column assignments,
// sorted by column name so generated SQL is stable. Unknown keys are ignored.
func updateColumns(updates map[string]any) ([]column, error) {
	var cols []column
	for k, v := range updates {
		switch k {
		case "name", "notes", "category", "deadline":
			s, err := asNullableString(k, v)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
			}
			name := k
			if k == "notes" {
				name = "description"
			}
			if k != "deadline" && s == nil {
				s = ""
			}
			cols = append(cols, column{name: name, value: s})
		case "importance", "estimatedTime":
			n, err := asNullableInt(k, v)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
			}
			name := k
			if k == "estimatedTime" {
				name = "estimated_time"
			}
			cols = append(cols, column{name: name, value: n})
		case "completed":
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: completed: want bool, got %T", ErrInvalidUpdate, v)
			}
			cols = append(cols, column{name: "completed", value: b})
		}
	}
	slices.SortFunc(cols, func(a, b column) int { return cmp.Compare(a.name, b.name) })
	return cols, nil
}

// asNullableString returns nil for JSON null, the string itself otherwise.
func asNullableString(key string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	default:
		return nil, fmt.Errorf("%s: want string, got %T", key, v)
	}
}

// asNullableInt accepts the numeric shapes produced by encoding/json and Go callers.
func asNullableInt(key string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("%s: want integer, got %v", key, x)
		}
		return int64(x), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%s: want integer, got %T", key, v)
	}
}

// prepareCreate fills in the fields every store sets on insert.
func prepareCreate(t *Task, id string, now time.Time) {
	if t.ID == "" {
		t.ID = id
	}
	if t.Importance == nil {
		t.Importance = IntPtr(DefaultImportance)
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	t.CreatedAt = now
	t.UpdatedAt = now
}
