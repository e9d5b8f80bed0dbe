package schedule

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"praxus/pkg/task"
)

const (
	// DefaultImportance is used for tasks without an importance.
	DefaultImportance = 3
	// DefaultEstimate is used for tasks without a positive estimate.
	DefaultEstimate = 30 * time.Minute
	// MaxEstimate caps a single task's estimate.
	MaxEstimate = 7 * 24 * time.Hour
	// LongTask is the estimate above which a break follows the task.
	LongTask = 45 * time.Minute
	// Break is the idle gap inserted after a long task.
	Break = 15 * time.Minute
	// DefaultDayStart is the wall clock anchor of a plan.
	DefaultDayStart = "09:00"
)

// noDeadline sorts after every real deadline.
var noDeadline = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// deadlineLayouts are tried in order. Layouts without a zone are read in
// the plan's location.
var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// GeneratePlan orders the open tasks and lays them out from dayStart.
//
// It has no side effects; persisting the result is the caller's job.
func GeneratePlan(tasks []task.Task, dayStart time.Time) []Block {
	loc := dayStart.Location()

	open := make([]entry, 0, len(tasks))
	for i := range tasks {
		if tasks[i].Completed {
			continue
		}
		open = append(open, newEntry(&tasks[i], loc))
	}

	slices.SortStableFunc(open, compareEntries)

	blocks := make([]Block, 0, len(open))
	cursor := dayStart
	for _, e := range open {
		end := cursor.Add(e.estimate)
		blocks = append(blocks, Block{TaskID: e.id, StartTime: cursor, EndTime: end})
		if e.estimate > LongTask {
			cursor = end.Add(Break)
		} else {
			cursor = end
		}
	}
	return blocks
}

// entry is a task reduced to its sort keys and estimate.
type entry struct {
	id         string
	completed  bool
	importance int
	deadline   time.Time
	estimate   time.Duration
}

func newEntry(t *task.Task, loc *time.Location) entry {
	e := entry{
		id:         t.ID,
		completed:  t.Completed,
		importance: DefaultImportance,
		deadline:   ParseDeadline(t.Deadline, loc),
		estimate:   DefaultEstimate,
	}
	if t.Importance != nil {
		e.importance = *t.Importance
	}
	if t.EstimatedTime != nil && *t.EstimatedTime > 0 {
		e.estimate = MaxEstimate
		if m := *t.EstimatedTime; m < int(MaxEstimate/time.Minute) {
			e.estimate = time.Duration(m) * time.Minute
		}
	}
	return e
}

// compareEntries orders open before completed, then importance descending,
// then deadline ascending.
func compareEntries(a, b entry) int {
	if a.completed != b.completed {
		if a.completed {
			return 1
		}
		return -1
	}
	if c := cmp.Compare(b.importance, a.importance); c != 0 {
		return c
	}
	return a.deadline.Compare(b.deadline)
}

// ParseDeadline reads a deadline string. Empty or unparseable values yield
// the no-deadline sentinel, so they sort after every dated task.
func ParseDeadline(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return noDeadline
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return noDeadline
}

// DayStart anchors a plan at the "HH:MM" clock time on now's date, in now's
// location. An empty clock means DefaultDayStart.
func DayStart(now time.Time, clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	if clock == "" {
		clock = DefaultDayStart
	}
	hm, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("day start %q: want HH:MM", clock)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, hm.Hour(), hm.Minute(), 0, 0, now.Location()), nil
}
