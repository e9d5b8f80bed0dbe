package schedule

import (
	"context"
	"time"
)

// Block is a contiguous time interval assigned to one task.
//
// TaskID is a weak reference: the task may have been edited or deleted
// since the plan was made.
type Block struct {
	TaskID    string    `json:"taskId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Duration returns the length of the block.
func (b Block) Duration() time.Duration { return b.EndTime.Sub(b.StartTime) }

// Store is the contract for schedule persistence.
type Store interface {
	// Replace discards every stored block and stores blocks, atomically.
	Replace(ctx context.Context, blocks []Block) error
	// List returns the stored schedule ordered by start time.
	List(ctx context.Context) ([]Block, error)
	Count(ctx context.Context) (int, error)
	EnsureTable(ctx context.Context) error
}
