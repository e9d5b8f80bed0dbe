// Package schedule builds and stores the daily plan.
//
// GeneratePlan is a pure function from tasks to time blocks:
//   - completed tasks are dropped
//   - the rest are ordered by importance (desc) then deadline (asc) with one stable sort
//   - blocks are laid out back to back from the day start, with a break after long tasks
//
// A Store keeps exactly one schedule. Replace swaps it inside a single
// transaction, and Planner serializes planning runs so two runs never
// interleave their clear and insert steps.
package schedule
