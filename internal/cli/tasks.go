package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"praxus/pkg/task"
)

var errUnknownTaskAction = errors.New("Unknown task action")

type tasksInput struct {
	Action  string         `json:"action"`
	Task    task.Task      `json:"task"`
	TaskID  string         `json:"taskId"`
	Updates map[string]any `json:"updates"`
}

var tasksCmd = &cobra.Command{
	Use:   "tasks <json>",
	Short: "Read and modify tasks",
	Long: `Run one task action and print the result.

  {"action": "get"}
  {"action": "create", "task": {...}}
  {"action": "update", "taskId": "...", "updates": {...}}
  {"action": "complete", "taskId": "..."}
  {"action": "delete", "taskId": "..."}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readPayload(cmd, args)
		if err != nil {
			return err
		}
		var in tasksInput
		if err := decodePayload(raw, &in); err != nil {
			return err
		}

		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		out, err := runTaskAction(cmd, a.Stores.Tasks, in)
		if errors.Is(err, errUnknownTaskAction) {
			return outputJSON(cmd, map[string]string{"error": err.Error()})
		}
		if err != nil {
			return err
		}
		return outputJSON(cmd, out)
	},
}

func runTaskAction(cmd *cobra.Command, store task.Store, in tasksInput) (any, error) {
	ctx := cmd.Context()
	needID := func() error {
		if in.TaskID == "" {
			return errors.New("taskId is required")
		}
		return nil
	}

	switch in.Action {
	case "get":
		tasks, err := store.List(ctx)
		if tasks == nil {
			tasks = []task.Task{}
		}
		return tasks, err
	case "create":
		return store.Create(ctx, &in.Task)
	case "update":
		if err := needID(); err != nil {
			return nil, err
		}
		return store.Update(ctx, in.TaskID, in.Updates)
	case "complete":
		if err := needID(); err != nil {
			return nil, err
		}
		return store.Complete(ctx, in.TaskID)
	case "delete":
		if err := needID(); err != nil {
			return nil, err
		}
		if err := store.Delete(ctx, in.TaskID); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": in.TaskID}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownTaskAction, in.Action)
	}
}
