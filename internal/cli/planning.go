package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"praxus/pkg/schedule"
)

var planningCmd = &cobra.Command{
	Use:   "planning <json>",
	Short: "Generate and store today's schedule",
	Long: `Run a planning request and print {"schedule": [...]}.

  {"action": "optimize"}                       plan the stored tasks
  {"action": "optimize", "tasks": [...]}       plan the given tasks
  {"action": "optimize", "dayStart": "08:30"}  override the anchor`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readPayload(cmd, args)
		if err != nil {
			return err
		}
		var req schedule.Request
		if err := decodePayload(raw, &req); err != nil {
			return err
		}

		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		resp := a.Planner.Handle(cmd.Context(), req)
		if errors.Is(resp.Err, schedule.ErrUnknownAction) {
			// Answered, not failed: the caller reads the error body on stdout.
			return outputJSON(cmd, resp)
		}
		if resp.Err != nil {
			return &payloadError{payload: resp, err: resp.Err}
		}
		return outputJSON(cmd, resp)
	},
}
