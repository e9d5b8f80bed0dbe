package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"praxus/pkg/calendar"
	"praxus/pkg/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect or export the stored schedule",
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		blocks, err := a.Planner.Schedule(cmd.Context())
		if err != nil {
			return err
		}
		return outputJSON(cmd, schedule.Response{Schedule: blocks})
	},
}

var scheduleExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored schedule to Google Calendar",
	Long: `Replace previously exported praxus events with the stored schedule.

Requires calendar.enabled and an existing OAuth token file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		if !a.Config.Calendar.Enabled {
			return errors.New("calendar export is disabled (set calendar.enabled)")
		}
		ctx := cmd.Context()

		blocks, err := a.Planner.Schedule(ctx)
		if err != nil {
			return err
		}
		tasks, err := a.Stores.Tasks.List(ctx)
		if err != nil {
			return err
		}
		titles := make(map[string]string, len(tasks))
		for _, t := range tasks {
			titles[t.ID] = t.Name
		}

		exp, err := calendar.NewExporter(ctx, a.Config.Calendar, a.Log)
		if err != nil {
			return err
		}
		n, err := exp.Export(ctx, blocks, titles)
		if err != nil {
			return err
		}
		return outputJSON(cmd, map[string]int{"exported": n})
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleShowCmd)
	scheduleCmd.AddCommand(scheduleExportCmd)
}
