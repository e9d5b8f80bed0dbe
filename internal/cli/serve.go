package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"praxus/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with auto planning",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return daemon.Run(ctx, daemon.Options{ConfigPath: configPath, LogLevel: logLevel})
	},
}
