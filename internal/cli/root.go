package cli

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

// rootCmd is the root command for praxus.
var rootCmd = &cobra.Command{
	Use:     "praxus",
	Version: "dev",
	Short:   "Productivity backend: tasks, chat assistant and daily planning",
	Long: `praxus keeps a task list, answers chat messages through a language model
and plans the day into consecutive time blocks.

Every command prints JSON on stdout. An unknown action is answered with
{"error": ...} on stdout and status 0. Other errors are printed as
{"error": ...} on stderr and exit with status 1.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "praxus.yaml", "Path to the config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug|info|warn|error)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(planningCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// Execute runs the root command and prints any error as JSON on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		writeError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

// payloadError carries a structured error body, such as a planning
// response, to be printed instead of {"error": msg}.
type payloadError struct {
	payload any
	err     error
}

func (e *payloadError) Error() string { return e.err.Error() }
func (e *payloadError) Unwrap() error { return e.err }

func writeError(w io.Writer, err error) {
	var body any = map[string]string{"error": err.Error()}
	var pe *payloadError
	if errors.As(err, &pe) {
		body = pe.payload
	}
	_ = json.NewEncoder(w).Encode(body)
}
