package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"praxus/internal/app"
	"praxus/internal/config"
	"praxus/pkg/logx"
)

// openApp loads the config named by --config and opens storage. The caller
// must call the returned close function.
func openApp(cmd *cobra.Command) (*app.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logs, log := logx.New(cfg.Logging.LogxConfig(logLevel))

	a, err := app.Open(cmd.Context(), cfg, log)
	if err != nil {
		logs.Close()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		logs.Close()
	}, nil
}

// readPayload returns the JSON argument, or stdin when it is absent or "-".
func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		return []byte(strings.Join(args, " ")), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, errors.New("no input: pass JSON as an argument or on stdin")
	}
	return b, nil
}

func decodePayload(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}
	return nil
}

// outputJSON writes v as one line of JSON to the command's stdout.
func outputJSON(cmd *cobra.Command, v any) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
}
