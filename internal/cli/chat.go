package cli

import (
	"bytes"
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

type chatInput struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	// session_id is accepted for older clients
	LegacySessionID string `json:"session_id"`
}

var chatCmd = &cobra.Command{
	Use:   "chat <message|json>",
	Short: "Send a message to the assistant",
	Long: `Send a message to the assistant and print {"text", "timestamp"}.

The argument is either plain text or {"message": ..., "sessionId": ...}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readPayload(cmd, args)
		if err != nil {
			return err
		}
		in, err := parseChatInput(raw)
		if err != nil {
			return err
		}

		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		reply, err := a.Assistant.Reply(cmd.Context(), in.SessionID, in.Message)
		if err != nil {
			return err
		}
		return outputJSON(cmd, reply)
	},
}

func parseChatInput(raw []byte) (chatInput, error) {
	var in chatInput
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := decodePayload(trimmed, &in); err != nil {
			return in, err
		}
		if in.SessionID == "" {
			in.SessionID = in.LegacySessionID
		}
	} else {
		in.Message = string(trimmed)
	}
	if strings.TrimSpace(in.Message) == "" {
		return in, errors.New("message is required")
	}
	return in, nil
}
