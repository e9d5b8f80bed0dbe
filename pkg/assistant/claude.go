package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ClaudeCLIProvider answers by running the claude CLI in print mode.
type ClaudeCLIProvider struct {
	WorkDir string
	Binary  string // defaults to "claude"
}

// Complete flattens msgs into a transcript prompt and runs the CLI once.
func (p *ClaudeCLIProvider) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	bin := p.Binary
	if bin == "" {
		bin = "claude"
	}

	cmd := exec.CommandContext(ctx, bin, "-p", transcript(msgs), "--output-format", "json")
	cmd.Dir = p.WorkDir
	// Drop CLAUDECODE so the CLI doesn't treat this as a nested session.
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "CLAUDECODE=") {
			cmd.Env = append(cmd.Env, env)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s: %w (stderr: %s)", bin, err, strings.TrimSpace(stderr.String()))
	}

	// --output-format json wraps the answer in {"result": ...}.
	var parsed struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return strings.TrimSpace(stdout.String()), nil
	}
	return parsed.Result, nil
}

func transcript(msgs []ChatMessage) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch m.Role {
		case RoleSystem:
			b.WriteString(m.Content)
		case RoleAssistant:
			b.WriteString("Assistant: " + m.Content)
		default:
			b.WriteString("User: " + m.Content)
		}
	}
	return b.String()
}
