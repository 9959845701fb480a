package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/soyeahso/agentforge/internal/config"
)

// DefaultCommandTimeout bounds a hook command without an explicit timeout.
const DefaultCommandTimeout = 10 * time.Second

// CommandHandler runs command through "sh -c" with the JSON payload on
// stdin and AGENTFORGE_EVENT set in the environment.
func CommandHandler(command string, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(payload)
		cmd.Env = append(cmd.Environ(), "AGENTFORGE_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.WaitDelay = time.Second

		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return fmt.Errorf("hook command %q: %w: %s", command, err, msg)
			}
			return fmt.Errorf("hook command %q: %w", command, err)
		}
		return nil
	}
}

// RegisterCommands wires the command hooks from cfg into m. Unknown event
// names are skipped with a warning.
func RegisterCommands(m *Manager, cfg config.HooksConfig) int {
	n := 0
	for event, entries := range cfg.Events {
		if !slices.Contains(AllEvents, event) {
			m.log.Warn().Str("event", event).Msg("ignoring hooks for unknown event")
			continue
		}
		for i, e := range entries {
			timeout := time.Duration(e.Timeout) * time.Millisecond
			m.On(event, fmt.Sprintf("command:%s#%d", event, i), CommandHandler(e.Command, timeout))
			n++
		}
	}
	return n
}
