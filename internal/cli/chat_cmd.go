package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/soyeahso/agentforge/internal/agent"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to an agent in a chat session",
	}

	cmd.AddCommand(newChatSendCmd())
	cmd.AddCommand(newChatEditCmd())
	cmd.AddCommand(newChatRegenerateCmd())
	return cmd
}

// runTurn executes one orchestrator call with SIGINT/SIGTERM cancellation
// and prints the reply.
func runTurn(cmd *cobra.Command, fn func(ctx context.Context, a *app) (*agent.Reply, error)) error {
	return withApp(func(a *app) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reply, err := fn(ctx, a)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Response)
		fmt.Fprintf(cmd.ErrOrStderr(), "\n[session=%s]\n", reply.SessionID)
		return nil
	})
}

func newChatSendCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "send <agent-id> <message...>",
		Short: "Send a message and print the agent's reply",
		Long:  "Send a message to an agent. Without --session a new session is started.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID := args[0]
			prompt := strings.Join(args[1:], " ")

			return runTurn(cmd, func(ctx context.Context, a *app) (*agent.Reply, error) {
				sid := sessionID
				if sid == "" {
					if _, err := a.agents.Get(agentID); err != nil {
						return nil, err
					}
					s, err := a.sessions.Create(agentID, "")
					if err != nil {
						return nil, err
					}
					sid = s.ID
				}
				return a.orchestrator.Send(ctx, agentID, sid, prompt)
			})
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session to continue (default: start a new one)")
	return cmd
}

func newChatEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <agent-id> <session-id> <index> <message...>",
		Short: "Replace a user message and regenerate the reply",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid message index %q", args[2])
			}
			content := strings.Join(args[3:], " ")
			return runTurn(cmd, func(ctx context.Context, a *app) (*agent.Reply, error) {
				return a.orchestrator.EditAndResend(ctx, args[0], args[1], idx, content)
			})
		},
	}
}

func newChatRegenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <agent-id> <session-id>",
		Short: "Discard the last reply and ask again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurn(cmd, func(ctx context.Context, a *app) (*agent.Reply, error) {
				return a.orchestrator.Regenerate(ctx, args[0], args[1])
			})
		},
	}
}
