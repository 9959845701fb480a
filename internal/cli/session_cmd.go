package cli

import (
	"context"
	"fmt"

	"github.com/soyeahso/agentforge/internal/hooks"
	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage an agent's chat sessions",
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionRenameCmd())
	cmd.AddCommand(newSessionDeleteCmd())
	cmd.AddCommand(newSessionMessagesCmd())
	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List sessions, most recently updated first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if _, err := a.agents.Get(args[0]); err != nil {
					return err
				}
				sessions, err := a.sessions.List(args[0])
				if err != nil {
					return err
				}
				for _, s := range sessions {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-36s  %-30s %3d messages  %s\n",
						s.ID, s.Title, s.MessageCount, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
}

func newSessionCreateCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "create <agent-id>",
		Short: "Start a new chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if _, err := a.agents.Get(args[0]); err != nil {
					return err
				}
				s, err := a.sessions.Create(args[0], title)
				if err != nil {
					return err
				}
				a.hooks.Emit(context.Background(), hooks.EventSessionCreated, map[string]any{
					"agent_id":   args[0],
					"session_id": s.ID,
					"title":      s.Title,
				})
				fmt.Fprintf(cmd.OutOrStdout(), "Created session %s (%s)\n", s.ID, s.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "session title (default \"Chat N\")")
	return cmd
}

func newSessionRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <agent-id> <session-id> <title>",
		Short: "Rename a chat session",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				s, err := a.sessions.Rename(args[0], args[1], args[2])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed session %s to %q\n", s.ID, s.Title)
				return nil
			})
		},
	}
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id> <session-id>",
		Short: "Delete a chat session and its history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.orchestrator.DeleteSession(args[0], args[1]); err != nil {
					return err
				}
				a.hooks.Emit(context.Background(), hooks.EventSessionDeleted, map[string]any{
					"agent_id":   args[0],
					"session_id": args[1],
				})
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[1])
				return nil
			})
		},
	}
}

func newSessionMessagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <agent-id> <session-id>",
		Short: "Print a session's history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				msgs, err := a.history.List(args[0], args[1])
				if err != nil {
					return err
				}
				for i, m := range msgs {
					fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s (%s)\n%s\n\n",
						i, m.Role, m.Timestamp.Local().Format("15:04:05"), m.Content)
				}
				return nil
			})
		},
	}
}
