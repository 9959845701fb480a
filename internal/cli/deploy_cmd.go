package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Manage agent deployments and API tokens",
	}

	cmd.AddCommand(newDeployCreateCmd())
	cmd.AddCommand(newDeployStatusCmd())
	cmd.AddCommand(newDeployRevokeCmd())
	cmd.AddCommand(newDeployPostmanCmd())
	return cmd
}

func newDeployCreateCmd() *cobra.Command {
	var regenerate bool

	cmd := &cobra.Command{
		Use:   "create <agent-id>",
		Short: "Deploy an agent and print its API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				res, err := a.deployments.Deploy(context.Background(), args[0], regenerate)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Endpoint: %s\n", res.Endpoint)
				fmt.Fprintf(out, "Token:    %s\n", res.Token)
				fmt.Fprintf(out, "Expires:  %s\n", formatExpiry(res.ExpiresAt))
				if res.Regenerated {
					fmt.Fprintln(out, "A new token was issued; the previous one no longer works.")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "issue a new token even if the current one is still valid")
	return cmd
}

func newDeployStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <agent-id>",
		Short: "Show an agent's deployment state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				st, err := a.deployments.Status(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Deployed: %v\n", st.Deployed)
				if st.Endpoint != "" {
					fmt.Fprintf(out, "Endpoint: %s\n", st.Endpoint)
				}
				if st.Token != nil {
					fmt.Fprintf(out, "Active:   %v\n", st.Token.IsActive)
					fmt.Fprintf(out, "Expires:  %s\n", formatExpiry(st.Token.ExpiresAt))
				}
				if st.Deployed {
					fmt.Fprintf(out, "Expired:  %v\n", st.Expired)
				}
				if st.Message != "" {
					fmt.Fprintln(out, st.Message)
				}
				return nil
			})
		},
	}
}

func newDeployRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <agent-id>",
		Short: "Revoke an agent's API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.deployments.Revoke(context.Background(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked token for %s\n", args[0])
				return nil
			})
		},
	}
}

func newDeployPostmanCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "postman <agent-id>",
		Short: "Export a Postman collection for a deployed agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				coll, err := a.deployments.Postman(args[0])
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(coll, "", "  ")
				if err != nil {
					return err
				}
				if output == "" {
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return nil
				}
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the collection to a file instead of stdout")
	return cmd
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
