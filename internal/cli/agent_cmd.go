package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}

	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentShowCmd())
	cmd.AddCommand(newAgentCreateCmd())
	cmd.AddCommand(newAgentDeleteCmd())
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				agents, err := a.agents.List()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(agents) == 0 {
					fmt.Fprintln(out, "No agents yet. Create one with: agentforge agent create")
					return nil
				}
				for _, ag := range agents {
					state := ""
					if ag.IsDeployed {
						state = " (deployed)"
					}
					fmt.Fprintf(out, "  %-36s  %-24s %s%s\n", ag.ID, ag.Name, ag.Role, state)
				}
				return nil
			})
		},
	}
}

func newAgentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show details about an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				ag, err := a.agents.Get(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Agent: %s (%s)\n", ag.ID, ag.Name)
				fmt.Fprintf(out, "  Role:      %s\n", ag.Role)
				fmt.Fprintf(out, "  Goal:      %s\n", ag.Goal)
				fmt.Fprintf(out, "  Backstory: %s\n", ag.Backstory)
				fmt.Fprintf(out, "  Created:   %s\n", ag.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "  Deployed:  %v\n", ag.IsDeployed)
				if ag.APIEndpoint != "" {
					fmt.Fprintf(out, "  Endpoint:  %s\n", ag.APIEndpoint)
				}
				for _, r := range ag.Resources {
					fmt.Fprintf(out, "  Resource:  [%s] %s = %s\n", r.Type, r.Name, r.Value)
				}
				return nil
			})
		},
	}
}

// parseResource reads a "type:name:value" flag value.
func parseResource(s string) (domain.Resource, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return domain.Resource{}, fmt.Errorf("invalid resource %q (want type:name:value)", s)
	}
	return domain.Resource{
		Type:  domain.ResourceType(strings.ToLower(parts[0])),
		Name:  parts[1],
		Value: parts[2],
	}, nil
}

func newAgentCreateCmd() *cobra.Command {
	var (
		name, role, backstory, goal string
		resources, documents        []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ag := domain.Agent{Name: name, Role: role, Backstory: backstory, Goal: goal}
			for _, raw := range resources {
				r, err := parseResource(raw)
				if err != nil {
					return err
				}
				ag.Resources = append(ag.Resources, r)
			}

			return withApp(func(a *app) error {
				created, err := a.agents.Create(ag)
				if err != nil {
					return err
				}
				for _, path := range documents {
					stored, err := a.saveDocument(created.ID, path)
					if err != nil {
						return err
					}
					created, err = a.agents.Update(created.ID, func(ag *domain.Agent) error {
						ag.Resources = append(ag.Resources, domain.Resource{
							Type:  domain.ResourceDocument,
							Name:  strings.TrimSuffix(stored, filepath.Ext(stored)),
							Value: stored,
						})
						return nil
					})
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created agent %s (%s)\n", created.ID, created.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "agent name")
	cmd.Flags().StringVar(&role, "role", "", "agent role")
	cmd.Flags().StringVar(&backstory, "backstory", "", "agent backstory")
	cmd.Flags().StringVar(&goal, "goal", "", "agent goal")
	cmd.Flags().StringArrayVar(&resources, "resource", nil, "resource as type:name:value (repeatable)")
	cmd.Flags().StringArrayVar(&documents, "document", nil, "file to attach as a document (repeatable)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) saveDocument(agentID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return a.documents.Save(agentID, filepath.Base(path), f)
}

func newAgentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Delete an agent with its sessions, documents and deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.agents.Delete(args[0]); err != nil {
					return err
				}
				if err := a.deployments.Forget(args[0]); err != nil {
					a.log.Warn().Err(err).Str("agent_id", args[0]).Msg("failed to drop token index entry")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted agent %s\n", args[0])
				return nil
			})
		},
	}
}
