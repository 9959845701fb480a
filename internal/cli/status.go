package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/agentforge/internal/config"
	"github.com/soyeahso/agentforge/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show agentforge status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agentforge %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:  not found (using defaults)")
			}

			fmt.Fprintf(out, "Server:  port=%d bind=%s tls=%v\n", cfg.Server.Port, cfg.Server.Bind, cfg.Server.TLS.Enabled)
			fmt.Fprintf(out, "Public:  %s\n", cfg.PublicBaseURL())
			fmt.Fprintf(out, "Storage: dir=%s tokenIndex=%s\n", paths.AgentsDir(cfg), cfg.Storage.TokenIndex)
			if cfg.Deployment.TokenTTLHours > 0 {
				fmt.Fprintf(out, "Tokens:  ttl=%dh\n", cfg.Deployment.TokenTTLHours)
			} else {
				fmt.Fprintln(out, "Tokens:  no expiry")
			}

			model := cfg.LLM.Model
			if len(cfg.LLM.Fallbacks) > 0 {
				model += " (fallbacks: " + strings.Join(cfg.LLM.Fallbacks, ", ") + ")"
			}
			fmt.Fprintf(out, "LLM:     provider=%s model=%s\n", cfg.LLM.Provider, model)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
				return nil
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			agents, err := a.agents.List()
			if err != nil {
				return err
			}
			deployed := 0
			for _, ag := range agents {
				if ag.IsDeployed {
					deployed++
				}
			}
			fmt.Fprintf(out, "Agents:  %d (%d deployed)\n", len(agents), deployed)
			return nil
		},
	}

	return cmd
}
