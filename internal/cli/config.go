package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// secretKeys are masked by config show.
var secretKeys = []string{"database-url", "redis-url", "slack-webhook-url"}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect fusectl configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if used := a.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", used)
			}
			settings := make(map[string]any)
			for _, k := range a.v.AllKeys() {
				val := a.v.Get(k)
				if s, ok := val.(string); ok && s != "" && slices.Contains(secretKeys, k) {
					val = "********"
				}
				settings[k] = val
			}
			return a.render(settings)
		},
	})
	return cmd
}
