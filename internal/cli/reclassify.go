package cli

import (
	"github.com/spf13/cobra"

	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

func (a *app) reclassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reclassify",
		Short: "Rerun sector classification over stored incidents",
		Long: `Reclassify pages through every stored incident, reruns the sector
cascade on its stored attributes and upgrades incidents whose sector is
Other or Unknown, or whose rules now give a different specific sector.
A specific sector is never replaced by Other or Unknown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := threat.NewReclassifier(store, a.logger, threat.Hooks{}).Run(ctx)
			if err != nil {
				return err
			}
			return a.render(stats)
		},
	}
}
