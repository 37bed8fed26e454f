package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/ransomfuse/internal/sector"
)

type classification struct {
	Sector sector.Sector `yaml:"sector" json:"sector"`
	Stage  sector.Stage  `yaml:"stage" json:"stage"`
	Match  string        `yaml:"match,omitempty" json:"match,omitempty"`
}

func (c classification) header() []string { return []string{"SECTOR", "STAGE", "MATCH"} }
func (c classification) rows() [][]string {
	return [][]string{{string(c.Sector), string(c.Stage), c.Match}}
}

func (a *app) classifyCmd() *cobra.Command {
	var in sector.Input
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show which sector the classifier assigns to a victim",
		Example: `  fusectl classify --name "Riverside Hospital"
  fusectl classify --name Foo --website foo.edu -o text`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if in == (sector.Input{}) {
				return errors.New("at least one of --name, --website, --description, --sector, --activity is required")
			}
			r := sector.Explain(in)
			return a.render(classification{Sector: r.Sector, Stage: r.Stage, Match: r.Match})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.VictimName, "name", "", "victim name")
	f.StringVar(&in.Website, "website", "", "victim website")
	f.StringVar(&in.Description, "description", "", "victim description")
	f.StringVar(&in.APISector, "sector", "", "feed-reported sector")
	f.StringVar(&in.Activity, "activity", "", "feed-reported activity")
	return cmd
}
