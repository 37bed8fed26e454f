package cli

import (
	"github.com/spf13/cobra"

	"github.com/linnemanlabs/ransomfuse/internal/feeds"
)

type feedInfo struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

type feedList []feedInfo

func (l feedList) header() []string { return []string{"NAME", "URL"} }
func (l feedList) rows() [][]string {
	out := make([][]string, 0, len(l))
	for _, f := range l {
		out = append(out, []string{f.Name, f.URL})
	}
	return out
}

func (a *app) sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the built-in feeds and their endpoints",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			var out feedList
			for _, n := range feeds.Known {
				ad, err := feeds.New(n, a.v.GetString(n+"-url"), nil, nil)
				if err != nil {
					return err
				}
				out = append(out, feedInfo{Name: ad.Name(), URL: ad.URL()})
			}
			return a.render(out)
		},
	}
}
