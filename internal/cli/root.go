// Package cli implements fusectl, the operator command line for one-shot
// feed runs, reclassification and run-history inspection.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"
)

const envPrefix = "RANSOMFUSE"

// app carries state shared by every subcommand of one invocation.
type app struct {
	v      *viper.Viper
	out    io.Writer
	logger log.Logger

	cfgFile string
	logCfg  log.Config
}

// NewRootCmd builds the fusectl command tree writing results to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, logger: log.Nop()}

	root := &cobra.Command{
		Use:   "fusectl",
		Short: "Operate the ransomfuse threat-data pipeline",
		Long: `fusectl runs ransomware leak-site feeds through the fusion pipeline
once, reclassifies stored incidents, and inspects run history.

Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (RANSOMFUSE_*)
  3. Config file (~/.ransomfuse/config.yaml)
  4. Defaults`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.ransomfuse/config.yaml)")
	pf.StringP("output", "o", "yaml", "output format: yaml, json or text")
	pf.String("database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	pf.String("redis-url", "", "Redis URL for run statistics")
	pf.String("slack-webhook-url", "", "Slack webhook URL for run summaries")
	pf.Bool("slack-failures-only", false, "only post failed runs to Slack")
	pf.Bool("slack-quiet", false, "skip Slack posts for successful runs that added or corroborated nothing")

	// go-core logging flags, shared with the server
	logFlags := flag.NewFlagSet("log", flag.ContinueOnError)
	a.logCfg.RegisterFlags(logFlags)
	pf.AddGoFlagSet(logFlags)

	_ = a.v.BindPFlags(pf)

	root.AddCommand(
		a.runCmd(),
		a.reclassifyCmd(),
		a.classifyCmd(),
		a.runsCmd(),
		a.sourcesCmd(),
		a.configCmd(),
		versionCmd(out),
	)
	return root
}

// Execute runs fusectl against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd(os.Stdout).ExecuteContext(ctx)
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(home, ".ransomfuse"))
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("config")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if _, err := parseFormat(a.v.GetString("output")); err != nil {
		return err
	}

	v.AppName = "ransomfuse"
	v.Component = "fusectl"
	lg, err := log.New(a.logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	a.logger = lg.With("component", v.Component)
	cmd.SetContext(log.WithContext(cmd.Context(), a.logger))
	return nil
}

func versionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			vi := v.Get()
			_, err := fmt.Fprintf(out, "fusectl %s (commit=%s, build_date=%s, go=%s)\n",
				vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion)
			return err
		},
	}
}
