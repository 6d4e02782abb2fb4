package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abelbrown/crisiswatch/internal/config"
	"github.com/abelbrown/crisiswatch/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// cfg and cfgUsed are populated before any subcommand runs.
	cfg     *config.Config
	cfgUsed string
)

var rootCmd = &cobra.Command{
	Use:   "crisiswatch",
	Short: "CrisisWatch - live situational-awareness feed",
	Long: `CrisisWatch aggregates curated news feeds, vetted social accounts and
prediction markets into one JSON document for a crisis dashboard.

Every upstream is optional: a failed source contributes nothing and is
reported in the document's meta block.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.crisiswatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, snapshotCmd, configCmd, eventsCmd, versionCmd)
}

// loadConfig reads configuration and starts logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, used, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	cfg, cfgUsed = c, used

	if c.Log.Dir != "" {
		if err := logging.InitFile(c.Log.Dir, c.Log.Level); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
	} else {
		logging.Init(os.Stderr, c.Log.Level)
	}
	return nil
}
