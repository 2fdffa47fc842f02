// Package cmd implements the yds command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/yds/config"
	"github.com/kilianp07/yds/infra/logger"
)

var (
	cfgPath  string
	cfg      *config.Config
	closeLog func() error
)

var rootCmd = &cobra.Command{
	Use:           "yds",
	Short:         "Energy-minimal scheduling of tasks on a variable speed processor",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		closer, err := logger.Configure(c.Logging)
		if err != nil {
			return fmt.Errorf("configure logging: %w", err)
		}
		cfg, closeLog = c, closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }
