package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nemeshnorbert/reveal/internal/config"
)

var (
	cfgPath  string
	logLevel string
	logFile  string

	cfg *config.AppConfig
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "reveal",
		Short:        "Create, populate and query the reveal exchange-rate store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Init(cfgPath)
			if err != nil {
				return err
			}
			return setupLogging()
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "log into a file in addition to stdout")

	root.AddCommand(
		newCreateCmd(),
		newDeleteCmd(),
		newSetupCmd(),
		newMergeCmd(),
		newDownloadCmd(),
		newConvertCmd(),
	)
	return root
}

func setupLogging() error {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)

	var out io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}
	logrus.SetOutput(out)
	return nil
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}
