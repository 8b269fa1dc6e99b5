package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sourcer/config"
	"sourcer/logging"
)

var (
	cfg     *config.Config
	logFile *logging.RotatingWriter
)

var rootCmd = &cobra.Command{
	Use:           "sourcer",
	Short:         "Listing extraction and rehab estimate service",
	Long:          "Extracts property facts from listing pages and turns them into a repair budget and after-repair value.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		w, err := logging.Setup(cfg.Log)
		if err != nil {
			return eris.Wrap(err, "init logger")
		}
		logFile = w
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
		if logFile != nil {
			logFile.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, estimateCmd, extractCmd, runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("command failed", zap.Error(err))
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
