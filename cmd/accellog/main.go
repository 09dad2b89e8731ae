// The accellog command logs accelerometer readings from a cloud
// broker to CSV files and serves a chart of the most recent batch.
package main

import (
	"os"

	"github.com/juju/loggo"
	"github.com/spf13/cobra"
)

var logger = loggo.GetLogger("accellog")

var rootCmd = &cobra.Command{
	Use:           "accellog",
	Short:         "log and plot accelerometer data from a cloud broker",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	serveCmdFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
	initCmdFlags(initCmd)
	rootCmd.AddCommand(initCmd)
	if err := rootCmd.Execute(); err != nil {
		logger.Criticalf("%v", err)
		os.Exit(1)
	}
}
