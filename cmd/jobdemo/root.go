package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
)

var logger arbor.ILogger

var rootCmd = &cobra.Command{
	Use:   "jobdemo",
	Short: "Demonstrates the job package's structured concurrency primitives",
	Long:  `jobdemo builds small trees of job.Job values and drives them through start, cancel, join and await so the state machine can be watched end to end.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jobdemo version %s (build: %s, commit: %s)\n", Version, BuildTime, GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	logger = arbor.NewLogger()

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("jobdemo failed")
	}
}
