package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "workflowd",
	Short: "Multi-agent workflow orchestration server",
	Long: `Workflowd turns natural-language requests into executable workflows:
a model generates the task breakdown and agent pool, a scheduler assigns
ready tasks to capacity-bounded agents, and an executor runs each task
through the model, streaming every state change to connected clients.

Run 'workflowd serve' to start the server, then point clients at the
HTTP API or watch it live with 'workflowd monitor'.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./workflowd.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
