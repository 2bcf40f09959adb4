package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set during build, following teacher's convention.
var Version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "lumosdb",
	Short: "Hybrid row/column/vector database engine",
	Long: `Lumos-DB fuses a transactional row engine with a columnar analytical
engine behind one SQL surface, plus a vector collection engine for ANN
retrieval.

Examples:
  lumosdb query "SELECT * FROM widgets"
  lumosdb sync run
  lumosdb sync status

  lumosdb start     # Start the scheduled-sync daemon (and REST API, if enabled)
  lumosdb status    # Check daemon status`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "info", "log level (debug, info, warn, error)")
}
