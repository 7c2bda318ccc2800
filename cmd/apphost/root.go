package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "apphost",
	Short: "Apphost serves conversational app servers over streamable HTTP",
	Long:  `Apphost multiplexes conversational sessions, dispatches schema-validated tool calls, and serves interactive widget documents. The bundled taskboard app is served by default.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file (YAML or JSON)")
}
