package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hollaugo/apphost"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of apphost",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("apphost version %s\n", strings.TrimSpace(apphost.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
