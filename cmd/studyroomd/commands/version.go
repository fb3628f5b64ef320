package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the version of studyroomd.
var Version = "unset"

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of studyroomd",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("studyroomd version %s\n", Version)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
