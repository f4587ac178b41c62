package cmd

import (
	"fmt"

	"github.com/koeppj/mcp-server-box/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the MCP server",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Name, version.GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
