package cmd

import (
	"fmt"

	"github.com/net2share/meshtun/internal/engine"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("meshtun %s (built %s)\n", Version, BuildTime)
		fmt.Printf("yggdrasil %s\n", engine.NewYggdrasil(logger).Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
