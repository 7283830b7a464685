package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codeplan/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show full version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
