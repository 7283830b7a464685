package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"codeplan/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to .codeplan/config.json",
	Run:   runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()

	cfg := config.DefaultConfig()
	cfg.RepoRoot = repoRoot
	if err := cfg.Save(repoRoot); err != nil {
		fatalf("Error writing config: %v", err)
	}
	fmt.Printf("Initialized %s\n", config.Dir(repoRoot))
}
