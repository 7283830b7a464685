package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheClearPattern string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the analysis cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache backend and key count",
	Run:   runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cache entries",
	Long: `Remove cache entries matching a pattern ('*' wildcards). With no
pattern, removes everything.

Examples:
  codeplan cache clear
  codeplan cache clear --pattern='analysis:src/*'`,
	Run: runCacheClear,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <path>",
	Short: "Drop every cached analysis for a file path",
	Args:  cobra.ExactArgs(1),
	Run:   runCacheInvalidate,
}

func init() {
	cacheClearCmd.Flags().StringVar(&cacheClearPattern, "pattern", "", "Key pattern to clear ('*' wildcards)")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) {
	logger := newLogger()
	analyzer := mustGetAnalyzer(mustGetRepoRoot(), logger)
	defer analyzer.Close()

	stats := analyzer.Cache().Stats()
	printResult(stats, func() string {
		return fmt.Sprintf("Backend: %s\nKeys: %d", stats.Backend, stats.KeyCount)
	})
}

func runCacheClear(cmd *cobra.Command, args []string) {
	logger := newLogger()
	analyzer := mustGetAnalyzer(mustGetRepoRoot(), logger)
	defer analyzer.Close()

	if err := analyzer.Cache().Clear(cacheClearPattern); err != nil {
		fatalf("Error clearing cache: %v", err)
	}
	fmt.Println("Cache cleared.")
}

func runCacheInvalidate(cmd *cobra.Command, args []string) {
	logger := newLogger()
	analyzer := mustGetAnalyzer(mustGetRepoRoot(), logger)
	defer analyzer.Close()

	if err := analyzer.Invalidate(args[0]); err != nil {
		fatalf("Error invalidating %s: %v", args[0], err)
	}
	fmt.Printf("Invalidated %s\n", args[0])
}
