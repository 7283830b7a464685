package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"codeplan/internal/config"
	"codeplan/internal/engine"
	"codeplan/internal/logging"
	"codeplan/internal/version"
)

var (
	repoFlag   string
	formatFlag string
	levelFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "codeplan",
	Short: "codeplan - code intelligence for change planning",
	Long: `codeplan analyzes multi-language codebases into a symbol-level call
graph and compiles change plans into dependency-ordered coding task
bundles with complexity estimates and skeleton hints.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("codeplan version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "human", "Output format (json, human)")
	rootCmd.PersistentFlags().StringVar(&levelFlag, "level", "info", "Log level (debug, info, warn, error)")
}

func newLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(formatFlag),
		Level:  logging.LogLevel(levelFlag),
	})
}

func newContext() context.Context {
	return context.Background()
}

// getRepoRoot returns the repository root directory.
func getRepoRoot() (string, error) {
	if repoFlag != "" {
		return repoFlag, nil
	}
	return os.Getwd()
}

// mustGetRepoRoot returns the repository root or exits on error.
func mustGetRepoRoot() string {
	root, err := getRepoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving repo root: %v\n", err)
		os.Exit(1)
	}
	return root
}

var (
	analyzerOnce   sync.Once
	sharedAnalyzer *engine.Analyzer
	analyzerErr    error
)

// getAnalyzer returns a shared Analyzer instance, lazily initialized on
// first use.
func getAnalyzer(repoRoot string, logger *logging.Logger) (*engine.Analyzer, error) {
	analyzerOnce.Do(func() {
		cfg, err := config.LoadConfig(repoRoot)
		if err != nil {
			logger.Warn("Failed to load config, using defaults", map[string]interface{}{
				"error": err.Error(),
			})
			cfg = config.DefaultConfig()
			cfg.RepoRoot = repoRoot
		}
		if err := cfg.Validate(); err != nil {
			analyzerErr = err
			return
		}

		sharedAnalyzer, analyzerErr = engine.New(cfg, logger)
	})
	return sharedAnalyzer, analyzerErr
}

// mustGetAnalyzer returns the shared Analyzer or exits on error.
func mustGetAnalyzer(repoRoot string, logger *logging.Logger) *engine.Analyzer {
	a, err := getAnalyzer(repoRoot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing engine: %v\n", err)
		os.Exit(1)
	}
	return a
}
