// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"agentpack/internal/config"
	"agentpack/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// logger is the shared CLI logger, leveled by --verbose.
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "agentpack",
		Short: "Build provisioned container images for long-running agents",
		Long: TitleStyle.Render("agentpack") + SubtitleStyle.Render(" - provisioned agent images") + `

agentpack turns an application source tree into a runnable container
image: the application is built as a wheel in an isolated stage, the
runtime gets a fixed service account with group-0 ownership of its
state directories (so orchestrators that inject arbitrary UIDs keep
write access), and vendored plugins are installed alongside.

The build is declared in an 'agentpack.cue' file and produces an image
tagged by a content hash of its inputs, so unchanged inputs reuse the
cached image.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Write an agentpack.cue next to your application source
  2. Run: agentpack build
  3. Run the printed image with your orchestrator of choice

` + SubtitleStyle.Render("Examples:") + `
  agentpack build                   Build (or reuse) the runtime image
  agentpack build --force-rebuild   Ignore the image cache
  agentpack config show             Show the resolved configuration`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./agentpack.cue)")

	// Add subcommands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig applies the global flags before any RunE executes.
func initRootConfig() {
	if cfgFile != "" {
		config.SetConfigFilePathOverride(cfgFile)
	}
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// render their suggestions; verbose mode shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
