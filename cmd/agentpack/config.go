// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"agentpack/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage agentpack configuration",
	Long: `Manage agentpack configuration.

Configuration is read from, in order of precedence:
  - the --config flag
  - ./agentpack.cue in the working directory
  - the user config directory (e.g. ~/.config/agentpack/agentpack.cue)

Environment variables with the AGENTPACK_ prefix override file values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd)
		},
	})
}

// showConfig prints the fully resolved configuration, defaults included,
// as TOML for readability.
func showConfig(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), TitleStyle.Render("Resolved configuration"))
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// showConfigPath prints the config file the current run would read.
func showConfigPath(cmd *cobra.Command) error {
	path, err := config.ResolveConfigFile()
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("no configuration file found; built-in defaults apply"))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
