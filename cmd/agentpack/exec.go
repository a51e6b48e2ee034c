// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"agentpack/internal/config"
)

// imageConfigPath is where the build stores the resolved config inside the
// image. The entrypoint reads it to learn the application binary name.
const imageConfigPath = "/etc/agentpack/agentpack.cue"

// execCmd is the image entrypoint: it replaces the agentpack process with
// the application binary, forwarding every container-start argument
// verbatim. Flag parsing is disabled so dashed arguments pass through too.
var execCmd = &cobra.Command{
	Use:                "exec [command...]",
	Short:              "Replace this process with the application command",
	Hidden:             true,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExec(args)
	},
}

func runExec(args []string) error {
	if _, err := os.Stat(imageConfigPath); err == nil {
		config.SetConfigFilePathOverride(imageConfigPath)
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	argv := resolveExecArgv(cfg.App.Binary, args)
	binary, err := exec.LookPath(argv[0])
	if err != nil {
		return &ExitError{Code: 127, Err: fmt.Errorf("command %q not found: %w", argv[0], err)}
	}

	// Exec replaces this process; on success it never returns.
	if err := unix.Exec(binary, argv, os.Environ()); err != nil {
		return &ExitError{Code: 126, Err: fmt.Errorf("exec %q: %w", binary, err)}
	}
	return nil
}

// resolveExecArgv builds the argv to exec: the application binary followed
// by every container-start argument, forwarded verbatim. Nothing is
// parsed, transformed, or validated at this layer.
func resolveExecArgv(binary string, args []string) []string {
	return append([]string{binary}, args...)
}
