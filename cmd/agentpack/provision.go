// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agentpack/internal/pipeline"
)

var (
	provisionStage string
	provisionRoot  string

	// provisionCmd runs the provisioning stages. The generated Dockerfile
	// invokes it once per RUN line with --stage; it is hidden because it
	// is not meant for interactive use on the host.
	provisionCmd = &cobra.Command{
		Use:    "provision",
		Short:  "Run provisioning stages against a rootfs",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd)
		},
	}
)

func init() {
	provisionCmd.Flags().StringVar(&provisionStage, "stage", "", "single stage to run (default: all stages in order)")
	provisionCmd.Flags().StringVar(&provisionRoot, "root", "/", "rootfs prefix to provision under")
}

func runProvision(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	var stages []pipeline.Stage
	if provisionStage != "" {
		stage, err := pipeline.StageByName(cfg, provisionStage)
		if err != nil {
			return &ExitError{Code: 2, Err: err}
		}
		stages = []pipeline.Stage{stage}
	} else {
		stages = pipeline.Stages(cfg)
	}

	env := &pipeline.Env{
		Root: provisionRoot,
		Cfg:  cfg,
		Exec: pipeline.NewHostExecer(os.Stdout, os.Stderr),
		Log:  logger,
	}

	if err := pipeline.NewRunner(stages...).Run(cmd.Context(), env); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}
