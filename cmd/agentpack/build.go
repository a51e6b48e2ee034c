// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agentpack/internal/config"
	"agentpack/internal/container"
	"agentpack/internal/provision"
)

var (
	buildForceRebuild bool
	buildNoCache      bool
	buildPrintTag     bool
	buildSourceDir    string
	buildPluginsDir   string
	buildTagSuffix    string
	buildManifestPath string

	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build (or reuse) the provisioned runtime image",
		Long: `Build the runtime image from the configured application source.

The image tag is a content hash of everything that goes into the build:
base images, configuration, the agentpack binary, the source tree, and
any vendored plugins. When an image with that tag already exists the
build is skipped and the existing image is reused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd)
		},
	}
)

func init() {
	buildCmd.Flags().BoolVar(&buildForceRebuild, "force-rebuild", false, "rebuild even when a cached image exists")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "disable the engine layer cache as well")
	buildCmd.Flags().BoolVar(&buildPrintTag, "print-tag", false, "print only the image tag (for scripting)")
	buildCmd.Flags().StringVar(&buildSourceDir, "source", "", "application source directory (overrides config)")
	buildCmd.Flags().StringVar(&buildPluginsDir, "plugins", "", "vendored plugins directory (overrides config)")
	buildCmd.Flags().StringVar(&buildTagSuffix, "tag-suffix", "", "suffix appended to the image tag")
	buildCmd.Flags().StringVar(&buildManifestPath, "manifest", "", "write a TOML package manifest of the built image to this path")
}

func runBuild(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	engine, err := resolveEngine(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}
	logger.Debug("selected container engine", "engine", engine.Name())

	opts := []provision.Option{
		provision.WithForceRebuild(buildForceRebuild),
		provision.WithNoCache(buildNoCache),
	}
	if buildSourceDir != "" {
		opts = append(opts, provision.WithSourceDir(buildSourceDir))
	}
	if buildPluginsDir != "" {
		opts = append(opts, provision.WithPluginsDir(buildPluginsDir))
	}
	if buildTagSuffix != "" {
		opts = append(opts, provision.WithTagSuffix(buildTagSuffix))
	}
	if buildPrintTag {
		opts = append(opts, provision.WithOutput(os.Stderr))
	}

	provisioner := provision.NewImageProvisioner(engine, cfg, opts...)
	result, err := provisioner.Provision(cmd.Context())
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}
	if buildManifestPath != "" {
		manifest, err := provision.CaptureManifest(cmd.Context(), engine, result.ImageTag)
		if err != nil {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		} else if err := manifest.Write(buildManifestPath); err != nil {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		} else {
			logger.Info("wrote package manifest", "path", buildManifestPath)
		}
	}

	if buildPrintTag {
		fmt.Fprintln(cmd.OutOrStdout(), result.ImageTag)
		return nil
	}
	if result.Cached {
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Reusing cached image ")+TagStyle.Render(string(result.ImageTag)))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Built image ")+TagStyle.Render(string(result.ImageTag)))
	}
	return nil
}

// resolveEngine creates the container engine the config asks for, falling
// back to auto-detection when none is pinned.
func resolveEngine(cfg *config.Config) (container.Engine, error) {
	switch cfg.Engine {
	case config.ContainerEngineDocker:
		return container.NewEngine(container.EngineTypeDocker)
	case config.ContainerEnginePodman:
		return container.NewEngine(container.EngineTypePodman)
	default:
		return container.AutoDetectEngine()
	}
}
