// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"
	"path"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"agentpack/internal/config"
	"agentpack/internal/pipeline"
)

// In-image locations of the resources the build context carries. The
// binary and config paths also appear on every generated RUN line.
const (
	imageBinaryPath = "/usr/local/bin/agentpack"
	imageConfigPath = "/etc/agentpack/agentpack.cue"
)

// GenerateDockerfile renders the multi-stage Dockerfile. The first stage
// builds the application artifact in isolation; the second prepares the
// runtime, installs the artifact as the service account, and installs
// plugins. Every RUN line invokes one provisioning stage through the
// agentpack binary carried in the build context.
func GenerateDockerfile(cfg *config.Config, hasPlugins bool) (string, error) {
	var sb strings.Builder

	stageCmd := func(stage string) (string, error) {
		parts := []string{imageBinaryPath, "provision", "--stage", stage, "--config", imageConfigPath}
		quoted := make([]string, 0, len(parts))
		for _, p := range parts {
			q, err := syntax.Quote(p, syntax.LangBash)
			if err != nil {
				return "", fmt.Errorf("quoting %q: %w", p, err)
			}
			quoted = append(quoted, q)
		}
		return strings.Join(quoted, " "), nil
	}

	writeStage := func(stage string) error {
		cmd, err := stageCmd(stage)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, "RUN %s\n", cmd)
		return nil
	}

	// Builder stage: source plus toolchain, never reaches the runtime image.
	fmt.Fprintf(&sb, "FROM %s AS builder\n", cfg.Image.BuilderBase)
	sb.WriteString("ARG DEBIAN_FRONTEND=noninteractive\n")
	fmt.Fprintf(&sb, "COPY agentpack %s\n", imageBinaryPath)
	fmt.Fprintf(&sb, "COPY agentpack.cue %s\n", imageConfigPath)
	fmt.Fprintf(&sb, "COPY src %s\n", pipeline.DefaultSourceDir)
	if err := writeStage(pipeline.StageBuildArtifact); err != nil {
		return "", err
	}
	sb.WriteString("\n")

	// Runtime stage.
	fmt.Fprintf(&sb, "FROM %s\n", cfg.Image.RuntimeBase)
	sb.WriteString("ARG DEBIAN_FRONTEND=noninteractive\n")
	fmt.Fprintf(&sb, "COPY agentpack %s\n", imageBinaryPath)
	fmt.Fprintf(&sb, "COPY agentpack.cue %s\n", imageConfigPath)
	if err := writeStage(pipeline.StagePrepareBase); err != nil {
		return "", err
	}
	if err := writeStage(pipeline.StageConfigureOwnership); err != nil {
		return "", err
	}

	// Only the wheel crosses the stage boundary, owned by the account so
	// the install stage can delete it.
	fmt.Fprintf(&sb, "COPY --from=builder --chown=%d:0 %s %s/\n",
		cfg.Account.UID,
		path.Join(pipeline.DefaultArtifactDir, cfg.App.WheelGlob),
		pipeline.DefaultArtifactDir)

	fmt.Fprintf(&sb, "USER %s\n", cfg.Account.Name)
	if err := writeStage(pipeline.StageInstallArtifact); err != nil {
		return "", err
	}

	if hasPlugins {
		sb.WriteString("USER root\n")
		fmt.Fprintf(&sb, "COPY plugins %s\n", pipeline.DefaultPluginsDir)
		cmd, err := stageCmd(pipeline.StageInstallPlugins)
		if err != nil {
			return "", err
		}
		quotedPlugins, err := syntax.Quote(pipeline.DefaultPluginsDir, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("quoting %q: %w", pipeline.DefaultPluginsDir, err)
		}
		fmt.Fprintf(&sb, "RUN %s && rm -rf %s\n", cmd, quotedPlugins)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "ENV HOME=%s\n", cfg.Account.Home)
	fmt.Fprintf(&sb, "ENV PATH=%s/.local/bin:$PATH\n", cfg.Account.Home)
	fmt.Fprintf(&sb, "WORKDIR %s\n", cfg.Account.Home)
	fmt.Fprintf(&sb, "USER %d\n", cfg.Account.UID)
	// The entrypoint forwards every start argument to the application
	// binary verbatim, so no default CMD is baked in.
	fmt.Fprintf(&sb, "ENTRYPOINT [%q, %q]\n", imageBinaryPath, "exec")
	sb.WriteString("CMD []\n")

	return sb.String(), nil
}
