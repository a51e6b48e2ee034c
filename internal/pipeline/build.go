// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
)

// BuildArtifactStage builds the application wheel from the source tree into
// the artifact directory. It runs in the isolated builder stage of the
// container build, so build-time toolchains never reach the runtime image.
type BuildArtifactStage struct {
	// SourceDir is the in-image path of the application source tree.
	SourceDir string
	// ArtifactDir receives the built wheel.
	ArtifactDir string
}

// NewBuildArtifactStage returns the artifact build stage.
func NewBuildArtifactStage(sourceDir, artifactDir string) *BuildArtifactStage {
	return &BuildArtifactStage{SourceDir: sourceDir, ArtifactDir: artifactDir}
}

func (s *BuildArtifactStage) Name() string { return StageBuildArtifact }

// Run invokes pip wheel without dependency wheels and verifies that exactly
// one artifact matching the configured glob was produced.
func (s *BuildArtifactStage) Run(ctx context.Context, env *Env) error {
	src := env.Path(s.SourceDir)
	dist := env.Path(s.ArtifactDir)

	err := env.Exec.Run(ctx, "pip", "wheel", "--no-deps", "--wheel-dir", dist, src)
	if err != nil {
		return &ArtifactBuildError{Source: s.SourceDir, Cause: err}
	}

	matches, err := filepath.Glob(filepath.Join(dist, env.Cfg.App.WheelGlob))
	if err != nil {
		return &ArtifactBuildError{Source: s.SourceDir, Cause: err}
	}
	switch len(matches) {
	case 1:
		env.Logger().Info("built artifact", "artifact", filepath.Base(matches[0]))
		return nil
	case 0:
		return &ArtifactBuildError{
			Source: s.SourceDir,
			Detail: fmt.Sprintf("no artifact matching %q in %s", env.Cfg.App.WheelGlob, s.ArtifactDir),
		}
	default:
		return &ArtifactBuildError{
			Source: s.SourceDir,
			Detail: fmt.Sprintf("%d artifacts matching %q in %s, want exactly one", len(matches), env.Cfg.App.WheelGlob, s.ArtifactDir),
		}
	}
}
