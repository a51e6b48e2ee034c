// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"agentpack/internal/config"
)

// Stage names, in execution order. The container build references these on
// its RUN lines, so they are part of the image contract.
const (
	StageBuildArtifact      = "build-artifact"
	StagePrepareBase        = "prepare-base"
	StageConfigureOwnership = "configure-ownership"
	StageInstallArtifact    = "install-artifact"
	StageInstallPlugins     = "install-plugins"
)

// Sentinel errors for the provisioning failure classes. Stage errors wrap
// one of these so callers can classify without matching on types.
var (
	ErrArtifactBuild   = errors.New("artifact build failed")
	ErrPackageInstall  = errors.New("package install failed")
	ErrPermissionSetup = errors.New("permission setup failed")
	ErrUnknownStage    = errors.New("unknown stage")
)

type (
	// Stage is a single provisioning step. Run must be side-effect free on
	// failure where possible, but the pipeline contract is all-or-nothing:
	// a failed stage aborts the run and the partial image is discarded.
	Stage interface {
		Name() string
		Run(ctx context.Context, env *Env) error
	}

	// StageError reports which stage failed and wraps its cause.
	StageError struct {
		Stage string
		Cause error
	}

	// ArtifactBuildError reports a failure to produce exactly one
	// application artifact from the source tree.
	ArtifactBuildError struct {
		Source string
		Detail string
		Cause  error
	}

	// PackageInstallError reports a failed native, artifact, or plugin
	// package installation.
	PackageInstallError struct {
		Package string
		Cause   error
	}

	// PermissionSetupError reports a failure while applying the ownership
	// model to a path.
	PermissionSetupError struct {
		Path  string
		Cause error
	}
)

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }

func (e *ArtifactBuildError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("building artifact from %q: %s", e.Source, e.Detail)
	}
	return fmt.Sprintf("building artifact from %q: %v", e.Source, e.Cause)
}

func (e *ArtifactBuildError) Unwrap() []error {
	return []error{ErrArtifactBuild, e.Cause}
}

func (e *PackageInstallError) Error() string {
	return fmt.Sprintf("installing %q: %v", e.Package, e.Cause)
}

func (e *PackageInstallError) Unwrap() []error {
	return []error{ErrPackageInstall, e.Cause}
}

func (e *PermissionSetupError) Error() string {
	return fmt.Sprintf("setting up permissions on %q: %v", e.Path, e.Cause)
}

func (e *PermissionSetupError) Unwrap() []error {
	return []error{ErrPermissionSetup, e.Cause}
}

// Runner executes stages sequentially, stopping at the first failure.
type Runner struct {
	stages []Stage
}

// NewRunner builds a Runner over the given stages, run in argument order.
func NewRunner(stages ...Stage) *Runner {
	return &Runner{stages: stages}
}

// Run executes every stage in order. The first failure aborts the run and
// is returned wrapped in a StageError naming the failed stage.
func (r *Runner) Run(ctx context.Context, env *Env) error {
	for _, s := range r.stages {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: s.Name(), Cause: err}
		}
		env.Logger().Info("running stage", "stage", s.Name())
		if err := s.Run(ctx, env); err != nil {
			return &StageError{Stage: s.Name(), Cause: err}
		}
		env.Logger().Debug("stage complete", "stage", s.Name())
	}
	return nil
}

// Stages returns the full ordered stage list for cfg.
func Stages(cfg *config.Config) []Stage {
	return []Stage{
		NewBuildArtifactStage(DefaultSourceDir, DefaultArtifactDir),
		NewPrepareBaseStage(),
		NewConfigureOwnershipStage(),
		NewInstallArtifactStage(DefaultArtifactDir),
		NewInstallPluginsStage(DefaultPluginsDir),
	}
}

// StageByName resolves a single stage from the full list for cfg. The
// container build uses this to run one stage per RUN line.
func StageByName(cfg *config.Config, name string) (Stage, error) {
	for _, s := range Stages(cfg) {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}
