// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// aptCachePaths are purged after package installation so the layer carries
// no package index or download cache.
var aptCachePaths = []string{
	"/var/lib/apt/lists",
	"/var/cache/apt",
}

// PrepareBaseStage installs the runtime's native packages, creates the
// fixed-identity service account, and lays out the stateful directory
// skeleton under its home. Runs as root in the runtime stage.
type PrepareBaseStage struct{}

// NewPrepareBaseStage returns the base preparation stage.
func NewPrepareBaseStage() *PrepareBaseStage { return &PrepareBaseStage{} }

func (s *PrepareBaseStage) Name() string { return StagePrepareBase }

func (s *PrepareBaseStage) Run(ctx context.Context, env *Env) error {
	if err := s.installPackages(ctx, env); err != nil {
		return err
	}
	if err := s.createAccount(ctx, env); err != nil {
		return err
	}
	return s.createSkeleton(env)
}

func (s *PrepareBaseStage) installPackages(ctx context.Context, env *Env) error {
	pkgs := env.Cfg.Base.Packages
	if len(pkgs) == 0 {
		env.Logger().Debug("no native packages configured")
		return nil
	}

	if err := env.Exec.Run(ctx, "apt-get", "update", "-y"); err != nil {
		return &PackageInstallError{Package: "apt index", Cause: err}
	}
	args := append([]string{"install", "-y", "--no-install-recommends"}, pkgs...)
	if err := env.Exec.Run(ctx, "apt-get", args...); err != nil {
		return &PackageInstallError{Package: fmt.Sprintf("%v", pkgs), Cause: err}
	}

	// Purge the index and download caches so they never land in the layer.
	if err := env.Exec.Run(ctx, "apt-get", "clean"); err != nil {
		return &PackageInstallError{Package: "apt cache", Cause: err}
	}
	for _, p := range aptCachePaths {
		target := env.Path(p)
		if err := os.RemoveAll(target); err != nil {
			return &PackageInstallError{Package: "apt cache", Cause: err}
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return &PackageInstallError{Package: "apt cache", Cause: err}
		}
	}
	env.Logger().Info("installed native packages", "count", len(pkgs))
	return nil
}

func (s *PrepareBaseStage) createAccount(ctx context.Context, env *Env) error {
	acct := env.Cfg.Account
	err := env.Exec.Run(ctx, "useradd",
		"-m",
		"-d", acct.Home,
		"-u", strconv.FormatUint(uint64(acct.UID), 10),
		"-s", "/bin/bash",
		string(acct.Name),
	)
	if err != nil {
		return fmt.Errorf("creating account %q: %w", acct.Name, err)
	}
	env.Logger().Info("created service account",
		"name", acct.Name, "uid", acct.UID, "home", acct.Home)
	return nil
}

func (s *PrepareBaseStage) createSkeleton(env *Env) error {
	for _, p := range env.Cfg.StatefulPaths() {
		target := env.Path(p)
		if err := os.MkdirAll(target, 0o770); err != nil {
			return &PermissionSetupError{Path: p, Cause: err}
		}
	}
	env.Logger().Info("created stateful directory skeleton",
		"dirs", len(env.Cfg.Account.StatefulDirs))
	return nil
}
