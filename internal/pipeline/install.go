// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// InstallArtifactStage installs the built application wheel, with the
// configured extras, into the service account's user site. Runs as the
// service account so the install lands under its home, then deletes the
// wheel so no artifact file remains in the image.
type InstallArtifactStage struct {
	// ArtifactDir is scanned for the wheel with the configured glob.
	ArtifactDir string
}

// NewInstallArtifactStage returns the artifact install stage.
func NewInstallArtifactStage(artifactDir string) *InstallArtifactStage {
	return &InstallArtifactStage{ArtifactDir: artifactDir}
}

func (s *InstallArtifactStage) Name() string { return StageInstallArtifact }

func (s *InstallArtifactStage) Run(ctx context.Context, env *Env) error {
	wheel, extras, err := s.resolveArtifact(env)
	if err != nil {
		return err
	}

	spec := wheel + env.Cfg.ExtrasSpec()
	if err := env.Exec.Run(ctx, "pip", "install", "--no-cache-dir", "--user", spec); err != nil {
		return &PackageInstallError{Package: filepath.Base(wheel), Cause: err}
	}
	env.Logger().Info("installed artifact",
		"artifact", filepath.Base(wheel), "extras", env.Cfg.ExtrasSpec())

	// The wheel must not survive into the image. Extras is the remaining
	// glob matches beyond the installed one; they go too.
	for _, m := range append([]string{wheel}, extras...) {
		if err := os.Remove(m); err != nil {
			return &PackageInstallError{Package: filepath.Base(m), Cause: err}
		}
	}

	return s.openUserSite(env)
}

// resolveArtifact globs the artifact directory and picks the wheel to
// install. Multiple matches resolve to the lexicographically first; the
// rest are reported for deletion.
func (s *InstallArtifactStage) resolveArtifact(env *Env) (wheel string, extra []string, err error) {
	pattern := filepath.Join(env.Path(s.ArtifactDir), env.Cfg.App.WheelGlob)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", nil, &PackageInstallError{Package: env.Cfg.App.WheelGlob, Cause: err}
	}
	if len(matches) == 0 {
		return "", nil, &PackageInstallError{
			Package: env.Cfg.App.WheelGlob,
			Cause:   fmt.Errorf("no artifact in %s", s.ArtifactDir),
		}
	}
	sort.Strings(matches)
	if len(matches) > 1 {
		env.Logger().Warn("multiple artifacts match, installing first",
			"chosen", filepath.Base(matches[0]), "total", len(matches))
	}
	return matches[0], matches[1:], nil
}

// openUserSite grants group and other read (and traverse/execute) access
// under the account's user-site root, so an arbitrary-UID process in group
// 0 can import the installed packages and run the console scripts.
func (s *InstallArtifactStage) openUserSite(env *Env) error {
	root := env.HomePath(".local")
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return &PermissionSetupError{Path: p, Cause: err}
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return &PermissionSetupError{Path: p, Cause: err}
		}
		mode := info.Mode().Perm()
		if d.IsDir() {
			mode |= 0o055
		} else {
			mode |= 0o044
			if mode&0o100 != 0 {
				mode |= 0o011
			}
		}
		if err := os.Chmod(p, mode); err != nil {
			return &PermissionSetupError{Path: p, Cause: err}
		}
		return nil
	})
	if err != nil {
		return err
	}
	env.Logger().Debug("opened user site for group access", "root", root)
	return nil
}
