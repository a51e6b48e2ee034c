// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// ConfigureOwnershipStage applies the group-0 ownership model: the service
// account keeps user ownership of its home tree, group ownership goes to
// the root group with read+write access, and the account joins the root
// group as a secondary group. Orchestrators that run the container under an
// arbitrary UID inject that UID with GID 0, so group access is what keeps
// the stateful directories usable.
//
// The stage also links the legacy home's state directory to the current
// layout so volumes created under the predecessor layout keep resolving.
type ConfigureOwnershipStage struct{}

// NewConfigureOwnershipStage returns the ownership stage.
func NewConfigureOwnershipStage() *ConfigureOwnershipStage {
	return &ConfigureOwnershipStage{}
}

func (s *ConfigureOwnershipStage) Name() string { return StageConfigureOwnership }

func (s *ConfigureOwnershipStage) Run(ctx context.Context, env *Env) error {
	acct := env.Cfg.Account

	if err := env.Exec.Run(ctx, "usermod", "-aG", "root", string(acct.Name)); err != nil {
		return fmt.Errorf("adding %q to the root group: %w", acct.Name, err)
	}

	if err := applyGroupAccess(env, acct.Home, int(acct.UID)); err != nil {
		return err
	}

	if acct.LegacyHome != "" {
		if err := s.linkLegacyState(env); err != nil {
			return err
		}
	}
	env.Logger().Info("applied group-0 ownership", "home", acct.Home)
	return nil
}

// applyGroupAccess recursively sets uid:0 ownership and group read+write
// (plus traverse on directories) under the given in-image path.
func applyGroupAccess(env *Env, abs string, uid int) error {
	root := env.Path(abs)
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return &PermissionSetupError{Path: p, Cause: err}
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if err := env.chown(p, uid, 0); err != nil {
			return &PermissionSetupError{Path: p, Cause: err}
		}
		info, err := d.Info()
		if err != nil {
			return &PermissionSetupError{Path: p, Cause: err}
		}
		mode := info.Mode().Perm()
		if d.IsDir() {
			mode |= 0o070
		} else {
			mode |= 0o060
		}
		if err := os.Chmod(p, mode); err != nil {
			return &PermissionSetupError{Path: p, Cause: err}
		}
		return nil
	})
}

// linkLegacyState creates legacy_home/<dir> as a symlink to the equivalent
// directory under the current home. Idempotent: an existing correct link is
// left alone, and the legacy home is created when missing.
func (s *ConfigureOwnershipStage) linkLegacyState(env *Env) error {
	acct := env.Cfg.Account
	dir := string(acct.LegacyStateDir)

	legacyHome := env.Path(acct.LegacyHome)
	if err := os.MkdirAll(legacyHome, 0o770); err != nil {
		return &PermissionSetupError{Path: acct.LegacyHome, Cause: err}
	}
	if err := env.chown(legacyHome, int(acct.UID), 0); err != nil {
		return &PermissionSetupError{Path: acct.LegacyHome, Cause: err}
	}

	linkPath := filepath.Join(legacyHome, dir)
	target := env.Path(path.Join(acct.Home, dir))

	if existing, err := os.Readlink(linkPath); err == nil {
		if existing == target {
			env.Logger().Debug("legacy state link already present", "link", linkPath)
			return nil
		}
		if err := os.Remove(linkPath); err != nil {
			return &PermissionSetupError{Path: linkPath, Cause: err}
		}
	} else if _, statErr := os.Lstat(linkPath); statErr == nil {
		return &PermissionSetupError{
			Path:  linkPath,
			Cause: fmt.Errorf("exists and is not a symlink"),
		}
	}

	if err := os.Symlink(target, linkPath); err != nil {
		return &PermissionSetupError{Path: linkPath, Cause: err}
	}
	env.Logger().Info("linked legacy state directory", "link", linkPath, "target", target)
	return nil
}
