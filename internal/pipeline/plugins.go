// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// InstallPluginsStage installs every vendored plugin source tree found in
// the plugins directory, one pip invocation per plugin, in lexicographic
// order. Runs as root so plugins land in the system site, alongside but
// separate from the application's user-site install. A missing plugins
// directory means no plugins and is not an error; a failing plugin aborts
// the stage.
type InstallPluginsStage struct {
	// PluginsDir holds one subdirectory per vendored plugin.
	PluginsDir string
}

// NewInstallPluginsStage returns the plugin install stage.
func NewInstallPluginsStage(pluginsDir string) *InstallPluginsStage {
	return &InstallPluginsStage{PluginsDir: pluginsDir}
}

func (s *InstallPluginsStage) Name() string { return StageInstallPlugins }

func (s *InstallPluginsStage) Run(ctx context.Context, env *Env) error {
	dir := env.Path(s.PluginsDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		env.Logger().Debug("no plugins directory", "dir", s.PluginsDir)
		return nil
	}
	if err != nil {
		return &PackageInstallError{Package: s.PluginsDir, Cause: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		src := filepath.Join(dir, name)
		if err := env.Exec.Run(ctx, "pip", "install", "--no-cache-dir", src); err != nil {
			return &PackageInstallError{Package: name, Cause: err}
		}
		env.Logger().Info("installed plugin", "plugin", name)
	}
	return nil
}
