// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"io"
	"os"
)

type (
	// BuildConfig holds the host-side knobs of an image build. The
	// resolved provisioning config (account, packages, app) travels
	// separately; BuildConfig is only about how this build runs.
	BuildConfig struct {
		// ForceRebuild bypasses the image cache and always rebuilds.
		ForceRebuild bool

		// NoCache disables the engine's layer cache as well.
		NoCache bool

		// BinaryPath is the agentpack binary copied into the image to
		// run the provisioning stages. Empty means os.Executable().
		BinaryPath string

		// SourceDir overrides the config's application source directory.
		SourceDir string

		// PluginsDir overrides the config's vendored plugins directory.
		// The directory may be absent; the image then carries no plugins.
		PluginsDir string

		// TagSuffix is appended to built image tags, mainly so parallel
		// test runs don't compete for the same tag.
		// Read from AGENTPACK_TAG_SUFFIX when unset.
		TagSuffix string

		// Output receives engine build progress.
		Output io.Writer
	}

	// Option is a functional option for BuildConfig.
	Option func(*BuildConfig)
)

// DefaultBuildConfig returns a BuildConfig with default values.
func DefaultBuildConfig() *BuildConfig {
	binaryPath, _ := os.Executable()
	return &BuildConfig{
		BinaryPath: binaryPath,
		TagSuffix:  os.Getenv("AGENTPACK_TAG_SUFFIX"),
		Output:     os.Stderr,
	}
}

// WithForceRebuild returns an Option that sets ForceRebuild.
func WithForceRebuild(force bool) Option {
	return func(c *BuildConfig) { c.ForceRebuild = force }
}

// WithNoCache returns an Option that disables the engine layer cache.
func WithNoCache(noCache bool) Option {
	return func(c *BuildConfig) { c.NoCache = noCache }
}

// WithBinaryPath returns an Option that sets the agentpack binary path.
func WithBinaryPath(path string) Option {
	return func(c *BuildConfig) { c.BinaryPath = path }
}

// WithSourceDir returns an Option that overrides the source directory.
func WithSourceDir(dir string) Option {
	return func(c *BuildConfig) { c.SourceDir = dir }
}

// WithPluginsDir returns an Option that overrides the plugins directory.
func WithPluginsDir(dir string) Option {
	return func(c *BuildConfig) { c.PluginsDir = dir }
}

// WithTagSuffix returns an Option that sets the image tag suffix.
func WithTagSuffix(suffix string) Option {
	return func(c *BuildConfig) { c.TagSuffix = suffix }
}

// WithOutput returns an Option that sets the build progress writer.
func WithOutput(w io.Writer) Option {
	return func(c *BuildConfig) { c.Output = w }
}

// Apply applies the given options to the config.
func (c *BuildConfig) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
