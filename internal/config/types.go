// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	// ContainerEnginePodman uses Podman as the container engine.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker as the container engine.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEngineAuto picks whichever engine is available (Podman first).
	ContainerEngineAuto ContainerEngine = ""
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidAccountName is the sentinel error wrapped by InvalidAccountNameError.
	ErrInvalidAccountName = errors.New("invalid account name")
	// ErrInvalidAccountUID is the sentinel error wrapped by InvalidAccountUIDError.
	ErrInvalidAccountUID = errors.New("invalid account uid")
	// ErrInvalidExtraName is the sentinel error wrapped by InvalidExtraNameError.
	ErrInvalidExtraName = errors.New("invalid extra name")
	// ErrInvalidStatefulDir is the sentinel error wrapped by InvalidStatefulDirError.
	ErrInvalidStatefulDir = errors.New("invalid stateful directory")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which container engine builds the image.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is
	// not recognized. It wraps ErrInvalidContainerEngine for errors.Is().
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// AccountName is the service account's login name. A valid name is
	// non-empty, lowercase, and starts with a letter (useradd's rules,
	// conservatively).
	AccountName string

	// InvalidAccountNameError is returned when an AccountName is empty or
	// contains characters useradd would reject.
	InvalidAccountNameError struct {
		Value AccountName
	}

	// AccountUID is the service account's numeric user ID. Zero (root) is
	// never a valid service account UID in this pipeline: the whole point of
	// the account is to drop privileges before the image is finalized.
	AccountUID uint32

	// InvalidAccountUIDError is returned when an AccountUID is zero.
	InvalidAccountUIDError struct {
		Value AccountUID
	}

	// ExtraName is one optional-feature flag of the application artifact
	// (e.g. "askar" or "bbs_signatures"). Extras are appended to the install
	// spec in brackets: wheel[askar,bbs_signatures].
	ExtraName string

	// InvalidExtraNameError is returned when an ExtraName contains characters
	// outside the [a-z0-9_-] set the installer accepts.
	InvalidExtraNameError struct {
		Value ExtraName
	}

	// StatefulDir is one home-relative stateful directory path (e.g.
	// ".indy_client" or "log"). A valid value is relative and never escapes
	// the home directory.
	StatefulDir string

	// InvalidStatefulDirError is returned when a StatefulDir is empty,
	// absolute, or escapes the home directory via "..".
	InvalidStatefulDirError struct {
		Value StatefulDir
	}

	// InvalidConfigError aggregates every field validation failure of a
	// Config. It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrs []error
	}

	// ImageConfig names the base images for the two filesystem stages.
	ImageConfig struct {
		// BuilderBase is the image of the isolated artifact build stage.
		// Its toolchain and intermediate files never reach the final image.
		BuilderBase string `mapstructure:"builder_base" json:"builder_base"`
		// RuntimeBase is the image the final runtime environment starts from.
		RuntimeBase string `mapstructure:"runtime_base" json:"runtime_base"`
	}

	// AccountConfig describes the service account and its directory layout.
	AccountConfig struct {
		Name AccountName `mapstructure:"name" json:"name"`
		UID  AccountUID  `mapstructure:"uid" json:"uid"`
		// Home is the account's home directory inside the image.
		Home string `mapstructure:"home" json:"home"`
		// LegacyHome is the home path of the predecessor pipeline's account.
		// Its state directory is symlinked to the current layout so volumes
		// created under the old layout keep working. Empty disables the link.
		LegacyHome string `mapstructure:"legacy_home" json:"legacy_home"`
		// LegacyStateDir is the home-relative state directory the legacy
		// symlink covers (the secure-storage client state).
		LegacyStateDir StatefulDir `mapstructure:"legacy_state_dir" json:"legacy_state_dir"`
		// StatefulDirs are home-relative directories that must stay
		// read/writable under any orchestrator-assigned UID. They are owned
		// by the account with group 0 and group rw bits applied recursively.
		StatefulDirs []StatefulDir `mapstructure:"stateful_dirs" json:"stateful_dirs"`
	}

	// AppConfig describes the application artifact.
	AppConfig struct {
		// Name is a descriptive label attached to image metadata only.
		Name string `mapstructure:"name" json:"name"`
		// Version is a descriptive label attached to image metadata only.
		Version string `mapstructure:"version" json:"version"`
		// SourceDir is the application source directory on the host.
		SourceDir string `mapstructure:"source_dir" json:"source_dir"`
		// WheelGlob matches the built artifact file. If several files match,
		// the first in sorted order is installed (defined tie-break).
		WheelGlob string `mapstructure:"wheel_glob" json:"wheel_glob"`
		// Binary is the console entrypoint installed by the artifact; the
		// entrypoint dispatcher execs it verbatim.
		Binary string `mapstructure:"binary" json:"binary"`
		// Extras selects the optional dependency groups installed with the
		// artifact. Empty means base application only.
		Extras []ExtraName `mapstructure:"extras" json:"extras,omitempty"`
	}

	// PluginsConfig describes the vendored extension packages.
	PluginsConfig struct {
		// Dir holds one subdirectory per plugin package, vendored into the
		// build context. Plugins install independently, in sorted order,
		// strictly after the base artifact.
		Dir string `mapstructure:"dir" json:"dir"`
	}

	// BaseConfig describes the runtime base preparation.
	BaseConfig struct {
		// Packages is the fixed, explicit list of native packages installed
		// into the runtime base. No resolution beyond what apt's declared
		// dependency graph provides.
		Packages []string `mapstructure:"packages" json:"packages,omitempty"`
	}

	// Config is the full provisioning configuration.
	Config struct {
		Engine  ContainerEngine `mapstructure:"container_engine" json:"container_engine"`
		Image   ImageConfig     `mapstructure:"image" json:"image"`
		Account AccountConfig   `mapstructure:"account" json:"account"`
		App     AppConfig       `mapstructure:"app" json:"app"`
		Plugins PluginsConfig   `mapstructure:"plugins" json:"plugins"`
		Base    BaseConfig      `mapstructure:"base" json:"base"`
	}
)

// Error implements the error interface.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman, or empty for auto)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// Validate returns an error if the ContainerEngine is not a recognized value.
// The zero value ("") is valid and means auto-detection.
func (c ContainerEngine) Validate() error {
	switch c {
	case ContainerEngineDocker, ContainerEnginePodman, ContainerEngineAuto:
		return nil
	default:
		return &InvalidContainerEngineError{Value: c}
	}
}

// String returns the string representation of the ContainerEngine.
func (c ContainerEngine) String() string { return string(c) }

// Error implements the error interface.
func (e *InvalidAccountNameError) Error() string {
	return fmt.Sprintf("invalid account name %q: must be non-empty, lowercase, and start with a letter", e.Value)
}

// Unwrap returns ErrInvalidAccountName for errors.Is() compatibility.
func (e *InvalidAccountNameError) Unwrap() error { return ErrInvalidAccountName }

// Validate returns an error if the AccountName would be rejected by useradd.
func (n AccountName) Validate() error {
	if n == "" {
		return &InvalidAccountNameError{Value: n}
	}
	for i, c := range n {
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && (c == '-' || c == '_' || (c >= '0' && c <= '9')):
		default:
			return &InvalidAccountNameError{Value: n}
		}
	}
	return nil
}

// String returns the string representation of the AccountName.
func (n AccountName) String() string { return string(n) }

// Error implements the error interface.
func (e *InvalidAccountUIDError) Error() string {
	return fmt.Sprintf("invalid account uid %d: must be non-zero (the service account is never root)", e.Value)
}

// Unwrap returns ErrInvalidAccountUID for errors.Is() compatibility.
func (e *InvalidAccountUIDError) Unwrap() error { return ErrInvalidAccountUID }

// Validate returns an error if the AccountUID is zero.
func (u AccountUID) Validate() error {
	if u == 0 {
		return &InvalidAccountUIDError{Value: u}
	}
	return nil
}

// String returns the decimal representation of the AccountUID.
func (u AccountUID) String() string { return fmt.Sprintf("%d", u) }

// Error implements the error interface.
func (e *InvalidExtraNameError) Error() string {
	return fmt.Sprintf("invalid extra name %q: must match [a-z0-9_-]+", e.Value)
}

// Unwrap returns ErrInvalidExtraName for errors.Is() compatibility.
func (e *InvalidExtraNameError) Unwrap() error { return ErrInvalidExtraName }

// Validate returns an error if the ExtraName is empty or contains characters
// the installer's bracket syntax does not accept.
func (x ExtraName) Validate() error {
	if x == "" {
		return &InvalidExtraNameError{Value: x}
	}
	for _, c := range x {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return &InvalidExtraNameError{Value: x}
		}
	}
	return nil
}

// String returns the string representation of the ExtraName.
func (x ExtraName) String() string { return string(x) }

// Error implements the error interface.
func (e *InvalidStatefulDirError) Error() string {
	return fmt.Sprintf("invalid stateful directory %q: must be a relative path inside the home directory", e.Value)
}

// Unwrap returns ErrInvalidStatefulDir for errors.Is() compatibility.
func (e *InvalidStatefulDirError) Unwrap() error { return ErrInvalidStatefulDir }

// Validate returns an error if the StatefulDir is empty, absolute, or
// escapes the home directory.
func (d StatefulDir) Validate() error {
	s := string(d)
	if strings.TrimSpace(s) == "" || path.IsAbs(s) {
		return &InvalidStatefulDirError{Value: d}
	}
	clean := path.Clean(s)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return &InvalidStatefulDirError{Value: d}
	}
	return nil
}

// String returns the string representation of the StatefulDir.
func (d StatefulDir) String() string { return string(d) }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrs))
}

// Unwrap returns the sentinel plus every field error so callers can use
// errors.Is against both ErrInvalidConfig and the individual sentinels.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrs...)
}

// Validate checks every typed field of the Config.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Account.Name.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Account.UID.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Account.Home == "" || !path.IsAbs(c.Account.Home) {
		errs = append(errs, fmt.Errorf("account home %q must be an absolute path", c.Account.Home))
	}
	if len(c.Account.StatefulDirs) == 0 {
		errs = append(errs, errors.New("account stateful_dirs must not be empty"))
	}
	for _, d := range c.Account.StatefulDirs {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Account.LegacyHome != "" {
		if !path.IsAbs(c.Account.LegacyHome) {
			errs = append(errs, fmt.Errorf("account legacy_home %q must be an absolute path", c.Account.LegacyHome))
		}
		if err := c.Account.LegacyStateDir.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, x := range c.App.Extras {
		if err := x.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Image.BuilderBase == "" || c.Image.RuntimeBase == "" {
		errs = append(errs, errors.New("image builder_base and runtime_base must be set"))
	}
	if c.App.WheelGlob == "" {
		errs = append(errs, errors.New("app wheel_glob must be set"))
	}
	if c.App.Binary == "" {
		errs = append(errs, errors.New("app binary must be set"))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrs: errs}
	}
	return nil
}

// StatefulPaths returns the absolute stateful directory paths under home.
func (c *Config) StatefulPaths() []string {
	paths := make([]string, 0, len(c.Account.StatefulDirs))
	for _, d := range c.Account.StatefulDirs {
		paths = append(paths, path.Join(c.Account.Home, string(d)))
	}
	return paths
}

// ExtrasSpec renders the bracketed extras suffix for the install spec.
// Returns "" when no extras are configured.
func (c *Config) ExtrasSpec() string {
	if len(c.App.Extras) == 0 {
		return ""
	}
	names := make([]string, 0, len(c.App.Extras))
	for _, x := range c.App.Extras {
		names = append(names, string(x))
	}
	return "[" + strings.Join(names, ",") + "]"
}
