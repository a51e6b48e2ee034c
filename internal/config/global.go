// SPDX-License-Identifier: MPL-2.0

package config

// configFileOverride holds a config file path set via the --config flag.
// When set, it is used exclusively; the search paths are skipped.
var configFileOverride string

// SetConfigFilePathOverride sets an explicit config file path.
// Pass "" to restore the default search behavior (tests rely on this).
func SetConfigFilePathOverride(path string) {
	configFileOverride = path
}

// ConfigFilePathOverride returns the currently set override, or "".
func ConfigFilePathOverride() string {
	return configFileOverride
}
