// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentpack/internal/issue"
	"agentpack/pkg/cueutil"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for directory and env var naming.
	AppName = "agentpack"
	// ConfigFileName is the name of the config file (with extension).
	ConfigFileName = "agentpack.cue"
	// EnvPrefix is the prefix for environment variable overrides
	// (e.g. AGENTPACK_ACCOUNT_UID).
	EnvPrefix = "AGENTPACK"
)

//go:embed config_schema.cue
var configSchema []byte

// DefaultConfig returns the built-in defaults: the layout and identity the
// predecessor pipeline established for the aries cloud-agent images.
func DefaultConfig() *Config {
	return &Config{
		Engine: ContainerEngineAuto,
		Image: ImageConfig{
			BuilderBase: "python:3.12-slim-bookworm",
			RuntimeBase: "python:3.12-slim-bookworm",
		},
		Account: AccountConfig{
			Name:           "aries",
			UID:            1001,
			Home:           "/home/aries",
			LegacyHome:     "/home/indy",
			LegacyStateDir: ".indy_client",
			StatefulDirs: []StatefulDir{
				".aries_cloudagent",
				".indy_client",
				"ledger",
				"log",
			},
		},
		App: AppConfig{
			Name:      "aries-cloudagent",
			Version:   "0.0.0",
			SourceDir: ".",
			WheelGlob: "aries_cloudagent-*.whl",
			Binary:    "aca-py",
			Extras:    nil,
		},
		Plugins: PluginsConfig{
			Dir: "plugins",
		},
		Base: BaseConfig{
			Packages: []string{
				"curl",
				"git",
				"libsodium23",
				"libssl3",
				"libzmq5",
				"sqlite3",
			},
		},
	}
}

// Load reads the config file (if any), applies environment overrides, and
// returns the validated configuration.
//
// Search order for the config file:
//  1. Explicit path set via SetConfigFilePathOverride (--config flag)
//  2. ./agentpack.cue in the current directory
//  3. <user config dir>/agentpack/agentpack.cue
//
// A missing file is not an error; defaults plus env overrides apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolveConfigFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Check field types against the config schema").
			Wrap(err).
			BuildError()
	}

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Run 'agentpack config show' to inspect the effective values").
			Wrap(err).
			BuildError()
	}

	return &cfg, nil
}

// ResolveConfigFile reports the config file the current run would read.
// Returns "" when no file exists and built-in defaults apply.
func ResolveConfigFile() (string, error) {
	return resolveConfigFile()
}

// resolveConfigFile returns the config file path to load, or "" when none
// exists. An explicitly overridden path must exist.
func resolveConfigFile() (string, error) {
	if configFileOverride != "" {
		if !fileExists(configFileOverride) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(configFileOverride).
				WithSuggestion("Verify the --config path is correct").
				BuildError()
		}
		return configFileOverride, nil
	}

	if fileExists(ConfigFileName) {
		return ConfigFileName, nil
	}

	if dir, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(dir, AppName, ConfigFileName)
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	return "", nil
}

// loadCUEIntoViper validates the CUE file against the embedded schema and
// merges the decoded values into the viper instance.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	result, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path))
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("parse configuration").
			WithResource(path).
			WithSuggestion("Check the CUE syntax and field names").
			Wrap(err).
			BuildError()
	}

	if err := v.MergeConfigMap(*result.Value); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// setDefaults registers every default value with viper so that env
// overrides bind even when the config file omits the section.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("container_engine", string(d.Engine))
	v.SetDefault("image.builder_base", d.Image.BuilderBase)
	v.SetDefault("image.runtime_base", d.Image.RuntimeBase)
	v.SetDefault("account.name", string(d.Account.Name))
	v.SetDefault("account.uid", uint32(d.Account.UID))
	v.SetDefault("account.home", d.Account.Home)
	v.SetDefault("account.legacy_home", d.Account.LegacyHome)
	v.SetDefault("account.legacy_state_dir", string(d.Account.LegacyStateDir))
	v.SetDefault("account.stateful_dirs", statefulDirStrings(d.Account.StatefulDirs))
	v.SetDefault("app.name", d.App.Name)
	v.SetDefault("app.version", d.App.Version)
	v.SetDefault("app.source_dir", d.App.SourceDir)
	v.SetDefault("app.wheel_glob", d.App.WheelGlob)
	v.SetDefault("app.binary", d.App.Binary)
	v.SetDefault("app.extras", []string{})
	v.SetDefault("plugins.dir", d.Plugins.Dir)
	v.SetDefault("base.packages", d.Base.Packages)
}

func statefulDirStrings(dirs []StatefulDir) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, string(d))
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
