// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeConfigFile writes content to a temp file and points the loader at it.
// The override is reset when the test finishes.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	SetConfigFilePathOverride(path)
	t.Cleanup(func() { SetConfigFilePathOverride("") })
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Not parallel: mutates the global config file override.
	SetConfigFilePathOverride("")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Account.Name != "aries" || cfg.Account.UID != 1001 {
		t.Errorf("default account = %s/%d, want aries/1001", cfg.Account.Name, cfg.Account.UID)
	}
	if cfg.Account.Home != "/home/aries" || cfg.Account.LegacyHome != "/home/indy" {
		t.Errorf("default homes = %s, %s", cfg.Account.Home, cfg.Account.LegacyHome)
	}
	if len(cfg.Account.StatefulDirs) != 4 {
		t.Errorf("default stateful dirs = %v, want 4 entries", cfg.Account.StatefulDirs)
	}
	if len(cfg.App.Extras) != 0 {
		t.Errorf("default extras = %v, want none", cfg.App.Extras)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	writeConfigFile(t, `
account: {
	name: "indy"
	uid:  1002
}
app: {
	version: "1.4.0"
	extras: ["askar", "bbs_signatures"]
}
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Account.Name != "indy" || cfg.Account.UID != 1002 {
		t.Errorf("account = %s/%d, want indy/1002", cfg.Account.Name, cfg.Account.UID)
	}
	// Untouched sections keep their defaults.
	if cfg.Account.Home != "/home/aries" {
		t.Errorf("home = %q, want default /home/aries", cfg.Account.Home)
	}
	if cfg.App.Version != "1.4.0" {
		t.Errorf("version = %q, want 1.4.0", cfg.App.Version)
	}
	if got := cfg.ExtrasSpec(); got != "[askar,bbs_signatures]" {
		t.Errorf("ExtrasSpec() = %q", got)
	}
}

func TestLoad_SchemaRejection(t *testing.T) {
	writeConfigFile(t, `
account: {
	uid: "not-a-number"
}
`)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should reject a uid of the wrong type")
	}
}

func TestLoad_SchemaRejectsAbsoluteStatefulDir(t *testing.T) {
	writeConfigFile(t, `
account: {
	stateful_dirs: ["/var/log"]
}
`)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject absolute stateful_dirs entries")
	}
}

func TestLoad_MissingOverrideFileFails(t *testing.T) {
	SetConfigFilePathOverride(filepath.Join(t.TempDir(), "nope.cue"))
	t.Cleanup(func() { SetConfigFilePathOverride("") })

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail when the --config path does not exist")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	SetConfigFilePathOverride("")
	t.Setenv("AGENTPACK_ACCOUNT_UID", "2000")
	t.Setenv("AGENTPACK_CONTAINER_ENGINE", "docker")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Account.UID != 2000 {
		t.Errorf("env-overridden uid = %d, want 2000", cfg.Account.UID)
	}
	if cfg.Engine != ContainerEngineDocker {
		t.Errorf("env-overridden engine = %q, want docker", cfg.Engine)
	}
}

func TestLoad_InvalidEngineRejected(t *testing.T) {
	SetConfigFilePathOverride("")
	t.Setenv("AGENTPACK_CONTAINER_ENGINE", "buildah")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should reject an unknown container engine")
	}
	if !errors.Is(err, ErrInvalidContainerEngine) {
		t.Errorf("error should unwrap to ErrInvalidContainerEngine: %v", err)
	}
}
