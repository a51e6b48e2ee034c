// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
)

func TestContainerEngine_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   ContainerEngine
		wantErr bool
	}{
		{ContainerEngineDocker, false},
		{ContainerEnginePodman, false},
		{ContainerEngineAuto, false},
		{"buildah", true},
	}

	for _, tt := range tests {
		err := tt.value.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("ContainerEngine(%q).Validate() = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidContainerEngine) {
			t.Errorf("error should unwrap to ErrInvalidContainerEngine: %v", err)
		}
	}
}

func TestAccountName_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   AccountName
		wantErr bool
	}{
		{"aries", false},
		{"indy", false},
		{"svc-agent", false},
		{"agent_01", false},
		{"", true},
		{"Aries", true},
		{"1agent", true},
		{"-agent", true},
		{"agent user", true},
	}

	for _, tt := range tests {
		err := tt.value.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("AccountName(%q).Validate() = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidAccountName) {
			t.Errorf("error should unwrap to ErrInvalidAccountName: %v", err)
		}
	}
}

func TestAccountUID_Validate(t *testing.T) {
	t.Parallel()

	if err := AccountUID(1001).Validate(); err != nil {
		t.Errorf("AccountUID(1001).Validate() = %v, want nil", err)
	}
	err := AccountUID(0).Validate()
	if err == nil {
		t.Fatal("AccountUID(0).Validate() should fail: root is never the service account")
	}
	if !errors.Is(err, ErrInvalidAccountUID) {
		t.Errorf("error should unwrap to ErrInvalidAccountUID: %v", err)
	}
}

func TestExtraName_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   ExtraName
		wantErr bool
	}{
		{"askar", false},
		{"bbs_signatures", false},
		{"didcomm-v2", false},
		{"", true},
		{"Askar", true},
		{"askar extras", true},
		{"askar]", true},
	}

	for _, tt := range tests {
		err := tt.value.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("ExtraName(%q).Validate() = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestStatefulDir_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   StatefulDir
		wantErr bool
	}{
		{".indy_client", false},
		{"log", false},
		{"ledger/sandbox", false},
		{"", true},
		{"  ", true},
		{"/var/log", true},
		{"../outside", true},
		{"a/../../outside", true},
	}

	for _, tt := range tests {
		err := tt.value.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("StatefulDir(%q).Validate() = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestConfig_Validate_Defaults(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestConfig_Validate_AggregatesErrors(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Account.Name = "Bad Name"
	cfg.Account.UID = 0
	cfg.App.Extras = []ExtraName{"ok", "NOT OK"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error should unwrap to ErrInvalidConfig: %v", err)
	}
	if !errors.Is(err, ErrInvalidAccountName) || !errors.Is(err, ErrInvalidAccountUID) || !errors.Is(err, ErrInvalidExtraName) {
		t.Errorf("aggregated error should expose field sentinels: %v", err)
	}
}

func TestConfig_StatefulPaths(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	paths := cfg.StatefulPaths()
	want := []string{
		"/home/aries/.aries_cloudagent",
		"/home/aries/.indy_client",
		"/home/aries/ledger",
		"/home/aries/log",
	}
	if len(paths) != len(want) {
		t.Fatalf("StatefulPaths() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("StatefulPaths()[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestConfig_ExtrasSpec(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if got := cfg.ExtrasSpec(); got != "" {
		t.Errorf("ExtrasSpec() with no extras = %q, want empty", got)
	}

	cfg.App.Extras = []ExtraName{"askar", "bbs_signatures"}
	if got := cfg.ExtrasSpec(); got != "[askar,bbs_signatures]" {
		t.Errorf("ExtrasSpec() = %q, want [askar,bbs_signatures]", got)
	}
}
