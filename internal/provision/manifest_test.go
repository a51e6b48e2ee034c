// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"agentpack/internal/container"
)

func TestParseFreeze(t *testing.T) {
	t.Parallel()

	output := `aiohttp==3.9.5
aries-cloudagent==1.0.0
# comment line

-e git+https://example.com/repo.git#egg=dev-package
pyyaml==6.0.1
`
	pkgs := ParseFreeze(output)
	want := []Package{
		{Name: "aiohttp", Version: "3.9.5"},
		{Name: "aries-cloudagent", Version: "1.0.0"},
		{Name: "pyyaml", Version: "6.0.1"},
	}
	if len(pkgs) != len(want) {
		t.Fatalf("ParseFreeze() returned %d packages, want %d: %v", len(pkgs), len(want), pkgs)
	}
	for i, w := range want {
		if pkgs[i] != w {
			t.Errorf("package %d = %v, want %v", i, pkgs[i], w)
		}
	}
}

func TestCaptureManifest(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{t: t, runStdout: "aries-cloudagent==1.0.0\npyyaml==6.0.1\n"}
	m, err := CaptureManifest(context.Background(), engine, "agentpack-runtime:abc123def456")
	if err != nil {
		t.Fatalf("CaptureManifest() error = %v", err)
	}

	if m.Image != "agentpack-runtime:abc123def456" {
		t.Errorf("Image = %q, want the captured tag", m.Image)
	}
	want := []Package{
		{Name: "aries-cloudagent", Version: "1.0.0"},
		{Name: "pyyaml", Version: "6.0.1"},
	}
	if len(m.Packages) != len(want) {
		t.Fatalf("Packages = %v, want %v", m.Packages, want)
	}
	for i, w := range want {
		if m.Packages[i] != w {
			t.Errorf("package %d = %v, want %v", i, m.Packages[i], w)
		}
	}
}

func TestCaptureManifestEngineFailure(t *testing.T) {
	t.Parallel()

	infraErr := errors.New("engine binary vanished")
	engine := &fakeEngine{t: t, runResult: &container.RunResult{ExitCode: 1, Error: infraErr}}
	if _, err := CaptureManifest(context.Background(), engine, "agentpack-runtime:abc123def456"); !errors.Is(err, infraErr) {
		t.Fatalf("CaptureManifest() error = %v, want wrapped %v", err, infraErr)
	}
}

func TestCaptureManifestNonZeroExit(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{t: t, runResult: &container.RunResult{ExitCode: 2}}
	_, err := CaptureManifest(context.Background(), engine, "agentpack-runtime:abc123def456")
	if err == nil {
		t.Fatal("CaptureManifest() succeeded despite non-zero exit")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Image:       "agentpack-runtime:abc123def456",
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Packages: []Package{
			{Name: "aries-cloudagent", Version: "1.0.0"},
			{Name: "aries-askar", Version: "0.3.2"},
		},
	}

	path := filepath.Join(t.TempDir(), "manifest.toml")
	if err := m.Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}

	if got.Image != m.Image {
		t.Errorf("Image = %q, want %q", got.Image, m.Image)
	}
	if !got.SamePackages(m) {
		t.Errorf("Packages = %v, want %v", got.Packages, m.Packages)
	}
}

func TestSamePackages(t *testing.T) {
	t.Parallel()

	base := &Manifest{Packages: []Package{
		{Name: "aries-cloudagent", Version: "1.0.0"},
		{Name: "pyyaml", Version: "6.0.1"},
	}}

	tests := []struct {
		name  string
		other *Manifest
		want  bool
	}{
		{
			"identical pins under different tags",
			&Manifest{Image: "other:tag", Packages: []Package{
				{Name: "aries-cloudagent", Version: "1.0.0"},
				{Name: "pyyaml", Version: "6.0.1"},
			}},
			true,
		},
		{
			"different version",
			&Manifest{Packages: []Package{
				{Name: "aries-cloudagent", Version: "1.0.1"},
				{Name: "pyyaml", Version: "6.0.1"},
			}},
			false,
		},
		{
			"missing package",
			&Manifest{Packages: []Package{
				{Name: "aries-cloudagent", Version: "1.0.0"},
			}},
			false,
		},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := base.SamePackages(tt.other); got != tt.want {
				t.Errorf("SamePackages() = %v, want %v", got, tt.want)
			}
		})
	}
}
