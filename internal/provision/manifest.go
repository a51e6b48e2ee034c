// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"agentpack/internal/container"
)

type (
	// Manifest records the exact package set a built image carries. It is
	// written as a TOML lockfile next to the build so two builds can be
	// compared for package-level equivalence.
	Manifest struct {
		// Image is the tag the manifest was captured from.
		Image string `toml:"image"`
		// GeneratedAt is the capture time.
		GeneratedAt time.Time `toml:"generated_at"`
		// Packages is the installed package list, as reported by the
		// image's package tooling.
		Packages []Package `toml:"packages"`
	}

	// Package is one installed package pin.
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	}
)

// CaptureManifest runs the image's package freeze and parses the result.
// The container is removed after the capture.
func CaptureManifest(ctx context.Context, engine container.Engine, tag container.ImageTag) (*Manifest, error) {
	var out bytes.Buffer
	result, err := engine.Run(ctx, container.RunOptions{
		Image:   tag,
		Command: []string{"pip", "freeze"},
		Remove:  true,
		Stdout:  &out,
		Stderr:  os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture package freeze: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to capture package freeze: %w", result.Error)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("package freeze exited with code %d", result.ExitCode)
	}

	return &Manifest{
		Image:       string(tag),
		GeneratedAt: time.Now().UTC(),
		Packages:    ParseFreeze(out.String()),
	}, nil
}

// ParseFreeze parses "name==version" freeze output. Lines without a pinned
// version (editable installs, URLs, comments) are skipped.
func ParseFreeze(output string) []Package {
	var pkgs []Package
	for line := range strings.Lines(output) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, version, ok := strings.Cut(line, "==")
		if !ok || name == "" || version == "" {
			continue
		}
		pkgs = append(pkgs, Package{Name: name, Version: version})
	}
	return pkgs
}

// Write serializes the manifest as TOML to the given path.
func (m *Manifest) Write(path string) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a TOML manifest from the given path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// SamePackages reports whether two manifests pin the identical package
// set, ignoring image tag and capture time.
func (m *Manifest) SamePackages(other *Manifest) bool {
	if other == nil || len(m.Packages) != len(other.Packages) {
		return false
	}
	for i, p := range m.Packages {
		if other.Packages[i] != p {
			return false
		}
	}
	return true
}
