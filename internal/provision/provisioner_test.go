// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"agentpack/internal/config"
	"agentpack/internal/container"
)

// fakeEngine records build requests and serves canned image-existence
// answers. onBuild, when set, inspects the build context before cleanup
// removes it. runStdout and runResult shape the outcome of Run.
type fakeEngine struct {
	exists    bool
	builds    []container.BuildOptions
	onBuild   func(t *testing.T, opts container.BuildOptions)
	runStdout string
	runResult *container.RunResult
	t         *testing.T
}

func (f *fakeEngine) Name() string                                  { return "fake" }
func (f *fakeEngine) Available() bool                               { return true }
func (f *fakeEngine) Version(context.Context) (string, error)       { return "0.0-test", nil }
func (f *fakeEngine) Remove(context.Context, container.ContainerID, bool) error { return nil }
func (f *fakeEngine) RemoveImage(context.Context, container.ImageTag, bool) error { return nil }

func (f *fakeEngine) Build(_ context.Context, opts container.BuildOptions) error {
	f.builds = append(f.builds, opts)
	if f.onBuild != nil {
		f.onBuild(f.t, opts)
	}
	return nil
}

func (f *fakeEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	if f.runStdout != "" && opts.Stdout != nil {
		io.WriteString(opts.Stdout, f.runStdout)
	}
	if f.runResult != nil {
		return f.runResult, nil
	}
	return &container.RunResult{}, nil
}

func (f *fakeEngine) ImageExists(context.Context, container.ImageTag) (bool, error) {
	return f.exists, nil
}

// newTestInputs lays out a fake binary and a minimal source tree and
// returns the matching options.
func newTestInputs(t *testing.T) (*config.Config, []Option) {
	t.Helper()

	dir := t.TempDir()
	binary := filepath.Join(dir, "agentpack")
	writeTestFile(t, binary, "#!/bin/sh\n")
	srcDir := filepath.Join(dir, "src")
	writeTestFile(t, filepath.Join(srcDir, "setup.py"), "from setuptools import setup")

	cfg := config.DefaultConfig()
	opts := []Option{
		WithBinaryPath(binary),
		WithSourceDir(srcDir),
		WithPluginsDir(filepath.Join(dir, "plugins")),
		WithOutput(io.Discard),
	}
	return cfg, opts
}

var tagPattern = regexp.MustCompile(`^agentpack-runtime:[0-9a-f]{12}$`)

func TestProvisionBuildsImage(t *testing.T) {
	t.Parallel()

	cfg, opts := newTestInputs(t)
	engine := &fakeEngine{t: t}
	engine.onBuild = func(t *testing.T, opts container.BuildOptions) {
		for _, name := range []string{"Dockerfile", "agentpack", "agentpack.cue", "src"} {
			if _, err := os.Stat(filepath.Join(opts.ContextDir, name)); err != nil {
				t.Errorf("build context missing %s: %v", name, err)
			}
		}
		if _, err := os.Stat(filepath.Join(opts.ContextDir, "plugins")); err == nil {
			t.Error("build context contains plugins although none exist")
		}
	}

	p := NewImageProvisioner(engine, cfg, opts...)
	result, err := p.Provision(context.Background())
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if result.Cached {
		t.Error("Provision() reported cached for a fresh build")
	}
	if !tagPattern.MatchString(string(result.ImageTag)) {
		t.Errorf("image tag = %q, want %s", result.ImageTag, tagPattern)
	}
	if len(engine.builds) != 1 {
		t.Fatalf("engine built %d times, want 1", len(engine.builds))
	}
	if engine.builds[0].Tag != result.ImageTag {
		t.Errorf("built tag = %q, want %q", engine.builds[0].Tag, result.ImageTag)
	}
	if engine.builds[0].Labels["org.opencontainers.image.title"] != cfg.App.Name {
		t.Error("build missing application title label")
	}
}

func TestProvisionReusesCachedImage(t *testing.T) {
	t.Parallel()

	cfg, opts := newTestInputs(t)
	engine := &fakeEngine{t: t, exists: true}

	p := NewImageProvisioner(engine, cfg, opts...)
	result, err := p.Provision(context.Background())
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if !result.Cached {
		t.Error("Provision() should reuse the existing image")
	}
	if len(engine.builds) != 0 {
		t.Errorf("engine built %d times, want 0", len(engine.builds))
	}
}

func TestProvisionForceRebuild(t *testing.T) {
	t.Parallel()

	cfg, opts := newTestInputs(t)
	engine := &fakeEngine{t: t, exists: true}

	p := NewImageProvisioner(engine, cfg, append(opts, WithForceRebuild(true))...)
	result, err := p.Provision(context.Background())
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if result.Cached {
		t.Error("ForceRebuild must not reuse the cache")
	}
	if len(engine.builds) != 1 {
		t.Errorf("engine built %d times, want 1", len(engine.builds))
	}
}

func TestImageTagStableAcrossProvisioners(t *testing.T) {
	t.Parallel()

	cfg, opts := newTestInputs(t)
	engine := &fakeEngine{t: t}

	first, err := NewImageProvisioner(engine, cfg, opts...).ImageTag()
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewImageProvisioner(engine, cfg, opts...).ImageTag()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("tags differ for identical inputs: %q vs %q", first, second)
	}
}

func TestImageTagChangesWithSource(t *testing.T) {
	t.Parallel()

	cfg, opts := newTestInputs(t)
	engine := &fakeEngine{t: t}
	p := NewImageProvisioner(engine, cfg, opts...)

	before, err := p.ImageTag()
	if err != nil {
		t.Fatal(err)
	}

	writeTestFile(t, filepath.Join(p.sourceDir(), "newmodule.py"), "x = 1")
	after, err := p.ImageTag()
	if err != nil {
		t.Fatal(err)
	}
	if before == after {
		t.Error("tag unchanged after source modification")
	}
}

func TestImageTagSuffix(t *testing.T) {
	t.Parallel()

	cfg, opts := newTestInputs(t)
	engine := &fakeEngine{t: t}

	p := NewImageProvisioner(engine, cfg, append(opts, WithTagSuffix("test42"))...)
	tag, err := p.ImageTag()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(tag), "-test42") {
		t.Errorf("tag = %q, want -test42 suffix", tag)
	}
}

func TestProvisionIncludesPlugins(t *testing.T) {
	t.Parallel()

	cfg, opts := newTestInputs(t)
	engine := &fakeEngine{t: t}
	p := NewImageProvisioner(engine, cfg, opts...)

	withoutPlugins, err := p.ImageTag()
	if err != nil {
		t.Fatal(err)
	}

	writeTestFile(t, filepath.Join(p.pluginsDir(), "redis_events", "setup.py"), "from setuptools import setup")

	withPlugins, err := p.ImageTag()
	if err != nil {
		t.Fatal(err)
	}
	if withoutPlugins == withPlugins {
		t.Error("tag unchanged after adding a plugin")
	}

	engine.onBuild = func(t *testing.T, opts container.BuildOptions) {
		if _, err := os.Stat(filepath.Join(opts.ContextDir, "plugins", "redis_events")); err != nil {
			t.Errorf("build context missing plugin tree: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(opts.ContextDir, "Dockerfile"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "install-plugins") {
			t.Error("Dockerfile missing plugin stage")
		}
	}
	if _, err := p.Provision(context.Background()); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if len(engine.builds) != 1 {
		t.Fatalf("engine built %d times, want 1", len(engine.builds))
	}
}
