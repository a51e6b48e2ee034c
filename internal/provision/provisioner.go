// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"agentpack/internal/config"
	"agentpack/internal/container"
)

// imageRepository is the repository every built runtime image is tagged
// under; the tag is the content hash of the build inputs.
const imageRepository = "agentpack-runtime"

// Compile-time interface check
var _ Provisioner = (*ImageProvisioner)(nil)

type (
	// Provisioner builds the provisioned runtime image. Implementations
	// cache built images by a content hash of the build inputs so
	// unchanged inputs reuse the existing image.
	Provisioner interface {
		// Provision builds (or reuses) the runtime image and returns
		// its tag. Temporary build resources are removed before it
		// returns, never the cached image.
		Provision(ctx context.Context) (*Result, error)
	}

	// Result contains the output of a provisioning operation.
	Result struct {
		// ImageTag is the tag of the built image,
		// e.g. "agentpack-runtime:abc123def456".
		ImageTag container.ImageTag

		// Cached reports whether an existing image was reused.
		Cached bool
	}

	// ImageProvisioner builds the runtime image from the resolved config
	// through a container engine.
	ImageProvisioner struct {
		engine   container.Engine
		cfg      *config.Config
		buildCfg *BuildConfig
	}
)

// NewImageProvisioner creates an ImageProvisioner for the given engine and
// resolved config, with optional build options.
func NewImageProvisioner(engine container.Engine, cfg *config.Config, opts ...Option) *ImageProvisioner {
	buildCfg := DefaultBuildConfig()
	buildCfg.Apply(opts...)
	return &ImageProvisioner{
		engine:   engine,
		cfg:      cfg,
		buildCfg: buildCfg,
	}
}

// BuildConfig returns the provisioner's host-side build configuration.
func (p *ImageProvisioner) BuildConfig() *BuildConfig {
	return p.buildCfg
}

// Provision computes the content-hash tag for the current inputs, reuses a
// cached image when one exists, and otherwise assembles a build context and
// builds the image.
func (p *ImageProvisioner) Provision(ctx context.Context) (*Result, error) {
	tag, err := p.ImageTag()
	if err != nil {
		return nil, fmt.Errorf("failed to calculate image tag: %w", err)
	}

	if !p.buildCfg.ForceRebuild {
		exists, _ := p.engine.ImageExists(ctx, tag) //nolint:errcheck // Error treated as "not found"
		if exists {
			return &Result{ImageTag: tag, Cached: true}, nil
		}
	}

	if err := p.buildImage(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to build runtime image: %w", err)
	}
	return &Result{ImageTag: tag}, nil
}

// ImageTag returns the tag the current inputs would build, without
// building. Useful for checking whether the image is already cached.
func (p *ImageProvisioner) ImageTag() (container.ImageTag, error) {
	key, err := p.calculateCacheKey()
	if err != nil {
		return "", err
	}
	if p.buildCfg.TagSuffix != "" {
		return container.ImageTag(fmt.Sprintf("%s:%s-%s", imageRepository, key[:12], p.buildCfg.TagSuffix)), nil
	}
	return container.ImageTag(fmt.Sprintf("%s:%s", imageRepository, key[:12])), nil
}

// IsImageProvisioned checks whether the image for the current inputs
// already exists.
func (p *ImageProvisioner) IsImageProvisioned(ctx context.Context) (bool, error) {
	tag, err := p.ImageTag()
	if err != nil {
		return false, err
	}
	return p.engine.ImageExists(ctx, tag)
}

// sourceDir resolves the application source directory, with the build
// config override taking precedence.
func (p *ImageProvisioner) sourceDir() string {
	if p.buildCfg.SourceDir != "" {
		return p.buildCfg.SourceDir
	}
	return p.cfg.App.SourceDir
}

// pluginsDir resolves the vendored plugins directory, with the build
// config override taking precedence.
func (p *ImageProvisioner) pluginsDir() string {
	if p.buildCfg.PluginsDir != "" {
		return p.buildCfg.PluginsDir
	}
	return p.cfg.Plugins.Dir
}

// hasPlugins reports whether the plugins directory exists and holds at
// least one plugin subdirectory.
func (p *ImageProvisioner) hasPlugins() bool {
	entries, err := os.ReadDir(p.pluginsDir())
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			return true
		}
	}
	return false
}

// calculateCacheKey hashes everything that determines image content: the
// base image references, the resolved config, the agentpack binary, the
// application source tree, and the plugin trees.
func (p *ImageProvisioner) calculateCacheKey() (string, error) {
	h := sha256.New()

	h.Write([]byte("builder:" + p.cfg.Image.BuilderBase))
	h.Write([]byte("runtime:" + p.cfg.Image.RuntimeBase))

	cfgJSON, err := json.Marshal(p.cfg)
	if err != nil {
		return "", fmt.Errorf("failed to serialize config: %w", err)
	}
	cfgSum := sha256.Sum256(cfgJSON)
	h.Write([]byte("config:" + hex.EncodeToString(cfgSum[:])))

	if p.buildCfg.BinaryPath != "" {
		binaryHash, err := CalculateFileHash(p.buildCfg.BinaryPath)
		if err != nil {
			return "", fmt.Errorf("failed to hash agentpack binary: %w", err)
		}
		h.Write([]byte("binary:" + binaryHash))
	}

	sourceHash, err := CalculateDirHash(p.sourceDir())
	if err != nil {
		return "", fmt.Errorf("failed to hash source directory: %w", err)
	}
	h.Write([]byte("source:" + sourceHash))

	if p.hasPlugins() {
		pluginsHash, err := CalculateDirHash(p.pluginsDir())
		if err != nil {
			return "", fmt.Errorf("failed to hash plugins directory: %w", err)
		}
		h.Write([]byte("plugins:" + pluginsHash))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// buildImage assembles the build context and runs the engine build.
func (p *ImageProvisioner) buildImage(ctx context.Context, tag container.ImageTag) error {
	buildCtx, cleanup, err := p.prepareBuildContext()
	if err != nil {
		return err
	}
	defer cleanup()

	opts := container.BuildOptions{
		ContextDir: buildCtx,
		Dockerfile: "Dockerfile",
		Tag:        tag,
		NoCache:    p.buildCfg.NoCache,
		Labels: map[string]string{
			"org.opencontainers.image.title":   p.cfg.App.Name,
			"org.opencontainers.image.version": p.cfg.App.Version,
		},
		Stdout: p.buildCfg.Output,
		Stderr: p.buildCfg.Output,
	}
	return p.engine.Build(ctx, opts)
}

// prepareBuildContext creates a temporary directory holding everything the
// Dockerfile references: the agentpack binary, the serialized config, the
// source tree, and the plugin trees.
//
// Docker installed via Snap cannot read /tmp or hidden directories, so the
// context parent is a visible directory under the user's home when one
// exists.
func (p *ImageProvisioner) prepareBuildContext() (buildContextDir string, cleanup func(), err error) {
	var parent string
	if home, homeErr := os.UserHomeDir(); homeErr == nil {
		if _, statErr := os.Stat(home); statErr == nil {
			parent = filepath.Join(home, "agentpack-build")
		}
	}
	if parent == "" {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			parent = filepath.Join(cwd, ".agentpack-build")
		} else {
			parent = filepath.Join(os.TempDir(), "agentpack-build")
		}
	}
	if mkdirErr := os.MkdirAll(parent, 0o755); mkdirErr != nil {
		return "", nil, fmt.Errorf("failed to create build context parent directory: %w", mkdirErr)
	}

	tmpDir, err := os.MkdirTemp(parent, "ctx-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cleanup = func() {
		_ = os.RemoveAll(tmpDir) // Cleanup temp dir; error non-critical
	}
	fail := func(err error) (string, func(), error) {
		cleanup()
		return "", nil, err
	}

	if p.buildCfg.BinaryPath == "" {
		return fail(errors.New("no agentpack binary to copy into the image"))
	}
	binaryDst := filepath.Join(tmpDir, "agentpack")
	if err := CopyFile(p.buildCfg.BinaryPath, binaryDst); err != nil {
		return fail(fmt.Errorf("failed to copy agentpack binary: %w", err))
	}
	_ = os.Chmod(binaryDst, 0o755) // Best-effort; execution may still work

	cfgJSON, err := json.MarshalIndent(p.cfg, "", "\t")
	if err != nil {
		return fail(fmt.Errorf("failed to serialize config: %w", err))
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "agentpack.cue"), cfgJSON, 0o644); err != nil {
		return fail(fmt.Errorf("failed to write config: %w", err))
	}

	if err := CopyDir(p.sourceDir(), filepath.Join(tmpDir, "src")); err != nil {
		return fail(fmt.Errorf("failed to copy source directory: %w", err))
	}

	hasPlugins := p.hasPlugins()
	if hasPlugins {
		if err := CopyDir(p.pluginsDir(), filepath.Join(tmpDir, "plugins")); err != nil {
			return fail(fmt.Errorf("failed to copy plugins directory: %w", err))
		}
	}

	dockerfile, err := GenerateDockerfile(p.cfg, hasPlugins)
	if err != nil {
		return fail(fmt.Errorf("failed to generate Dockerfile: %w", err))
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		return fail(fmt.Errorf("failed to write Dockerfile: %w", err))
	}

	return tmpDir, cleanup, nil
}
