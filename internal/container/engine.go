// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// EngineTypePodman selects the Podman CLI engine.
	EngineTypePodman EngineType = "podman"
	// EngineTypeDocker selects the Docker CLI engine.
	EngineTypeDocker EngineType = "docker"
)

var (
	// ErrNoEngineAvailable is the sentinel error wrapped by EngineNotAvailableError.
	ErrNoEngineAvailable = errors.New("no container engine available")

	// ErrInvalidBuildOptions is the sentinel error wrapped by InvalidBuildOptionsError.
	ErrInvalidBuildOptions = errors.New("invalid build options")

	// ErrInvalidRunOptions is the sentinel error wrapped by InvalidRunOptionsError.
	ErrInvalidRunOptions = errors.New("invalid run options")
)

type (
	// ImageTag identifies a container image (name:tag or digest form).
	ImageTag string

	// ContainerID identifies a container instance.
	ContainerID string

	// EngineType identifies the container engine flavor.
	EngineType string

	// Engine defines the container operations used by the provisioning
	// pipeline.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available checks if the engine is usable on this system.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)

		// Build builds an image from a Dockerfile.
		Build(ctx context.Context, opts BuildOptions) error
		// Run runs a command in a container.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// Remove removes a container.
		Remove(ctx context.Context, containerID ContainerID, force bool) error
		// ImageExists checks if an image exists locally.
		ImageExists(ctx context.Context, image ImageTag) (bool, error)
		// RemoveImage removes an image.
		RemoveImage(ctx context.Context, image ImageTag, force bool) error
	}

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the Dockerfile path, relative to ContextDir.
		Dockerfile string
		// Tag is the image tag applied to the result.
		Tag ImageTag
		// BuildArgs are build-time variables (--build-arg).
		BuildArgs map[string]string
		// Labels are image metadata labels (--label).
		Labels map[string]string
		// NoCache disables the layer cache.
		NoCache bool
		// Stdout receives build progress output.
		Stdout io.Writer
		// Stderr receives build error output.
		Stderr io.Writer
	}

	// RunOptions contains options for running a container.
	RunOptions struct {
		// Image is the image to run.
		Image ImageTag
		// Command is the command and its arguments.
		Command []string
		// User overrides the image's configured user (uid or name).
		User string
		// Env contains environment variables.
		Env map[string]string
		// Volumes are bind mounts applied to the container.
		Volumes []VolumeMount
		// Remove removes the container after exit (--rm).
		Remove bool
		// Stdin, Stdout, Stderr wire the container's standard streams.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// RunResult contains the result of running a container.
	RunResult struct {
		// ExitCode is the command's exit status.
		ExitCode int
		// Error holds infrastructure failures (engine binary missing, etc.);
		// a plain non-zero exit is reported via ExitCode only.
		Error error
	}

	// EngineNotAvailableError is returned when no usable engine is found.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}

	// InvalidBuildOptionsError is returned when BuildOptions fail validation.
	InvalidBuildOptionsError struct {
		Reason string
	}

	// InvalidRunOptionsError is returned when RunOptions fail validation.
	InvalidRunOptionsError struct {
		Reason string
	}
)

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrNoEngineAvailable so callers can use errors.Is.
func (e *EngineNotAvailableError) Unwrap() error { return ErrNoEngineAvailable }

// Error implements the error interface.
func (e *InvalidBuildOptionsError) Error() string {
	return fmt.Sprintf("invalid build options: %s", e.Reason)
}

// Unwrap returns ErrInvalidBuildOptions so callers can use errors.Is.
func (e *InvalidBuildOptionsError) Unwrap() error { return ErrInvalidBuildOptions }

// Error implements the error interface.
func (e *InvalidRunOptionsError) Error() string {
	return fmt.Sprintf("invalid run options: %s", e.Reason)
}

// Unwrap returns ErrInvalidRunOptions so callers can use errors.Is.
func (e *InvalidRunOptionsError) Unwrap() error { return ErrInvalidRunOptions }

// Validate checks that the BuildOptions identify a context and a tag.
func (o BuildOptions) Validate() error {
	if strings.TrimSpace(o.ContextDir) == "" {
		return &InvalidBuildOptionsError{Reason: "context directory must be set"}
	}
	if strings.TrimSpace(string(o.Tag)) == "" {
		return &InvalidBuildOptionsError{Reason: "image tag must be set"}
	}
	return nil
}

// Validate checks that the RunOptions identify an image and that every
// volume mount is well-formed.
func (o RunOptions) Validate() error {
	if strings.TrimSpace(string(o.Image)) == "" {
		return &InvalidRunOptionsError{Reason: "image must be set"}
	}
	for _, v := range o.Volumes {
		if err := v.Validate(); err != nil {
			return &InvalidRunOptionsError{Reason: err.Error()}
		}
	}
	return nil
}

// NewEngine creates a container engine of the preferred type, falling back
// to the other engine when the preferred one is unavailable.
func NewEngine(preferred EngineType) (Engine, error) {
	switch preferred {
	case EngineTypePodman:
		if engine := NewPodmanEngine(); engine.Available() {
			return engine, nil
		}
		if engine := NewDockerEngine(); engine.Available() {
			return engine, nil
		}
		return nil, &EngineNotAvailableError{
			Engine: string(EngineTypePodman),
			Reason: "podman is not installed or not accessible, and docker fallback is also not available",
		}

	case EngineTypeDocker:
		if engine := NewDockerEngine(); engine.Available() {
			return engine, nil
		}
		if engine := NewPodmanEngine(); engine.Available() {
			return engine, nil
		}
		return nil, &EngineNotAvailableError{
			Engine: string(EngineTypeDocker),
			Reason: "docker is not installed or not accessible, and podman fallback is also not available",
		}

	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferred)
	}
}

// AutoDetectEngine finds an available container engine, trying Podman first
// (more commonly available in rootless setups), then Docker.
func AutoDetectEngine() (Engine, error) {
	if podman := NewPodmanEngine(); podman.Available() {
		return podman, nil
	}
	if docker := NewDockerEngine(); docker.Available() {
		return docker, nil
	}
	return nil, &EngineNotAvailableError{
		Engine: "any",
		Reason: "no container engine (podman or docker) is available on this system",
	}
}
