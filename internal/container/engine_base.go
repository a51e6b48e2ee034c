// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"agentpack/internal/issue"
)

const (
	// SELinuxLabelNone means no SELinux label is applied to volume mounts.
	SELinuxLabelNone SELinuxLabel = ""
	// SELinuxLabelShared allows sharing the volume between containers.
	SELinuxLabelShared SELinuxLabel = "z"
	// SELinuxLabelPrivate restricts the volume to a single container.
	SELinuxLabelPrivate SELinuxLabel = "Z"
)

// ErrInvalidVolumeMount is the sentinel error wrapped by InvalidVolumeMountError.
var ErrInvalidVolumeMount = errors.New("invalid volume mount")

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// It allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// VolumeFormatFunc formats a volume mount as a -v argument. Podman uses
	// this to append SELinux labels (:z) which are required in
	// SELinux-enforcing environments for bind-mounted host paths.
	VolumeFormatFunc func(mount VolumeMount) string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides the common implementation for CLI-based
	// container engines. Docker and Podman engines embed this struct;
	// methods identical across engines (Build, Run, Remove, RemoveImage)
	// live here, while Available, Version, and ImageExists remain on the
	// concrete types.
	BaseCLIEngine struct {
		name            string
		binaryPath      string
		execCommand     ExecCommandFunc
		volumeFormatter VolumeFormatFunc
	}

	// VolumeMount represents a bind-mount specification.
	VolumeMount struct {
		HostPath      string
		ContainerPath string
		ReadOnly      bool
		SELinux       SELinuxLabel
	}

	// SELinuxLabel represents an SELinux volume labeling option.
	// The zero value ("") means no label is applied.
	SELinuxLabel string

	// InvalidVolumeMountError is returned when a VolumeMount has an empty
	// host or container path.
	InvalidVolumeMountError struct {
		Value VolumeMount
	}
)

// Error implements the error interface.
func (e *InvalidVolumeMountError) Error() string {
	return fmt.Sprintf("invalid volume mount %q:%q: both paths must be non-empty",
		e.Value.HostPath, e.Value.ContainerPath)
}

// Unwrap returns ErrInvalidVolumeMount so callers can use errors.Is.
func (e *InvalidVolumeMountError) Unwrap() error { return ErrInvalidVolumeMount }

// Validate returns an error if either path of the VolumeMount is empty.
func (v VolumeMount) Validate() error {
	if strings.TrimSpace(v.HostPath) == "" || strings.TrimSpace(v.ContainerPath) == "" {
		return &InvalidVolumeMountError{Value: v}
	}
	return nil
}

// String returns the mount in "host:container[:opts]" format.
func (v VolumeMount) String() string {
	var result strings.Builder
	result.WriteString(v.HostPath)
	result.WriteString(":")
	result.WriteString(v.ContainerPath)

	var options []string
	if v.ReadOnly {
		options = append(options, "ro")
	}
	if v.SELinux != "" {
		options = append(options, string(v.SELinux))
	}
	if len(options) > 0 {
		result.WriteString(":")
		result.WriteString(strings.Join(options, ","))
	}
	return result.String()
}

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithVolumeFormatter sets a custom volume formatter function.
// Podman uses this to add SELinux labels on Linux.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:      binaryPath,
		execCommand:     exec.CommandContext,
		volumeFormatter: func(v VolumeMount) string { return v.String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// BuildArgs constructs arguments for a container build command.
//
// Generated command: <binary> build [options] <context>
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Dockerfile != "" {
		dockerfilePath := opts.Dockerfile
		if !filepath.IsAbs(dockerfilePath) && opts.ContextDir != "" {
			dockerfilePath = filepath.Join(opts.ContextDir, dockerfilePath)
		}
		args = append(args, "-f", dockerfilePath)
	}

	if opts.Tag != "" {
		args = append(args, "-t", string(opts.Tag))
	}

	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	// Sorted iteration keeps the generated command line deterministic,
	// which the reproducibility tests rely on.
	for _, k := range sortedKeys(opts.BuildArgs) {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, opts.BuildArgs[k]))
	}
	for _, k := range sortedKeys(opts.Labels) {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, opts.Labels[k]))
	}

	args = append(args, opts.ContextDir)

	return args
}

// RunArgs constructs arguments for a container run command.
//
// Generated command: <binary> run [options] <image> [command...]
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Remove {
		args = append(args, "--rm")
	}

	if opts.User != "" {
		args = append(args, "--user", opts.User)
	}

	for _, k := range sortedKeys(opts.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, opts.Env[k]))
	}

	for _, v := range opts.Volumes {
		args = append(args, "-v", e.volumeFormatter(v))
	}

	args = append(args, string(opts.Image))
	args = append(args, opts.Command...)

	return args
}

// RemoveArgs constructs arguments for a container remove command.
func (e *BaseCLIEngine) RemoveArgs(containerID ContainerID, force bool) []string {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, string(containerID))
	return args
}

// RemoveImageArgs constructs arguments for an image remove command.
func (e *BaseCLIEngine) RemoveImageArgs(image ImageTag, force bool) []string {
	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, string(image))
	return args
}

// RunCommandStatus executes a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return nil
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments. Useful when
// the caller needs to customize stdin/stdout/stderr.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// Build builds an image from a Dockerfile.
// BuildOptions are validated before executing to catch invalid fields early.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	args := e.BuildArgs(opts)

	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		return buildContainerError(e.name, opts, err)
	}

	return nil
}

// Run runs a command in a container and returns the result. A non-zero
// exit code is captured in RunResult.ExitCode, not returned as an error;
// only infrastructure failures set RunResult.Error.
func (e *BaseCLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	args := e.RunArgs(opts)

	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()

	result := &RunResult{}
	if err != nil {
		if exitErr, ok := errors.AsType[*exec.ExitError](err); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = 1
			result.Error = err
		}
	}

	return result, nil
}

// Remove removes a container.
func (e *BaseCLIEngine) Remove(ctx context.Context, containerID ContainerID, force bool) error {
	return e.RunCommandStatus(ctx, e.RemoveArgs(containerID, force)...)
}

// RemoveImage removes an image.
func (e *BaseCLIEngine) RemoveImage(ctx context.Context, image ImageTag, force bool) error {
	return e.RunCommandStatus(ctx, e.RemoveImageArgs(image, force)...)
}

// sortedKeys returns the map's keys in sorted order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildContainerError creates an actionable error for image build failures.
func buildContainerError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image")

	switch {
	case opts.Dockerfile != "":
		ctx.WithResource(opts.Dockerfile)
	case opts.ContextDir != "":
		ctx.WithResource(opts.ContextDir + "/Dockerfile")
	case opts.Tag != "":
		ctx.WithResource(string(opts.Tag))
	}

	ctx.WithSuggestion("Check the generated Dockerfile for errors")
	ctx.WithSuggestion("Verify the build context path exists and is accessible")
	ctx.WithSuggestion("Ensure base images are available (try: " + engine + " pull <base-image>)")
	ctx.WithSuggestion("Run with --verbose to see full build output")

	return ctx.Wrap(cause).BuildError()
}
