// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// PodmanEngine implements the Engine interface using the Podman CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine.
// On Linux with SELinux enabled, volume mounts are automatically labeled
// with :z so bind-mounted state directories stay accessible.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")

	allOpts := append([]BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithVolumeFormatter(addSELinuxLabel),
	}, opts...)

	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Available checks if Podman is available.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Version}}")
	return cmd.Run() == nil
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists checks if an image exists locally.
func (e *PodmanEngine) ImageExists(ctx context.Context, image ImageTag) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "exists", string(image))
	return err == nil, nil
}

// addSELinuxLabel appends the shared SELinux label to a volume mount when
// SELinux is likely enforcing. Mounts that already carry a label keep it.
func addSELinuxLabel(v VolumeMount) string {
	if runtime.GOOS == "linux" && v.SELinux == SELinuxLabelNone && selinuxEnabled() {
		v.SELinux = SELinuxLabelShared
	}
	return v.String()
}

// selinuxEnabled reports whether SELinux appears to be active on this host.
func selinuxEnabled() bool {
	data, err := os.ReadFile("/sys/fs/selinux/enforce")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}
