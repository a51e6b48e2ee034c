// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"

	"agentpack/internal/config"
)

// Default in-image locations used by the generated container build. The
// source directory is the build context's source mount, the artifact
// directory holds the wheel between the build and install stages, and the
// plugins directory holds the vendored plugin sources.
const (
	DefaultSourceDir   = "/src"
	DefaultArtifactDir = "/tmp"
	DefaultPluginsDir  = "/tmp/plugins"
)

type (
	// Execer runs external commands for the stages. Stages never reach
	// for os/exec directly so tests can record invocations instead of
	// executing them.
	Execer interface {
		// Run executes name with args, streaming output to the
		// configured writers.
		Run(ctx context.Context, name string, args ...string) error
	}

	// Env carries everything a stage needs: the rootfs prefix it operates
	// under, the resolved config, the command execer, and the logger.
	Env struct {
		// Root is the rootfs prefix filesystem operations are applied
		// under. "" and "/" both mean the real root; inside the
		// container build that is always the case.
		Root string
		Cfg  *config.Config
		Exec Execer
		Log  *log.Logger

		// Chown overrides the ownership syscall. Nil means os.Chown.
		// Tests run unprivileged and record calls instead.
		Chown func(name string, uid, gid int) error
	}

	hostExecer struct {
		stdout io.Writer
		stderr io.Writer
	}
)

// NewHostExecer returns an Execer backed by os/exec, streaming command
// output to the given writers.
func NewHostExecer(stdout, stderr io.Writer) Execer {
	return &hostExecer{stdout: stdout, stderr: stderr}
}

func (h *hostExecer) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr
	return cmd.Run()
}

// Path resolves an absolute in-image path against the rootfs prefix.
func (e *Env) Path(abs string) string {
	if e.Root == "" || e.Root == "/" {
		return abs
	}
	return filepath.Join(e.Root, abs)
}

// HomePath resolves a path relative to the service account home against the
// rootfs prefix.
func (e *Env) HomePath(rel string) string {
	return e.Path(path.Join(e.Cfg.Account.Home, rel))
}

// Logger returns the configured logger, falling back to the default.
func (e *Env) Logger() *log.Logger {
	if e.Log != nil {
		return e.Log
	}
	return log.Default()
}

func (e *Env) chown(name string, uid, gid int) error {
	if e.Chown != nil {
		return e.Chown(name, uid, gid)
	}
	return os.Chown(name, uid, gid)
}
