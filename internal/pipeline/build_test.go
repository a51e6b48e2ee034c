// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildArtifactStage(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	env, exec := newTestEnv(t, root)
	writeFile(t, filepath.Join(root, "tmp", "aries_cloudagent-1.0.0-py3-none-any.whl"))

	s := NewBuildArtifactStage("/src", "/tmp")
	if err := s.Run(context.Background(), env); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := "pip wheel --no-deps --wheel-dir " +
		filepath.Join(root, "tmp") + " " + filepath.Join(root, "src")
	if got := exec.call(0); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestBuildArtifactStageNoArtifact(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t, t.TempDir())
	s := NewBuildArtifactStage("/src", "/tmp")

	err := s.Run(context.Background(), env)
	if !errors.Is(err, ErrArtifactBuild) {
		t.Fatalf("Run() error = %v, want ErrArtifactBuild", err)
	}
}

func TestBuildArtifactStageAmbiguousArtifacts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	env, _ := newTestEnv(t, root)
	writeFile(t, filepath.Join(root, "tmp", "aries_cloudagent-1.0.0-py3-none-any.whl"))
	writeFile(t, filepath.Join(root, "tmp", "aries_cloudagent-1.1.0-py3-none-any.whl"))

	s := NewBuildArtifactStage("/src", "/tmp")
	err := s.Run(context.Background(), env)
	if !errors.Is(err, ErrArtifactBuild) {
		t.Fatalf("Run() error = %v, want ErrArtifactBuild", err)
	}
}

func TestBuildArtifactStageCommandFailure(t *testing.T) {
	t.Parallel()

	env, exec := newTestEnv(t, t.TempDir())
	exec.failWhen = func(call []string) error {
		return errors.New("exit status 1")
	}

	s := NewBuildArtifactStage("/src", "/tmp")
	err := s.Run(context.Background(), env)

	buildErr, ok := errors.AsType[*ArtifactBuildError](err)
	if !ok {
		t.Fatalf("Run() error = %T, want *ArtifactBuildError", err)
	}
	if buildErr.Source != "/src" {
		t.Errorf("ArtifactBuildError.Source = %q, want %q", buildErr.Source, "/src")
	}
}
