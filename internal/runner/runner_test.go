//go:build unix

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesStreams(t *testing.T) {
	tmpDir := t.TempDir()
	e := Exec{TempDir: tmpDir}

	out, err := e.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo hello world; echo oops >&2"},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if string(out.Stdout) != "hello world\n" {
		t.Errorf("unexpected stdout: %q", out.Stdout)
	}
	if string(out.Stderr) != "oops\n" {
		t.Errorf("unexpected stderr: %q", out.Stderr)
	}
	if out.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", out.ExitCode)
	}

	assertNoCaptureFiles(t, tmpDir)
}

func TestRunNonZeroExit(t *testing.T) {
	tmpDir := t.TempDir()
	e := Exec{TempDir: tmpDir}

	out, err := e.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo failing >&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if out.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", out.ExitCode)
	}
	if !strings.Contains(string(out.Stderr), "failing") {
		t.Errorf("stderr not captured: %q", out.Stderr)
	}

	assertNoCaptureFiles(t, tmpDir)
}

func TestRunWorkingDirectory(t *testing.T) {
	workDir := t.TempDir()
	e := Exec{TempDir: t.TempDir()}

	out, err := e.Run(context.Background(), Command{Name: "pwd", Dir: workDir})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, _ := filepath.EvalSymlinks(strings.TrimSpace(string(out.Stdout)))
	want, _ := filepath.EvalSymlinks(workDir)
	if got != want {
		t.Errorf("expected working directory %s, got %s", want, got)
	}
}

func TestRunLargeOutput(t *testing.T) {
	e := Exec{TempDir: t.TempDir()}

	// well past a pipe buffer on both streams
	out, err := e.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "head -c 1048576 /dev/zero; head -c 1048576 /dev/zero >&2"},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(out.Stdout) != 1<<20 || len(out.Stderr) != 1<<20 {
		t.Errorf("expected 1MiB on each stream, got %d/%d", len(out.Stdout), len(out.Stderr))
	}
}

func TestRunMissingCommand(t *testing.T) {
	tmpDir := t.TempDir()
	e := Exec{TempDir: tmpDir}

	_, err := e.Run(context.Background(), Command{Name: "texmath-no-such-binary"})
	if err == nil {
		t.Fatal("expected error for missing command")
	}

	assertNoCaptureFiles(t, tmpDir)
}

func TestRunCancellation(t *testing.T) {
	e := Exec{TempDir: t.TempDir()}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 10"}})
	if err == nil {
		t.Fatal("expected error after deadline")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("child was not killed promptly (%s)", elapsed)
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "dvipng", Args: []string{"-D", "120", "in.dvi"}}
	if got := c.String(); got != "dvipng -D 120 in.dvi" {
		t.Errorf("unexpected command line: %s", got)
	}
}

func assertNoCaptureFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("capture file left behind: %s", e.Name())
	}
}
