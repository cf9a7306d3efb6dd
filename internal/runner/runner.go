package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Command describes one external invocation
type Command struct {
	Name string
	Args []string
	Dir  string
}

// String returns the command line for logging
func (c Command) String() string {
	s := c.Name
	for _, a := range c.Args {
		s += " " + a
	}
	return s
}

// Output holds the captured streams of a finished process
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner runs external commands
type Runner interface {
	Run(ctx context.Context, c Command) (Output, error)
}

// Exec runs commands as child processes
type Exec struct {
	// TempDir holds the stream capture files, OS default when empty
	TempDir string
}

// Run starts the command and blocks until it exits.
// Stdout and stderr are each written to a temporary file rather than a
// pipe, read back after the process exits and then removed. A non-zero
// exit status is not an error; callers inspect the captured streams.
// Cancelling ctx kills the process and its children.
func (e Exec) Run(ctx context.Context, c Command) (Output, error) {
	outFile, err := os.CreateTemp(e.TempDir, "texmath-stdout-*")
	if err != nil {
		return Output{}, fmt.Errorf("failed to create stdout file: %w", err)
	}
	defer removeQuietly(outFile)

	errFile, err := os.CreateTemp(e.TempDir, "texmath-stderr-*")
	if err != nil {
		return Output{}, fmt.Errorf("failed to create stderr file: %w", err)
	}
	defer removeQuietly(errFile)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = outFile
	cmd.Stderr = errFile
	configureProcessGroup(cmd)

	start := time.Now()
	runErr := cmd.Run()
	out := Output{Duration: time.Since(start)}

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, fmt.Errorf("%s interrupted: %w", c.Name, ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return out, fmt.Errorf("failed to run %s: %w", c.Name, runErr)
		}
		out.ExitCode = exitErr.ExitCode()
	}

	if out.Stdout, err = os.ReadFile(outFile.Name()); err != nil {
		return out, fmt.Errorf("failed to read stdout of %s: %w", c.Name, err)
	}
	if out.Stderr, err = os.ReadFile(errFile.Name()); err != nil {
		return out, fmt.Errorf("failed to read stderr of %s: %w", c.Name, err)
	}

	return out, nil
}

// removeQuietly closes and deletes a capture file, ignoring errors
func removeQuietly(f *os.File) {
	f.Close()
	os.Remove(f.Name())
}
