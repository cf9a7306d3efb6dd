package testutil

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pders01/texmath/internal/latex"
	"github.com/pders01/texmath/internal/runner"
)

// FakeTools stands in for latex and dvipng.
// latex writes the .dvi, .aux and .log siblings of its input unless the
// document contains FailOn; dvipng writes a small png to its -o path and
// reports Depth.
type FakeTools struct {
	FailOn  string
	Depth   string
	NoDepth bool
	NoDVI   bool
	// Gate, when set, holds every latex run until it is closed or the
	// run's context is done
	Gate chan struct{}

	mu        sync.Mutex
	calls     map[string]int
	commands  []runner.Command
	documents []string
}

// NewFakeTools creates fake tools reporting a depth of 7
func NewFakeTools() *FakeTools {
	return &FakeTools{Depth: "7", calls: make(map[string]int)}
}

// Run implements runner.Runner
func (f *FakeTools) Run(ctx context.Context, c runner.Command) (runner.Output, error) {
	if err := ctx.Err(); err != nil {
		return runner.Output{}, err
	}

	f.mu.Lock()
	f.calls[c.Name]++
	f.commands = append(f.commands, c)
	f.mu.Unlock()

	switch c.Name {
	case "latex":
		if f.Gate != nil {
			select {
			case <-f.Gate:
			case <-ctx.Done():
				return runner.Output{}, ctx.Err()
			}
		}
		return f.latex(c)
	case "dvipng":
		return f.dvipng(c)
	}
	return runner.Output{}, exec.ErrNotFound
}

func (f *FakeTools) latex(c runner.Command) (runner.Output, error) {
	src := c.Args[len(c.Args)-1]
	doc, err := os.ReadFile(src)
	if err != nil {
		return runner.Output{}, err
	}

	f.mu.Lock()
	f.documents = append(f.documents, string(doc))
	f.mu.Unlock()

	if f.FailOn != "" && strings.Contains(string(doc), f.FailOn) {
		return runner.Output{
			Stdout:   []byte("! File ended while scanning use of \\frac.\n"),
			Stderr:   []byte("emergency stop\n"),
			ExitCode: 1,
		}, nil
	}
	if f.NoDVI {
		return runner.Output{Stdout: []byte("No pages of output.\n"), ExitCode: 1}, nil
	}

	set, err := latex.NewArtifactSet(src)
	if err != nil {
		return runner.Output{}, err
	}
	for _, p := range []string{set.DVI(), set.Aux(), set.Log()} {
		if err := os.WriteFile(p, []byte("latex output"), 0644); err != nil {
			return runner.Output{}, err
		}
	}
	return runner.Output{Stdout: []byte("Output written on doc.dvi (1 page, 256 bytes).\n")}, nil
}

func (f *FakeTools) dvipng(c runner.Command) (runner.Output, error) {
	var out string
	for i, a := range c.Args {
		if a == "-o" && i+1 < len(c.Args) {
			out = c.Args[i+1]
		}
	}
	if err := os.WriteFile(out, PNG(), 0644); err != nil {
		return runner.Output{}, err
	}
	if f.NoDepth {
		return runner.Output{Stdout: []byte("[1] ")}, nil
	}
	return runner.Output{Stdout: []byte("This is dvipng 1.15\n[1 depth=" + f.Depth + "] \n")}, nil
}

// Count returns how often tool was run
func (f *FakeTools) Count(tool string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tool]
}

// WaitForCount blocks until tool has been run n times or fails the test
// after a few seconds
func (f *FakeTools) WaitForCount(t *testing.T, tool string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for f.Count(tool) < n {
		if time.Now().After(deadline) {
			t.Fatalf("%s ran %d times, want %d", tool, f.Count(tool), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Commands returns every command run so far
func (f *FakeTools) Commands() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.commands...)
}

// Documents returns the latex sources seen so far
func (f *FakeTools) Documents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.documents...)
}

// PNG returns a valid 4x4 grayscale png
func PNG() []byte {
	var buf bytes.Buffer
	png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)))
	return buf.Bytes()
}

// AssertEmptyDir fails the test if dir has any entries
func AssertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	for _, e := range entries {
		t.Errorf("unexpected file in %s: %s", dir, e.Name())
	}
}
