package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pders01/texmath/internal/models"
	"github.com/pders01/texmath/internal/testutil"
)

// useFakeTools swaps latex and dvipng for fakes for the rest of the test
func useFakeTools(t *testing.T) *testutil.FakeTools {
	t.Helper()

	fake := testutil.NewFakeTools()
	old := toolRunner
	toolRunner = fake
	t.Cleanup(func() { toolRunner = old })
	return fake
}

// writeArtifact places a cached image in dir with a modification time age
// in the past and returns its path
func writeArtifact(t *testing.T, dir, expr string, baseline int, age time.Duration) string {
	t.Helper()

	id := models.NewMathSource(expr, models.DefaultDPI, false).Identity()
	path := filepath.Join(dir, models.ArtifactName(id, baseline, models.DefaultSuffix))
	if err := os.WriteFile(path, testutil.PNG(), 0644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set artifact time: %v", err)
	}
	return path
}

func fileNames(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
