package latex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactSet names every file a latex run over one source produces.
// All paths share the directory and stem of the .tex input.
type ArtifactSet struct {
	Dir  string
	Stem string
}

// NewArtifactSet derives the artifact set from the path of a .tex file
func NewArtifactSet(texPath string) (ArtifactSet, error) {
	if filepath.Ext(texPath) != ".tex" {
		return ArtifactSet{}, fmt.Errorf("not a .tex file: %s", texPath)
	}
	return ArtifactSet{
		Dir:  filepath.Dir(texPath),
		Stem: strings.TrimSuffix(filepath.Base(texPath), ".tex"),
	}, nil
}

// CreateSource writes document to a new temporary .tex file in dir and
// returns its artifact set
func CreateSource(dir, document string) (ArtifactSet, error) {
	f, err := os.CreateTemp(dir, "texmath-*.tex")
	if err != nil {
		return ArtifactSet{}, fmt.Errorf("failed to create source file: %w", err)
	}

	set, err := NewArtifactSet(f.Name())
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return ArtifactSet{}, err
	}

	if _, err := f.WriteString(document); err != nil {
		f.Close()
		os.Remove(f.Name())
		return ArtifactSet{}, fmt.Errorf("failed to write source file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return ArtifactSet{}, fmt.Errorf("failed to write source file: %w", err)
	}

	return set, nil
}

func (a ArtifactSet) path(ext string) string {
	return filepath.Join(a.Dir, a.Stem+ext)
}

// Source returns the .tex input
func (a ArtifactSet) Source() string { return a.path(".tex") }

// DVI returns the device-independent output
func (a ArtifactSet) DVI() string { return a.path(".dvi") }

// Aux returns the auxiliary file
func (a ArtifactSet) Aux() string { return a.path(".aux") }

// Log returns the latex log
func (a ArtifactSet) Log() string { return a.path(".log") }

// All returns every path of the set
func (a ArtifactSet) All() []string {
	return []string{a.Source(), a.DVI(), a.Aux(), a.Log()}
}

// Remove deletes every file of the set. Missing files are skipped; the
// first other failure is returned after all removals were attempted.
func (a ArtifactSet) Remove() error {
	var firstErr error
	for _, p := range a.All() {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
