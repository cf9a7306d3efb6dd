package cache

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pders01/texmath/internal/models"
	"github.com/spf13/afero"
)

// DirStore keeps renderings as {identity}_{baseline}_{suffix} files in a
// flat directory. The directory listing is the index.
type DirStore struct {
	fs     afero.Fs
	dir    string
	suffix string
}

// NewDirStore creates a store over dir. An empty suffix selects
// models.DefaultSuffix.
func NewDirStore(fs afero.Fs, dir, suffix string) *DirStore {
	if suffix == "" {
		suffix = models.DefaultSuffix
	}
	return &DirStore{fs: fs, dir: dir, suffix: suffix}
}

// Dir returns the directory backing the store
func (s *DirStore) Dir() string {
	return s.dir
}

// Fs returns the filesystem backing the store
func (s *DirStore) Fs() afero.Fs {
	return s.fs
}

// Lookup scans the immediate entries of the directory for an artifact of
// id. Sub-directories are skipped. When several artifacts match, the
// lexicographically smallest filename wins.
func (s *DirStore) Lookup(ctx context.Context, id string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}

	// ReadDir returns entries sorted by name
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		baseline, ok := models.MatchBaseline(id, info.Name())
		if !ok {
			continue
		}
		return Entry{
			Identity: id,
			Baseline: baseline,
			Path:     filepath.Join(s.dir, info.Name()),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		}, true, nil
	}

	return Entry{}, false, nil
}

// Put writes the image to a temporary file in the directory and renames
// it into place, so readers never observe a partial artifact.
func (s *DirStore) Put(ctx context.Context, id string, baseline int, r io.Reader) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	tmp, err := afero.TempFile(s.fs, s.dir, ".texmath-*.part")
	if err != nil {
		return Entry{}, fmt.Errorf("failed to create cache file: %w", err)
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return Entry{}, fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return Entry{}, fmt.Errorf("failed to write cache file: %w", err)
	}

	path := filepath.Join(s.dir, models.ArtifactName(id, baseline, s.suffix))
	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return Entry{}, fmt.Errorf("failed to store cache file: %w", err)
	}

	entry := Entry{Identity: id, Baseline: baseline, Path: path, Size: size}
	if info, err := s.fs.Stat(path); err == nil {
		entry.ModTime = info.ModTime()
	}
	return entry, nil
}

// List returns every artifact in the directory
func (s *DirStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var entries []Entry
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		a, ok := models.ParseArtifactName(info.Name())
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Identity: a.Identity,
			Baseline: a.Baseline,
			Path:     filepath.Join(s.dir, info.Name()),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	return entries, nil
}

// Remove deletes the artifact file of e
func (s *DirStore) Remove(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(e.Path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", e.Path, err)
	}
	return nil
}

// Open opens a cached artifact by filename. Names that are not artifacts
// are rejected, which also keeps callers inside the directory.
func (s *DirStore) Open(name string) (afero.File, error) {
	if _, ok := models.ParseArtifactName(name); !ok || filepath.Base(name) != name {
		return nil, fmt.Errorf("not an artifact name: %q", name)
	}
	return s.fs.Open(filepath.Join(s.dir, name))
}
