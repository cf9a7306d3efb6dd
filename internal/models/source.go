package models

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// DefaultDPI is the rasterization resolution used when none is given
const DefaultDPI = 120

var (
	// ErrBaselineNotSet is returned when a generated filename is requested
	// before the baseline of a source is known
	ErrBaselineNotSet = errors.New("baseline not set")
	// ErrInvalidSource is returned for sources that cannot be rendered
	ErrInvalidSource = errors.New("invalid math source")
)

// HashAlgorithm selects the digest used for content identities
type HashAlgorithm string

const (
	HashMD5     HashAlgorithm = "md5"
	HashBlake2b HashAlgorithm = "blake2b"
	HashSHA256  HashAlgorithm = "sha256"
)

// MathSource is one renderable math fragment
type MathSource struct {
	Expression string
	DPI        int
	Display    bool

	algo     HashAlgorithm
	baseline *int
}

// NewMathSource creates a source. A dpi of zero selects DefaultDPI.
func NewMathSource(expression string, dpi int, display bool) *MathSource {
	if dpi == 0 {
		dpi = DefaultDPI
	}
	return &MathSource{
		Expression: expression,
		DPI:        dpi,
		Display:    display,
		algo:       HashMD5,
	}
}

// WithHash returns the source using algo for its identity
func (s *MathSource) WithHash(algo HashAlgorithm) *MathSource {
	if algo != "" {
		s.algo = algo
	}
	return s
}

// Validate checks that the source can be rendered
func (s *MathSource) Validate() error {
	if s.Expression == "" {
		return fmt.Errorf("%w: empty expression", ErrInvalidSource)
	}
	if s.DPI <= 0 {
		return fmt.Errorf("%w: dpi must be positive, got %d", ErrInvalidSource, s.DPI)
	}
	if _, err := newHash(s.algo); err != nil {
		return err
	}
	return nil
}

// Identity returns the content identity of the source.
// The digest covers the expression, the decimal dpi and the display flag,
// in that order.
func (s *MathSource) Identity() string {
	h, err := newHash(s.algo)
	if err != nil {
		h = md5.New()
	}
	h.Write([]byte(s.Expression))
	h.Write([]byte(strconv.Itoa(s.DPI)))
	if s.Display {
		h.Write([]byte("True"))
	} else {
		h.Write([]byte("False"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Baseline returns the baseline in pixels and whether it has been set
func (s *MathSource) Baseline() (int, bool) {
	if s.baseline == nil {
		return 0, false
	}
	return *s.baseline, true
}

// SetBaseline records the baseline of the rendered image
func (s *MathSource) SetBaseline(baseline int) {
	s.baseline = &baseline
}

// GeneratedFilename returns the cache filename for this source.
// Format: {identity}_{baseline}_{suffix}
func (s *MathSource) GeneratedFilename(suffix string) (string, error) {
	baseline, ok := s.Baseline()
	if !ok {
		return "", ErrBaselineNotSet
	}
	return ArtifactName(s.Identity(), baseline, suffix), nil
}

func newHash(algo HashAlgorithm) (hash.Hash, error) {
	switch algo {
	case HashMD5, "":
		return md5.New(), nil
	case HashBlake2b:
		return blake2b.New(16, nil)
	case HashSHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm: %s (must be: md5, blake2b, sha256)", algo)
	}
}

// IsValidHash reports whether algo names a supported digest
func IsValidHash(algo HashAlgorithm) bool {
	_, err := newHash(algo)
	return err == nil
}
