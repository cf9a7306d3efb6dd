package latex

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/pders01/texmath/internal/runner"
)

// ErrBaselineParse is returned when dvipng output carries no depth report
var ErrBaselineParse = errors.New("no depth reported by dvipng")

var depthPattern = regexp.MustCompile(`depth=(\d+)`)

// Tools names the external executables
type Tools struct {
	Latex  string
	Dvipng string
}

// DefaultTools uses latex and dvipng from PATH
func DefaultTools() Tools {
	return Tools{Latex: "latex", Dvipng: "dvipng"}
}

// LatexCommand typesets the set's source non-interactively. It runs in
// the source's directory since latex writes its outputs to the working
// directory.
func (t Tools) LatexCommand(set ArtifactSet) runner.Command {
	return runner.Command{
		Name: t.Latex,
		Args: []string{
			"-interaction=nonstopmode",
			set.Source(),
		},
		Dir: set.Dir,
	}
}

// DvipngCommand rasterizes the set's DVI output to outPath. With
// reportDepth the baseline depth is printed on stdout.
func (t Tools) DvipngCommand(set ArtifactSet, dpi int, outPath string, reportDepth bool) runner.Command {
	var args []string
	if reportDepth {
		args = append(args, "-depth")
	}
	args = append(args,
		"-D", strconv.Itoa(dpi),
		"-T", "tight",
		"-o", outPath,
		set.DVI(),
	)
	return runner.Command{Name: t.Dvipng, Args: args}
}

// ParseDepth extracts the baseline from dvipng's stdout
func ParseDepth(stdout []byte) (int, error) {
	m := depthPattern.FindSubmatch(stdout)
	if m == nil {
		return 0, ErrBaselineParse
	}
	depth, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, ErrBaselineParse
	}
	return depth, nil
}
