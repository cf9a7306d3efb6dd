package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pders01/texmath/internal/config"
	"github.com/pders01/texmath/internal/logging"
	"github.com/pders01/texmath/internal/render"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const displayPrefix = "display:"

var (
	batchWorkers int
	batchDPI     int
	batchJSON    bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <file|-> [dir]",
	Short: "Render many expressions into a cache directory",
	Long: `Render one expression per line of file (or stdin with -) into dir.

Blank lines and lines starting with # are skipped. A line starting with
"display:" is rendered in display mode. Identical expressions are rendered
only once.

Examples:
  texmath batch formulas.txt ./cache
  cat formulas.txt | texmath batch - --workers 8 --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Renders running at once (default batch.workers)")
	batchCmd.Flags().IntVar(&batchDPI, "dpi", 0, "Resolution in dots per inch (default render.dpi)")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "Output as JSON")
}

type batchLine struct {
	Expression string `json:"expression"`
	Display    bool   `json:"display"`
	Path       string `json:"path,omitempty"`
	Baseline   int    `json:"baseline"`
	Cached     bool   `json:"cached"`
	Error      string `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	settings, err := config.Current()
	if err != nil {
		return err
	}

	dir, err := cacheDirArg(args, 1, settings)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open batch file: %w", err)
		}
		defer f.Close()
		in = f
	}

	reqs, err := parseBatch(in, dir, batchDPI, settings.Render.Display)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		fmt.Println("No expressions to render.")
		return nil
	}

	workers := batchWorkers
	if workers == 0 {
		workers = settings.Batch.Workers
	}

	renderer, cleanup, err := newRenderer(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := logging.WithFields(context.Background(), zap.String("batch_id", uuid.NewString()))
	logging.L(ctx).Info("batch started", zap.Int("expressions", len(reqs)), zap.Int("workers", workers))

	items := renderer.RenderAll(ctx, reqs, workers)

	lines := make([]batchLine, len(items))
	failed := 0
	for i, item := range items {
		lines[i] = batchLine{
			Expression: item.Request.Expression,
			Display:    item.Request.Display,
			Path:       item.Result.Path,
			Baseline:   item.Result.Baseline,
			Cached:     item.Result.Cached,
		}
		if item.Err != nil {
			lines[i].Error = item.Err.Error()
			failed++
		}
	}

	logging.L(ctx).Info("batch finished", zap.Int("failed", failed))

	if batchJSON {
		if _, err := printStructured(lines, true, false); err != nil {
			return err
		}
	} else {
		for _, l := range lines {
			if l.Error != "" {
				fmt.Printf("✗ %s\n  %s\n", l.Expression, firstLine(l.Error))
				continue
			}
			fmt.Printf("✓ %s\n  %s (baseline %d)\n", l.Expression, l.Path, l.Baseline)
		}
		fmt.Printf("\nRendered %d expression(s), %d failed\n", len(lines)-failed, failed)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d expression(s) failed to render", failed, len(lines))
	}
	return nil
}

// parseBatch reads one request per non-blank, non-comment line
func parseBatch(r io.Reader, dir string, dpi int, display bool) ([]render.Request, error) {
	var reqs []render.Request

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		req := render.Request{Output: dir, DPI: dpi, Display: display}
		if rest, ok := strings.CutPrefix(line, displayPrefix); ok {
			req.Display = true
			line = strings.TrimSpace(rest)
		}
		req.Expression = line
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch input: %w", err)
	}

	return reqs, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
