package cmd

import (
	"context"
	"fmt"

	"github.com/pders01/texmath/internal/config"
	"github.com/pders01/texmath/internal/render"
	"github.com/spf13/cobra"
)

var (
	lookupDPI     int
	lookupDisplay bool
	lookupJSON    bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <expression> [dir]",
	Short: "Find a cached rendering without rendering",
	Long: `Look up the cached image of an expression in a cache directory.

Fails if no image for the expression, dpi and display mode exists. latex
and dvipng are never run.

Examples:
  texmath lookup 'x^2' ./cache
  texmath lookup 'x^2' --display --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().IntVar(&lookupDPI, "dpi", 0, "Resolution in dots per inch (default render.dpi)")
	lookupCmd.Flags().BoolVar(&lookupDisplay, "display", false, "Look up the display (block) rendering")
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "Output as JSON")
}

func runLookup(cmd *cobra.Command, args []string) error {
	settings, err := config.Current()
	if err != nil {
		return err
	}

	dir, err := cacheDirArg(args, 1, settings)
	if err != nil {
		return err
	}

	renderer, cleanup, err := newRenderer(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	req := render.Request{
		Expression: args[0],
		Output:     dir,
		DPI:        lookupDPI,
		Display:    lookupDisplay || settings.Render.Display,
	}

	res, ok, err := renderer.Lookup(context.Background(), req)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no cached rendering in %s (identity %s)", dir, renderer.Source(req).Identity())
	}

	if done, err := printStructured(res, lookupJSON, false); done {
		return err
	}

	fmt.Println(res.Path)
	fmt.Printf("  Baseline: %d px\n", res.Baseline)
	return nil
}
