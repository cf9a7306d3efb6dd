package cmd

import (
	"context"
	"fmt"

	"github.com/pders01/texmath/internal/config"
	"github.com/pders01/texmath/internal/render"
	"github.com/spf13/cobra"
)

var (
	renderDPI        int
	renderDisplay    bool
	renderNoBaseline bool
	renderNoCache    bool
	renderJSON       bool
	renderToon       bool
)

var renderCmd = &cobra.Command{
	Use:   "render <expression> [output]",
	Short: "Render a math expression to a PNG image",
	Long: `Render a LaTeX math expression to a PNG image and print its baseline.

When output is a directory (the default is cache.dir, then the current
directory) the image is stored as {identity}_{baseline}_.png and reused by
later renders of the same expression, dpi and display mode. Any other
output is treated as the image path and always rendered.

Examples:
  texmath render 'x^2'
  texmath render '\sum_{k=1}^n k = \frac{n(n+1)}{2}' ./cache --display
  texmath render 'e^{i\pi} + 1 = 0' euler.png --dpi 300
  texmath render 'x^2' --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().IntVar(&renderDPI, "dpi", 0, "Resolution in dots per inch (default render.dpi)")
	renderCmd.Flags().BoolVar(&renderDisplay, "display", false, "Render as a display (block) equation")
	renderCmd.Flags().BoolVar(&renderNoBaseline, "no-baseline", false, "Skip baseline reporting and the cache lookup")
	renderCmd.Flags().BoolVar(&renderNoCache, "no-cache", false, "Always render, even if a cached image exists")
	renderCmd.Flags().BoolVar(&renderJSON, "json", false, "Output as JSON")
	renderCmd.Flags().BoolVar(&renderToon, "toon", false, "Output in LLM-friendly toon format")
}

func runRender(cmd *cobra.Command, args []string) error {
	settings, err := config.Current()
	if err != nil {
		return err
	}
	if renderNoBaseline {
		settings.Render.ReportBaseline = false
	}
	if renderNoCache {
		settings.Render.UseCache = false
	}

	output := "."
	if settings.Cache.Dir != "" {
		output = settings.Cache.Dir
	}
	if len(args) > 1 {
		output = args[1]
	}

	renderer, cleanup, err := newRenderer(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := renderer.Render(context.Background(), render.Request{
		Expression: args[0],
		Output:     output,
		DPI:        renderDPI,
		Display:    renderDisplay || settings.Render.Display,
	})
	if err != nil {
		return err
	}

	if done, err := printStructured(res, renderJSON, renderToon); done {
		return err
	}

	if res.Cached {
		fmt.Printf("✓ Cached: %s\n", res.Path)
	} else {
		fmt.Printf("✓ Rendered: %s\n", res.Path)
	}
	if res.BaselineKnown {
		fmt.Printf("  Baseline: %d px\n", res.Baseline)
	}
	fmt.Printf("  Identity: %s\n", res.Identity)

	return nil
}
