package cmd

import (
	"fmt"

	"github.com/pders01/texmath/internal/config"
	"github.com/pders01/texmath/internal/models"
	"github.com/spf13/cobra"
)

var (
	idDPI     int
	idDisplay bool
)

var idCmd = &cobra.Command{
	Use:   "id <expression>",
	Short: "Print the content identity of an expression",
	Long: `Print the identity used to name cached images of an expression.

The identity is a digest of the expression, the dpi and the display flag.

Example:
  texmath id 'x^2' --dpi 120`,
	Args: cobra.ExactArgs(1),
	RunE: runID,
}

func init() {
	rootCmd.AddCommand(idCmd)

	idCmd.Flags().IntVar(&idDPI, "dpi", 0, "Resolution in dots per inch (default render.dpi)")
	idCmd.Flags().BoolVar(&idDisplay, "display", false, "Display (block) mode")
}

func runID(cmd *cobra.Command, args []string) error {
	settings, err := config.Current()
	if err != nil {
		return err
	}

	dpi := idDPI
	if dpi == 0 {
		dpi = settings.Render.DPI
	}

	src := models.NewMathSource(args[0], dpi, idDisplay || settings.Render.Display).
		WithHash(models.HashAlgorithm(settings.Cache.Hash))
	if err := src.Validate(); err != nil {
		return err
	}

	fmt.Println(src.Identity())
	return nil
}
