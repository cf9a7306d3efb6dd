// Package latex knows how to drive latex and dvipng for a single math
// fragment: the wrapping document, the files latex leaves next to its
// input, the command lines and the depth report printed by dvipng.
package latex

import (
	"fmt"

	"github.com/pders01/texmath/internal/models"
)

const documentTemplate = `\documentclass[12pt]{article}
\usepackage{amsmath}
\usepackage{amsfonts}
\usepackage{amssymb}
\usepackage{colordvi}
\usepackage[active]{preview}
\begin{document}
\begin{preview}
%s
\end{preview}
\end{document}
`

// Delimit wraps an expression in display or inline math delimiters
func Delimit(expression string, display bool) string {
	if display {
		return `\[` + expression + `\]`
	}
	return "$" + expression + "$"
}

// Document returns a complete LaTeX document typesetting the source
// inside a tight preview box
func Document(src *models.MathSource) string {
	return fmt.Sprintf(documentTemplate, Delimit(src.Expression, src.Display))
}
