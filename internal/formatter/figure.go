package formatter

import "fmt"

var builtinFigures = map[string]FigureFunc{
	"tex":    texFigure,
	"minted": texFigure,
	"rst":    rstFigure,
	"pandoc": pandocFigure,
}

func texFigure(path, caption, width string) string {
	if caption != "" {
		return fmt.Sprintf("\\begin{figure}\n\\includegraphics[width= %s]{%s}\n\\caption{%s}\n\\end{figure}\n", width, path, caption)
	}
	return fmt.Sprintf("\\includegraphics[width= %s]{%s}\n", width, path)
}

func rstFigure(path, caption, width string) string {
	if caption != "" {
		return fmt.Sprintf(".. figure:: %s\n   :width: %s\n\n   %s\n\n", path, width, caption)
	}
	return fmt.Sprintf(".. image:: %s\n   :width: %s\n\n", path, width)
}

func pandocFigure(path, caption, _ string) string {
	return fmt.Sprintf("![%s](%s)\n", caption, path)
}
