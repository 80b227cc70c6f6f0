package chunker

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docweave/internal/doctree"
	toml "github.com/pelletier/go-toml/v2"
)

const frontMatterDelim = "+++"

// splitFrontMatter peels a leading +++ TOML block off text. Documents that do
// not start with a +++ line are returned unchanged. The line count of the
// removed header is returned so chunk line numbers stay accurate.
//
//	+++
//	dialect = "rst"
//	[defaults]
//	echo = false
//	+++
//	<body>
func splitFrontMatter(text string) (doctree.FrontMatter, string, int, error) {
	var fm doctree.FrontMatter

	first, rest, found := strings.Cut(text, "\n")
	if strings.TrimRight(first, " \t\r") != frontMatterDelim || !found {
		return fm, text, 0, nil
	}

	var header strings.Builder
	lines := 1
	for rest != "" {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		lines++
		if strings.TrimRight(line, " \t\r") == frontMatterDelim {
			if err := toml.Unmarshal([]byte(header.String()), &fm); err != nil {
				return fm, "", 0, fmt.Errorf("parsing TOML front matter: %w", err)
			}
			return fm, rest, lines, nil
		}
		header.WriteString(line)
		header.WriteByte('\n')
	}
	return fm, "", 0, fmt.Errorf("front matter is missing its closing %s line", frontMatterDelim)
}
