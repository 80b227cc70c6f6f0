package chunker

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docweave/internal/doctree"
)

// delimiter matches a whole delimiter line: a code-open header
// `<<options>>=` (submatch 1) or a lone `@` closing a code chunk.
var delimiter = regexp.MustCompile(`(?m)^(?:<<(.*)>>=|@)[ \t]*(?:\r?\n|$)`)

// prelude makes the leading prose parse like any text after a close marker.
const prelude = "@\n"

// Parse splits a document into ordered doc and code chunks.
// Code chunks are numbered from 1 in document order.
func Parse(text string, defaults doctree.Options) ([]doctree.Chunk, error) {
	return parseAt(text, defaults, 0)
}

func parseAt(text string, defaults doctree.Options, lineOffset int) ([]doctree.Chunk, error) {
	src := prelude + text
	locs := delimiter.FindAllStringSubmatchIndex(src, -1)

	var chunks []doctree.Chunk
	for i, loc := range locs {
		start := loc[1]
		end := len(src)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := src[start:end]
		// The prelude occupies one line that is not in the caller's text.
		line := strings.Count(src[:start], "\n") + lineOffset

		var chunk doctree.Chunk
		if loc[2] >= 0 {
			optText := src[loc[2]:loc[3]]
			opts, err := ParseOptions(optText, defaults)
			if err != nil {
				return nil, &OptionError{Line: line - 1, Text: optText, Err: err}
			}
			chunk = doctree.Chunk{Type: doctree.TypeCode, Content: content, Line: line, Options: opts}
		} else {
			chunk = doctree.Chunk{Type: doctree.TypeDoc, Content: content, Line: line, Options: defaults.Clone()}
		}

		if strings.TrimSpace(content) == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}

	numberCodeChunks(chunks)
	return chunks, nil
}

func numberCodeChunks(chunks []doctree.Chunk) {
	n := 1
	for i := range chunks {
		if chunks[i].IsCode() {
			chunks[i].Number = n
			n++
		}
	}
}

// ParseDocument parses an optional +++ TOML front matter block followed by
// the chunked body. Front matter defaults apply to every chunk.
func ParseDocument(text string, defaults doctree.Options) (doctree.FrontMatter, []doctree.Chunk, error) {
	fm, body, lines, err := splitFrontMatter(text)
	if err != nil {
		return fm, nil, err
	}
	if len(fm.Defaults) > 0 {
		defaults, err = ApplyDefaults(defaults, fm.Defaults)
		if err != nil {
			return fm, nil, err
		}
	}
	chunks, err := parseAt(body, defaults, lines)
	return fm, chunks, err
}
