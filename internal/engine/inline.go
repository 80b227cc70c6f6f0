package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	// inlineMarker matches <py>expr</py>, <pycode>expr</pycode> and any
	// other tag pair where both tags mention py.
	inlineMarker = regexp.MustCompile(`<[^>]*?py.*?>[^<]*</[^>]*?py.*?>`)
	inlineExpr   = regexp.MustCompile(`>([^<>]+)<`)
)

// Inline replaces every inline marker in text with the printed value of
// its expression, left to right. Text without markers is returned as is.
func (s *Session) Inline(ctx context.Context, text string) (string, error) {
	locs := inlineMarker.FindAllStringIndex(text, -1)
	if locs == nil {
		return text, nil
	}

	var b strings.Builder
	start := 0
	for _, loc := range locs {
		b.WriteString(text[start:loc[0]])
		start = loc[1]

		marker := text[loc[0]:loc[1]]
		m := inlineExpr.FindStringSubmatch(marker)
		if m == nil {
			return text, fmt.Errorf("inline marker %q has no expression", marker)
		}
		res := s.batch(ctx, 0, "<inline>", "print("+m[1]+")\n")
		if res.Status == Failed {
			return text, fmt.Errorf("inline expression %q: %w", m[1], res.Err)
		}
		b.WriteString(strings.TrimRightFunc(res.Output, unicode.IsSpace))
	}
	b.WriteString(text[start:])
	return b.String(), nil
}
