package doctree

import "time"

// ChunkType tags a chunk as prose or code.
type ChunkType string

const (
	TypeDoc  ChunkType = "doc"
	TypeCode ChunkType = "code"
)

// ResultsVerbatim is the default Options.Results mode.
const ResultsVerbatim = "verbatim"

// Options controls how a code chunk is executed and rendered.
type Options struct {
	Echo     bool          // Show the chunk source.
	Results  string        // "verbatim" or anything else for raw output.
	Fig      bool          // Save the current figure after execution.
	Evaluate bool          // Execute the chunk at all.
	Width    string        // Figure width; empty falls back to the dialect width.
	Caption  string        // Figure caption; empty means none.
	Term     bool          // Replay statement by statement like an interactive session.
	Name     string        // Optional chunk label.
	Timeout  time.Duration // Execution bound; zero uses the session default.

	// Extra holds option keys the weaver does not know about, for custom formatters.
	Extra map[string]any
}

// DefaultOptions returns the documented chunk defaults.
func DefaultOptions() Options {
	return Options{
		Echo:     true,
		Results:  ResultsVerbatim,
		Fig:      false,
		Evaluate: true,
		Term:     true,
	}
}

// Clone returns a copy whose Extra map is not shared with o.
func (o Options) Clone() Options {
	if o.Extra != nil {
		extra := make(map[string]any, len(o.Extra))
		for k, v := range o.Extra {
			extra[k] = v
		}
		o.Extra = extra
	}
	return o
}

// Chunk is a contiguous unit of a source document.
type Chunk struct {
	Type    ChunkType
	Content string // Raw text without delimiter lines
	Number  int    // 1-based sequence among code chunks; 0 for prose
	Line    int    // Source line of the first content line
	Options Options

	Result       string   // Captured output or terminal transcript
	Figure       string   // Figure path as referenced from the woven document
	SavedFigures []string // Every file written for the figure
}

// IsCode reports whether c is a code chunk.
func (c Chunk) IsCode() bool {
	return c.Type == TypeCode
}

// Clone returns a copy of c that shares no maps or slices with it.
func (c Chunk) Clone() Chunk {
	c.Options = c.Options.Clone()
	if c.SavedFigures != nil {
		c.SavedFigures = append([]string(nil), c.SavedFigures...)
	}
	return c
}

// FrontMatter carries document-level settings from a +++ TOML header.
type FrontMatter struct {
	Dialect  string         `toml:"dialect"`
	FigDir   string         `toml:"fig_dir"`
	Title    string         `toml:"title"`
	Defaults map[string]any `toml:"defaults"`
}
