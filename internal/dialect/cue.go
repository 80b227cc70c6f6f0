package dialect

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schema closes every dialect so misspelled keys are rejected.
const schema = `
dialects?: [string]: close({
	base?:         string
	codestart?:    string
	codeend?:      string
	outputstart?:  string
	outputend?:    string
	termstart?:    string
	termend?:      string
	indent?:       string
	termindent?:   string
	figfmt?:       string
	savedformats?: [...string]
	extension?:    string
	width?:        string
	doctype?:      string
	highlight?:    bool
})
`

// LoadCUE registers the dialects declared in a CUE file:
//
//	dialects: wiki: {
//		base:      "pandoc"
//		codestart: "<syntaxhighlight lang=\"python\">"
//		extension: "wiki"
//	}
//
// It returns the registered names in sorted order.
func (r *Registry) LoadCUE(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString("close({" + schema + "})")
	if err := schemaValue.Err(); err != nil {
		return nil, err
	}

	value := ctx.CompileBytes(content, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, err
	}
	value = schemaValue.Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dialects := value.LookupPath(cue.ParsePath("dialects"))
	if !dialects.Exists() {
		return nil, nil
	}
	specs := make(map[string]Spec)
	if err := dialects.Decode(&specs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	// Dialects built on other dialects from the same file need their base first.
	sort.SliceStable(names, func(i, j int) bool {
		return depth(specs, names[i]) < depth(specs, names[j]) ||
			depth(specs, names[i]) == depth(specs, names[j]) && names[i] < names[j]
	})
	for _, name := range names {
		if err := r.Register(name, specs[name]); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	sort.Strings(names)
	return names, nil
}

// depth counts in-file base links, stopping at cycles.
func depth(specs map[string]Spec, name string) int {
	n := 0
	seen := map[string]bool{name: true}
	for {
		base := specs[name].Base
		if _, local := specs[base]; !local || seen[base] {
			return n
		}
		seen[base] = true
		name = base
		n++
	}
}
