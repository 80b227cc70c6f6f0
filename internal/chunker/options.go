package chunker

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dgallion1/docweave/internal/doctree"
	"go.starlark.net/syntax"
)

// OptionError reports a malformed option string in a code chunk header.
type OptionError struct {
	Line int    // Source line of the chunk header
	Text string // Raw option text
	Err  error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("line %d: chunk options %q: %v", e.Line, e.Text, e.Err)
}

func (e *OptionError) Unwrap() error { return e.Err }

// Option strings are parsed as the argument list of a call expression.
// Nothing is ever evaluated; only literal values are accepted.
var optionSyntax = &syntax.FileOptions{}

// ParseOptions merges a chunk option string such as
// `echo=FALSE, fig=TRUE, width="8cm"` over defaults.
// A leading positional argument names the chunk.
func ParseOptions(text string, defaults doctree.Options) (doctree.Options, error) {
	opts := defaults.Clone()
	text = strings.TrimSpace(text)
	if text == "" {
		return opts, nil
	}

	expr, err := optionSyntax.ParseExpr("options", "options("+text+")", 0)
	if err != nil {
		return opts, err
	}
	call, ok := expr.(*syntax.CallExpr)
	if !ok {
		return opts, errors.New("not an option list")
	}

	seen := make(map[string]bool, len(call.Args))
	for i, arg := range call.Args {
		bin, ok := arg.(*syntax.BinaryExpr)
		if !ok || bin.Op != syntax.EQ {
			if i == 0 {
				name, err := chunkName(arg)
				if err != nil {
					return opts, err
				}
				opts.Name = name
				continue
			}
			return opts, fmt.Errorf("argument %d: want key=value", i+1)
		}

		key := bin.X.(*syntax.Ident).Name
		if seen[key] {
			return opts, fmt.Errorf("option %q repeated", key)
		}
		seen[key] = true

		value, err := literalValue(bin.Y)
		if err != nil {
			return opts, fmt.Errorf("option %q: %w", key, err)
		}
		if err := applyOption(&opts, key, value); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// ApplyDefaults overrides documented defaults with a document-level table.
func ApplyDefaults(defaults doctree.Options, values map[string]any) (doctree.Options, error) {
	opts := defaults.Clone()
	for key, value := range values {
		if err := applyOption(&opts, key, normalize(value)); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func chunkName(arg syntax.Expr) (string, error) {
	switch x := arg.(type) {
	case *syntax.Ident:
		return x.Name, nil
	case *syntax.Literal:
		if s, ok := x.Value.(string); ok {
			return s, nil
		}
	}
	return "", errors.New("only the first argument may be positional, and it must be a name")
}

func literalValue(expr syntax.Expr) (any, error) {
	switch x := expr.(type) {
	case *syntax.Literal:
		switch v := x.Value.(type) {
		case string:
			return v, nil
		case int64:
			return v, nil
		case float64:
			return v, nil
		}
		return nil, fmt.Errorf("unsupported literal %s", x.Raw)

	case *syntax.Ident:
		switch x.Name {
		case "TRUE", "True":
			return true, nil
		case "FALSE", "False":
			return false, nil
		case "None":
			return nil, nil
		}
		return nil, fmt.Errorf("unknown name %s", x.Name)

	case *syntax.UnaryExpr:
		if x.Op != syntax.MINUS && x.Op != syntax.PLUS {
			break
		}
		v, err := literalValue(x.X)
		if err != nil {
			return nil, err
		}
		sign := int64(1)
		if x.Op == syntax.MINUS {
			sign = -1
		}
		switch n := v.(type) {
		case int64:
			return sign * n, nil
		case float64:
			return float64(sign) * n, nil
		}
		return nil, errors.New("sign applied to a non-number")

	case *syntax.ParenExpr:
		return literalValue(x.X)

	case *syntax.TupleExpr:
		return literalList(x.List)

	case *syntax.ListExpr:
		return literalList(x.List)
	}
	return nil, errors.New("only literal values are allowed")
}

func literalList(exprs []syntax.Expr) ([]any, error) {
	out := make([]any, 0, len(exprs))
	for _, e := range exprs {
		v, err := literalValue(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// normalize maps decoder value types (TOML, JSON) onto the literal types.
func normalize(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

func applyOption(o *doctree.Options, key string, value any) error {
	var err error
	switch key {
	case "echo":
		o.Echo, err = asBool(key, value)
	case "fig":
		o.Fig, err = asBool(key, value)
	case "evaluate":
		o.Evaluate, err = asBool(key, value)
	case "term":
		o.Term, err = asBool(key, value)
	case "results":
		o.Results, err = asString(key, value)
	case "name":
		o.Name, err = asString(key, value)
	case "width":
		if value == nil {
			o.Width = ""
			return nil
		}
		o.Width, err = asString(key, value)
	case "caption":
		switch v := value.(type) {
		case bool, nil:
			o.Caption = ""
		case string:
			o.Caption = v
		default:
			err = fmt.Errorf("option %q: want string or boolean, got %T", key, v)
		}
	case "timeout":
		o.Timeout, err = asSeconds(key, value)
	default:
		if o.Extra == nil {
			o.Extra = make(map[string]any)
		}
		o.Extra[key] = value
	}
	return err
}

func asBool(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %q: want boolean, got %T", key, v)
	}
	return b, nil
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q: want string, got %T", key, v)
	}
	return s, nil
}

func asSeconds(key string, v any) (time.Duration, error) {
	var secs float64
	switch n := v.(type) {
	case int64:
		secs = float64(n)
	case float64:
		secs = n
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("option %q: want seconds, got %T", key, v)
	}
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("option %q: invalid duration %v", key, secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
