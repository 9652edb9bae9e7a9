package directive

import (
	"fmt"
	"strconv"
	"strings"
)

// Options are the per-type settings of a builder marker. Empty fields mean
// "use the project configuration".
type Options struct {
	SetterStyle string
	ToBuilder   *bool
}

var setterStyles = map[string]bool{"plain": true, "with": true, "set": true}

// Options parses key=value pairs of a builder marker.
func (d Directive) Options() (Options, error) {
	var opts Options
	if d.Kind != KindBuilder {
		return opts, nil
	}
	for _, field := range strings.Fields(d.Args) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return opts, &SyntaxError{Span: d.Span, Msg: fmt.Sprintf("builder option %q must be key=value", field)}
		}
		switch key {
		case "style":
			if !setterStyles[value] {
				return opts, &SyntaxError{Span: d.Span, Msg: fmt.Sprintf("unknown setter style %q (want plain, with or set)", value)}
			}
			opts.SetterStyle = value
		case "tobuilder":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return opts, &SyntaxError{Span: d.Span, Msg: fmt.Sprintf("tobuilder: %v", err)}
			}
			opts.ToBuilder = &b
		default:
			return opts, &SyntaxError{Span: d.Span, Msg: fmt.Sprintf("unknown builder option %q", key)}
		}
	}
	return opts, nil
}
