// Package naming derives the identifiers of generated members.
package naming

import (
	"fmt"
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SetterStyle selects the setter method spelling.
type SetterStyle uint8

const (
	// StylePlain: X(v)
	StylePlain SetterStyle = iota
	// StyleWith: WithX(v)
	StyleWith
	// StyleSet: SetX(v)
	StyleSet
)

func (s SetterStyle) String() string {
	switch s {
	case StyleWith:
		return "with"
	case StyleSet:
		return "set"
	default:
		return "plain"
	}
}

// ParseSetterStyle accepts "plain", "with" and "set". Empty means plain.
func ParseSetterStyle(s string) (SetterStyle, error) {
	switch s {
	case "", "plain":
		return StylePlain, nil
	case "with":
		return StyleWith, nil
	case "set":
		return StyleSet, nil
	}
	return StylePlain, fmt.Errorf("unknown setter style %q (want plain, with or set)", s)
}

// Scheme bundles every naming knob of the generator.
type Scheme struct {
	Style         SetterStyle
	BuilderSuffix string
	InlinePrefix  string
}

func DefaultScheme() Scheme {
	return Scheme{
		Style:         StylePlain,
		BuilderSuffix: "Builder",
		InlinePrefix:  "Build",
	}
}

// BuilderName is the builder type name for class: "PointBuilder".
// The builder shares the class's visibility.
func (s Scheme) BuilderName(class string) string {
	return class + s.BuilderSuffix
}

// InlineName is the inline function name: "BuildPoint", or "buildPoint"
// for an unexported class.
func (s Scheme) InlineName(class string) string {
	if token.IsExported(class) {
		return Export(s.InlinePrefix) + Export(class)
	}
	return Unexport(s.InlinePrefix) + Export(class)
}

// SetterName is the method name for a constructor parameter.
func (s Scheme) SetterName(param string) string {
	switch s.Style {
	case StyleWith:
		return "With" + Export(param)
	case StyleSet:
		return "Set" + Export(param)
	default:
		return Export(param)
	}
}

// initialisms follows the golint list for the common cases.
var initialisms = map[string]bool{
	"ACL": true, "API": true, "ASCII": true, "CPU": true, "CSS": true, "DNS": true,
	"EOF": true, "GUID": true, "HTML": true, "HTTP": true, "HTTPS": true, "ID": true,
	"IP": true, "JSON": true, "LHS": true, "QPS": true, "RAM": true, "RHS": true,
	"RPC": true, "SLA": true, "SMTP": true, "SQL": true, "SSH": true, "TCP": true,
	"TLS": true, "TTL": true, "UDP": true, "UI": true, "UID": true, "UUID": true,
	"URI": true, "URL": true, "UTF8": true, "VM": true, "XML": true, "XMPP": true,
	"XSRF": true, "XSS": true,
}

// Export upper-cases the leading word: "name" -> "Name", "url" -> "URL",
// "idx" -> "Idx", "userID" -> "UserID".
func Export(name string) string {
	if name == "" {
		return ""
	}
	head, tail := leadingWord(name)
	if initialisms[strings.ToUpper(head)] {
		return strings.ToUpper(head) + tail
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// Unexport lower-cases the leading word: "Name" -> "name", "URL" -> "url",
// "URLPath" -> "urlPath". Results that are Go keywords get a trailing underscore.
func Unexport(name string) string {
	if name == "" {
		return ""
	}
	var out string
	if head, tail := leadingWord(name); initialisms[strings.ToUpper(head)] {
		out = strings.ToLower(head) + tail
	} else {
		r, size := utf8.DecodeRuneInString(name)
		out = string(unicode.ToLower(r)) + name[size:]
	}
	if token.IsKeyword(out) {
		out += "_"
	}
	return out
}

// leadingWord splits a camelCase or MixedCaps identifier after its first word.
// A run of capitals followed by a lower-case letter ends one rune early, so
// "URLPath" splits as "URL" + "Path".
func leadingWord(name string) (head, tail string) {
	runes := []rune(name)
	i := 1
	if unicode.IsUpper(runes[0]) {
		for i < len(runes) && unicode.IsUpper(runes[i]) {
			i++
		}
		if i > 1 && i < len(runes) && unicode.IsLower(runes[i]) {
			i--
		}
		if i == 1 {
			for i < len(runes) && !unicode.IsUpper(runes[i]) && runes[i] != '_' {
				i++
			}
		}
	} else {
		for i < len(runes) && !unicode.IsUpper(runes[i]) && runes[i] != '_' {
			i++
		}
	}
	return string(runes[:i]), string(runes[i:])
}
