package trace

import (
	"fmt"
	"slices"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota
	LevelError        // only dumped on failure
	LevelPhase        // driver and phase boundaries
	LevelDetail       // per package and per declaration
	LevelDebug        // everything
)

var levelNames = []string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string { return nameOf(levelNames, int(l)) }

func ParseLevel(s string) (Level, error) {
	i, err := parseName("trace level", levelNames, s)
	return Level(i), err
}

// ShouldEmit reports whether events of scope are recorded at this level.
// LevelError records phases into the ring only, for the failure dump.
func (l Level) ShouldEmit(scope Scope) bool {
	switch {
	case l == LevelOff:
		return false
	case l >= LevelDebug:
		return true
	case l == LevelDetail:
		return scope <= ScopeDecl
	}
	return scope <= ScopePhase
}

func nameOf(names []string, i int) string {
	if i >= 0 && i < len(names) && names[i] != "" {
		return names[i]
	}
	return "unknown"
}

// parseName returns the index of s in names, ignoring case.
func parseName(what string, names []string, s string) (int, error) {
	if i := slices.Index(names, strings.ToLower(strings.TrimSpace(s))); i >= 0 && names[i] != "" {
		return i, nil
	}
	valid := slices.DeleteFunc(slices.Clone(names), func(n string) bool { return n == "" })
	return 0, fmt.Errorf("invalid %s: %q (expected: %s)", what, s, strings.Join(valid, "|"))
}
