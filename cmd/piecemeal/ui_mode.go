package main

import (
	"fmt"
	"os"
	"strings"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

// tristate maps the spellings accepted by --ui and --color.
var tristate = map[string]uiMode{
	"":       uiModeAuto,
	"auto":   uiModeAuto,
	"on":     uiModeOn,
	"always": uiModeOn,
	"off":    uiModeOff,
	"never":  uiModeOff,
}

func parseTristate(flag, value string) (uiMode, error) {
	m, ok := tristate[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return "", fmt.Errorf("invalid --%s value %q (expected auto|on|off)", flag, value)
	}
	return m, nil
}

func readUIMode(value string) (uiMode, error) { return parseTristate("ui", value) }

// shouldUseTUI reports whether gen shows the interactive progress view.
func shouldUseTUI(mode uiMode) bool {
	if mode == uiModeAuto {
		return isTerminal(os.Stdout)
	}
	return mode == uiModeOn
}

// readColorMode resolves --color; auto follows whether f is a terminal.
func readColorMode(value string, f *os.File) (bool, error) {
	m, err := parseTristate("color", value)
	if err != nil {
		return false, err
	}
	if m == uiModeAuto {
		return isTerminal(f), nil
	}
	return m == uiModeOn, nil
}
