package main

import (
	"fmt"
	"io"

	"piecemeal/internal/driver"
)

// printTimings writes the phase table of a run. Machine formats carry the
// same report as an OBS6001 diagnostic instead.
func printTimings(out io.Writer, res *driver.Result, format string) {
	if out == nil || res == nil || res.Timer == nil {
		return
	}
	if format != "pretty" && format != "short" {
		return
	}
	if _, err := fmt.Fprint(out, res.Timer.Summary()); err != nil {
		panic(err)
	}
}
