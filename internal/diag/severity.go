package diag

import "strings"

// Severity orders diagnostics; only SevError blocks generation.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severityNames = [...]string{SevInfo: "INFO", SevWarning: "WARNING", SevError: "ERROR"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNKNOWN"
}

// Label is the lower-case form used by golden and short output.
func (s Severity) Label() string {
	if s > SevError {
		return "error"
	}
	return strings.ToLower(s.String())
}
