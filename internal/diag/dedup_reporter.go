package diag

import "piecemeal/internal/source"

// DedupReporter forwards a diagnostic to next only the first time its code,
// severity, primary span and message are seen. Notes and fixes of repeats
// are dropped with them.
type DedupReporter struct {
	next Reporter
	seen map[reportKey]bool
}

type reportKey struct {
	code    Code
	sev     Severity
	primary source.Span
	msg     string
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: map[reportKey]bool{}}
}

func (r *DedupReporter) Report(code Code, sev Severity, primary source.Span, msg string, notes []Note, fixes []Fix) {
	k := reportKey{code, sev, primary, msg}
	if r.seen[k] || r.next == nil {
		return
	}
	r.seen[k] = true
	r.next.Report(code, sev, primary, msg, notes, fixes)
}
