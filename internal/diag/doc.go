// Package diag defines the diagnostic model shared by the loader, the
// eligibility analyzer and the generator.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – Info, Warning or Error. Every eligibility finding is an Error.
//   - Code – compact numeric identifier with a stable ID ("PM1001") and a
//     symbolic name ("NO_PRIMARY_CONSTRUCTOR"), see codes.go.
//   - Message – short, actionable text naming the declaration involved.
//   - Primary span – source.Span of the offending declaration or parameter.
//   - Notes – secondary spans, e.g. the type whose visibility is not matched.
//   - Fixes – structured edits the fix engine can apply.
//
// Package diag performs no formatting and no IO. Rendering lives in
// internal/diagfmt, applying fixes lives in internal/fix.
//
// # Emitting diagnostics
//
// Producers report through a Reporter (usually BagReporter wrapped in a
// DedupReporter) and may use ReportBuilder to chain notes before Emit. A Bag
// is owned by one goroutine; the driver reports per-declaration findings in
// source order so output stays deterministic.
//
// # Fix suggestions
//
// Fix carries Title, Kind, Applicability, IsPreferred, RequiresAll and
// TextEdits. TextEdit.OldText is an optional guard checked before applying.
package diag
