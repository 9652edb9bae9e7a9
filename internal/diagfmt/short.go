package diagfmt

import (
	"io"

	"piecemeal/internal/diag"
	"piecemeal/internal/source"
)

// Short writes one line per diagnostic: "error PM1001 path:line:col message".
func Short(w io.Writer, bag *diag.Bag, fs *source.FileSet, includeNotes bool) error {
	out := diag.FormatShortDiagnostics(bag.Items(), fs, includeNotes)
	if out == "" {
		return nil
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}
