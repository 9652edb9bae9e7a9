package diagfmt

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"piecemeal/internal/diag"
	"piecemeal/internal/source"
)

type fixEditPreview struct {
	before []string
	after  []string
}

// buildFixEditPreview returns the whole lines touched by edit, before and
// after applying it.
func buildFixEditPreview(fs *source.FileSet, edit diag.TextEdit) (fixEditPreview, error) {
	if fs == nil {
		return fixEditPreview{}, fmt.Errorf("nil FileSet")
	}
	file := fs.Get(edit.Span.File)
	if file == nil {
		return fixEditPreview{}, fmt.Errorf("file %d not found in FileSet", edit.Span.File)
	}
	size, err := safecast.Conv[uint32](len(file.Content))
	if err != nil {
		return fixEditPreview{}, fmt.Errorf("len file content overflow: %w", err)
	}

	startPos, endPos := fs.Resolve(edit.Span)
	endLine := max(endPos.Line, startPos.Line)

	blockStart := min(lineStartOffset(file, startPos.Line, size), size)
	blockEnd := min(max(lineEndOffset(file, endLine, size), blockStart), size)
	if edit.Span.Start < blockStart || edit.Span.End > blockEnd || edit.Span.End < edit.Span.Start {
		return fixEditPreview{}, fmt.Errorf("edit span %d-%d out of range for preview block", edit.Span.Start, edit.Span.End)
	}

	original := file.Content[blockStart:blockEnd]
	relStart := edit.Span.Start - blockStart
	relEnd := edit.Span.End - blockStart

	after := make([]byte, 0, len(original)+len(edit.NewText))
	after = append(after, original[:relStart]...)
	after = append(after, edit.NewText...)
	after = append(after, original[relEnd:]...)

	return fixEditPreview{
		before: splitPreviewLines(original),
		after:  splitPreviewLines(after),
	}, nil
}

// splitPreviewLines drops the final newline so it does not show up as an
// empty line.
func splitPreviewLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	return strings.Split(strings.TrimRight(string(content), "\n"), "\n")
}

func lineStartOffset(f *source.File, line, size uint32) uint32 {
	if line <= 1 {
		return 0
	}
	if idx := int(line - 2); idx < len(f.LineIdx) {
		return f.LineIdx[idx] + 1
	}
	return size
}

// lineEndOffset returns the offset just past the newline ending line.
func lineEndOffset(f *source.File, line, size uint32) uint32 {
	if line == 0 {
		return 0
	}
	if idx := int(line - 1); idx < len(f.LineIdx) {
		return f.LineIdx[idx] + 1
	}
	return size
}
