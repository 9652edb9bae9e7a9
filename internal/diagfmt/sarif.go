package diagfmt

import (
	"encoding/json"
	"io"
	"path/filepath"
	"slices"

	"piecemeal/internal/diag"
	"piecemeal/internal/source"
)

const (
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion = "2.1.0"
)

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifInvocation struct {
	Arguments           []string `json:"arguments,omitempty"`
	ExecutionSuccessful bool     `json:"executionSuccessful"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID           string          `json:"ruleId"`
	RuleIndex        int             `json:"ruleIndex"`
	Level            string          `json:"level"`
	Message          sarifMessage    `json:"message"`
	Locations        []sarifLocation `json:"locations,omitempty"`
	RelatedLocations []sarifLocation `json:"relatedLocations,omitempty"`
	Fixes            []sarifFix      `json:"fixes,omitempty"`
}

type sarifLocation struct {
	ID               int                   `json:"id,omitempty"`
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
	Message          *sarifMessage         `json:"message,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           sarifRegion   `json:"region"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   uint32 `json:"startLine,omitempty"`
	StartColumn uint32 `json:"startColumn,omitempty"`
	EndLine     uint32 `json:"endLine,omitempty"`
	EndColumn   uint32 `json:"endColumn,omitempty"`
	CharOffset  uint32 `json:"charOffset"`
	CharLength  uint32 `json:"charLength"`
}

type sarifFix struct {
	Description     sarifMessage          `json:"description"`
	ArtifactChanges []sarifArtifactChange `json:"artifactChanges"`
}

type sarifArtifactChange struct {
	ArtifactLocation sarifArtifact      `json:"artifactLocation"`
	Replacements     []sarifReplacement `json:"replacements"`
}

type sarifReplacement struct {
	DeletedRegion   sarifRegion  `json:"deletedRegion"`
	InsertedContent sarifMessage `json:"insertedContent"`
}

// Sarif форматирует диагностики в SARIF формат (v2.1.0).
// Пути пишутся относительно fs.BaseDir() в виде URI со слэшами.
func Sarif(w io.Writer, bag *diag.Bag, fs *source.FileSet, meta SarifRunMeta) error {
	items := bag.Items()

	var codes []diag.Code
	for _, d := range items {
		if !slices.Contains(codes, d.Code) {
			codes = append(codes, d.Code)
		}
	}
	slices.Sort(codes)
	rules := make([]sarifRule, len(codes))
	for i, c := range codes {
		rules[i] = sarifRule{ID: c.ID(), Name: c.Name(), ShortDescription: sarifMessage{Text: c.Title()}}
	}

	results := make([]sarifResult, 0, len(items))
	for _, d := range items {
		r := sarifResult{
			RuleID:    d.Code.ID(),
			RuleIndex: slices.Index(codes, d.Code),
			Level:     sarifLevel(d.Severity),
			Message:   sarifMessage{Text: d.Message},
		}
		if loc, ok := sarifLocate(fs, d.Primary); ok {
			r.Locations = []sarifLocation{loc}
		}
		for i, n := range d.Notes {
			loc, ok := sarifLocate(fs, n.Span)
			if !ok {
				continue
			}
			loc.ID = i + 1
			loc.Message = &sarifMessage{Text: n.Msg}
			r.RelatedLocations = append(r.RelatedLocations, loc)
		}
		for _, f := range d.Fixes {
			if sf, ok := sarifFixOf(fs, f); ok {
				r.Fixes = append(r.Fixes, sf)
			}
		}
		results = append(results, r)
	}

	log := sarifLog{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: meta.ToolName, Version: meta.ToolVersion, Rules: rules}},
			Results: results,
		}},
	}
	if len(meta.InvocationArgs) > 0 {
		log.Runs[0].Invocations = []sarifInvocation{{
			Arguments:           meta.InvocationArgs,
			ExecutionSuccessful: !bag.HasErrors(),
		}}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func sarifLevel(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	}
	return "note"
}

func sarifLocate(fs *source.FileSet, sp source.Span) (sarifLocation, bool) {
	f := fs.Get(sp.File)
	if f == nil || (f.Flags&source.FileVirtual != 0 && len(f.Content) == 0) {
		return sarifLocation{}, false
	}
	return sarifLocation{PhysicalLocation: sarifPhysicalLocation{
		ArtifactLocation: sarifArtifact{URI: sarifURI(f, fs)},
		Region:           sarifRegionOf(fs, sp),
	}}, true
}

func sarifRegionOf(fs *source.FileSet, sp source.Span) sarifRegion {
	start, end := fs.Resolve(sp)
	return sarifRegion{
		StartLine:   start.Line,
		StartColumn: start.Col,
		EndLine:     end.Line,
		EndColumn:   end.Col,
		CharOffset:  sp.Start,
		CharLength:  sp.End - sp.Start,
	}
}

func sarifURI(f *source.File, fs *source.FileSet) string {
	return filepath.ToSlash(f.FormatPath("relative", fs.BaseDir()))
}

func sarifFixOf(fs *source.FileSet, f diag.Fix) (sarifFix, bool) {
	out := sarifFix{Description: sarifMessage{Text: f.Title}}
	byURI := map[string]int{}
	for _, e := range f.Edits {
		file := fs.Get(e.Span.File)
		if file == nil {
			return sarifFix{}, false
		}
		uri := sarifURI(file, fs)
		idx, ok := byURI[uri]
		if !ok {
			idx = len(out.ArtifactChanges)
			byURI[uri] = idx
			out.ArtifactChanges = append(out.ArtifactChanges, sarifArtifactChange{ArtifactLocation: sarifArtifact{URI: uri}})
		}
		out.ArtifactChanges[idx].Replacements = append(out.ArtifactChanges[idx].Replacements, sarifReplacement{
			DeletedRegion:   sarifRegionOf(fs, e.Span),
			InsertedContent: sarifMessage{Text: e.NewText},
		})
	}
	return out, len(out.ArtifactChanges) > 0
}
