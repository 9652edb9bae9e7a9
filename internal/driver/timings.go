package driver

import (
	"encoding/json"
	"fmt"

	"piecemeal/internal/diag"
	"piecemeal/internal/observ"
	"piecemeal/internal/source"
)

type timingPayload struct {
	Kind string `json:"kind"`
	observ.Report
}

// appendTimingDiagnostic adds the report as an OBS6001 info diagnostic whose
// note carries the JSON form. It is added even when the bag is full.
func appendTimingDiagnostic(bag *diag.Bag, at source.Span, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "pipeline"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	entry := diag.New(diag.SevInfo, diag.ObsTimings, at,
		fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS)).
		WithNote(at, string(data))

	if bag.Add(entry) {
		return
	}
	overflow := diag.NewBag(1)
	overflow.Add(entry)
	bag.Merge(overflow)
}
