// Package profile describes produced tables for display and downstream use.
//
// Profile computes per-column counts, a memory estimate and summary
// statistics. ToWidgetPayload builds a size-capped, UI-ready rendition of a
// table together with its profile. Every value that leaves this package has
// passed through Normalize and is one of nil, bool, int64, float64, string,
// []any or map[string]any.
//
// Usage:
//
//	payload := profile.ToWidgetPayload(done.Table, 1000)
//	data, err := json.Marshal(payload)
package profile
