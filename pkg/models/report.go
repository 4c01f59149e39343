package models

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// Report is the terminal artifact of a scan: the surviving matches in
// canonical order plus provenance and summary data. Immutable once
// assembled. Reports deliberately carry no timestamps so that two runs over
// an unchanged corpus serialize byte-identically.
type Report struct {
	CatalogDigest string        `json:"catalog_digest"`
	Matches       []Match       `json:"matches"`
	SkippedUnits  []SkippedUnit `json:"skipped_units,omitempty"`
	Summary       Summary       `json:"summary"`
}

// Summary aggregates the match set.
type Summary struct {
	UnitsScanned    int            `json:"units_scanned"`
	UnitsSkipped    int            `json:"units_skipped"`
	TotalMatches    int            `json:"total_matches"`
	SuppressedCount int            `json:"suppressed_count"`
	ByCategory      map[string]int `json:"by_category,omitempty"`
	BySeverity      map[string]int `json:"by_severity,omitempty"`
	MaxSeverity     int            `json:"max_severity"`
	MeanConfidence  float64        `json:"mean_confidence"`
	P90Confidence   float64        `json:"p90_confidence"`
}

// NewSummary computes summary statistics over the emitted (non-suppressed)
// matches.
func NewSummary(matches []Match, unitsScanned, unitsSkipped, suppressed int) Summary {
	s := Summary{
		UnitsScanned:    unitsScanned,
		UnitsSkipped:    unitsSkipped,
		SuppressedCount: suppressed,
	}
	if len(matches) == 0 {
		return s
	}

	s.TotalMatches = len(matches)
	s.ByCategory = make(map[string]int)
	s.BySeverity = make(map[string]int)

	confidences := make([]float64, 0, len(matches))
	for _, m := range matches {
		s.ByCategory[m.Category]++
		s.BySeverity[strconv.Itoa(m.Severity)]++
		if m.Severity > s.MaxSeverity {
			s.MaxSeverity = m.Severity
		}
		confidences = append(confidences, m.Confidence)
	}

	sort.Float64s(confidences)
	s.MeanConfidence = stat.Mean(confidences, nil)
	s.P90Confidence = stat.Quantile(0.9, stat.Empirical, confidences, nil)
	return s
}

// ExceedsSeverity reports whether any surviving match has severity at or
// above min. Zero or negative min disables the check. This drives the
// linter-style process exit contract.
func (r *Report) ExceedsSeverity(min int) bool {
	if min <= 0 {
		return false
	}
	for _, m := range r.Matches {
		if !m.Suppressed && m.Severity >= min {
			return true
		}
	}
	return false
}

// Emitted returns the matches that survive suppression.
func (r *Report) Emitted() []Match {
	out := make([]Match, 0, len(r.Matches))
	for _, m := range r.Matches {
		if !m.Suppressed {
			out = append(out, m)
		}
	}
	return out
}
