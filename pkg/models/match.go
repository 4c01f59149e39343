// Package models defines the serializable result types produced by the
// engine. The Report is the sole externally consumed artifact; rendering to
// console or other wire formats lives in internal/output.
package models

import "github.com/patina-dev/patina/pkg/node"

// Match is one confirmed occurrence of a rule's signature.
type Match struct {
	UnitPath string    `json:"unit_path"`
	RuleID   string    `json:"rule_id"`
	Category string    `json:"category"`
	Severity int       `json:"severity"`
	Span     node.Span `json:"span"`
	NodeID   node.ID   `json:"node_id"`

	// Captures carries named context from the matched node. Cross-unit
	// matches include an "occurrences" capture listing every sibling site.
	Captures map[string]string `json:"captures,omitempty"`

	RefactorText string  `json:"refactor_text"`
	Confidence   float64 `json:"confidence"`

	// Suppressed matches stay in the match set so a verbose report can show
	// them, but are excluded from the default report.
	Suppressed   bool   `json:"suppressed,omitempty"`
	SuppressedBy string `json:"suppressed_by,omitempty"`

	// RuleIndex is the rule's catalog declaration position, kept for
	// deterministic ordering. Not serialized.
	RuleIndex int `json:"-"`
}

// SkippedUnit records a unit excluded from the scan and why, so consumers
// can judge report completeness.
type SkippedUnit struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}
