package engine

import (
	"sort"

	"github.com/patina-dev/patina/pkg/models"
	"github.com/patina-dev/patina/pkg/node"
	"github.com/patina-dev/patina/pkg/rule"
)

// resolve applies supersession and orders the match set canonically.
//
// Two matches conflict when their spans are identical or nested within one
// unit and one rule declares supersession over the other. Suppression is
// recorded on the losing match, never deleted, so verbose reports can show
// it. Matches whose rules merely conflictsWith each other are all kept; the
// canonical sort orders them deterministically.
func resolve(matches []models.Match, cat *rule.Catalog) []models.Match {
	// Canonical order up front makes the winner chosen below independent of
	// worker scheduling.
	sortCanonical(matches)

	byUnit := make(map[string][]int)
	for i := range matches {
		byUnit[matches[i].UnitPath] = append(byUnit[matches[i].UnitPath], i)
	}

	for _, idxs := range byUnit {
		// Only surviving matches suppress, so recompute suppression from the
		// previous round's survivors until the set stabilizes. Supersession
		// is acyclic (enforced at catalog load), so this terminates.
		for {
			changed := false
			for _, j := range idxs {
				loser := &matches[j]
				suppressedBy := ""
				for _, i := range idxs {
					if i == j || matches[i].Suppressed {
						continue
					}
					winnerRule, ok := cat.Rule(matches[i].RuleID)
					if !ok || !winnerRule.SupersedesRule(loser.RuleID) {
						continue
					}
					if spansConflict(matches[i].Span, loser.Span) {
						suppressedBy = matches[i].RuleID
						break
					}
				}
				if (suppressedBy != "") != loser.Suppressed {
					changed = true
				}
				loser.Suppressed = suppressedBy != ""
				loser.SuppressedBy = suppressedBy
			}
			if !changed {
				break
			}
		}
	}

	sortCanonical(matches)
	return matches
}

// spansConflict reports identical or nested spans.
func spansConflict(a, b node.Span) bool {
	return a == b || a.Contains(b) || b.Contains(a)
}

// sortCanonical orders matches by unit path, span start, severity
// descending, then catalog declaration order. The ordering is load-bearing:
// report bytes must not depend on worker scheduling.
func sortCanonical(matches []models.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.UnitPath != b.UnitPath {
			return a.UnitPath < b.UnitPath
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.RuleIndex != b.RuleIndex {
			return a.RuleIndex < b.RuleIndex
		}
		return a.RuleID < b.RuleID
	})
}
