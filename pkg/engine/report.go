package engine

import (
	"sort"
	"strings"

	"github.com/patina-dev/patina/pkg/models"
	"github.com/patina-dev/patina/pkg/rule"
)

// assemble produces the final Report from the resolved match set: severity
// filtering, refactor-template expansion, suppression filtering, and the
// summary block. The matches must already be in canonical order.
func (e *Engine) assemble(matches []models.Match, skipped []models.SkippedUnit, unitsScanned int) *models.Report {
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Path < skipped[j].Path })

	kept := make([]models.Match, 0, len(matches))
	suppressed := 0
	for _, m := range matches {
		if m.Severity < e.opts.MinSeverity {
			continue
		}
		if r, ok := e.catalog.Rule(m.RuleID); ok {
			m.RefactorText = expandTemplate(r.Refactor, m.Captures)
		}
		if m.Suppressed {
			suppressed++
			if !e.opts.ShowSuppressed {
				continue
			}
		}
		kept = append(kept, m)
	}

	emitted := kept
	if e.opts.ShowSuppressed {
		emitted = make([]models.Match, 0, len(kept))
		for _, m := range kept {
			if !m.Suppressed {
				emitted = append(emitted, m)
			}
		}
	}

	return &models.Report{
		CatalogDigest: e.catalog.Digest(),
		Matches:       kept,
		SkippedUnits:  skipped,
		Summary:       models.NewSummary(emitted, unitsScanned, len(skipped), suppressed),
	}
}

// expandTemplate substitutes {name} placeholders with capture values.
// Unknown placeholders are left in place so broken templates are visible in
// output rather than silently blank.
func expandTemplate(tpl string, captures map[string]string) string {
	if len(captures) == 0 || !strings.Contains(tpl, "{") {
		return tpl
	}
	oldnew := make([]string, 0, len(captures)*2)
	for name, v := range captures {
		oldnew = append(oldnew, "{"+name+"}", v)
	}
	return strings.NewReplacer(oldnew...).Replace(tpl)
}

// Catalog exposes the engine's catalog, mainly for callers that need rule
// metadata when rendering.
func (e *Engine) Catalog() *rule.Catalog {
	return e.catalog
}
