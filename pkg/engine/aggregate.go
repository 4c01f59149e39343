package engine

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/patina-dev/patina/pkg/models"
	"github.com/patina-dev/patina/pkg/node"
	"github.com/patina-dev/patina/pkg/rule"
)

// Occurrence is one site contributing to a fingerprint group.
type Occurrence struct {
	UnitPath string
	NodeID   node.ID
	Span     node.Span
	Captures map[string]string
}

// fingerprintIndex accumulates contributions across all units. It is fed by
// a single reducer after the map-phase barrier, so it needs no locking, and
// is frozen before cross-unit matches are emitted.
type fingerprintIndex struct {
	unitIdx map[string]uint32
	groups  map[string]map[uint64]*fingerprintGroup
	frozen  bool
}

type fingerprintGroup struct {
	occurrences []Occurrence

	// seen packs (unit index << 32 | node id) so the same site can never be
	// recorded twice, which the occurrence-list invariant requires.
	seen *roaring64.Bitmap
}

func newFingerprintIndex() *fingerprintIndex {
	return &fingerprintIndex{
		unitIdx: make(map[string]uint32),
		groups:  make(map[string]map[uint64]*fingerprintGroup),
	}
}

// add merges one unit's contribution shard into the index.
func (ix *fingerprintIndex) add(contribs []Contribution) {
	if ix.frozen {
		panic("fingerprint index is frozen")
	}
	for _, c := range contribs {
		uid, ok := ix.unitIdx[c.UnitPath]
		if !ok {
			uid = uint32(len(ix.unitIdx))
			ix.unitIdx[c.UnitPath] = uid
		}
		packed := uint64(uid)<<32 | uint64(c.NodeID)

		byKey, ok := ix.groups[c.RuleID]
		if !ok {
			byKey = make(map[uint64]*fingerprintGroup)
			ix.groups[c.RuleID] = byKey
		}
		g, ok := byKey[c.Key]
		if !ok {
			g = &fingerprintGroup{seen: roaring64.New()}
			byKey[c.Key] = g
		}
		if !g.seen.CheckedAdd(packed) {
			continue
		}
		g.occurrences = append(g.occurrences, Occurrence{
			UnitPath: c.UnitPath,
			NodeID:   c.NodeID,
			Span:     c.Span,
			Captures: c.Captures,
		})
	}
}

// freeze sorts every group's occurrence list into canonical order. No
// contributions may be added afterwards; cross-unit quantifiers need
// complete corpus visibility before any match is emitted.
func (ix *fingerprintIndex) freeze() {
	for _, byKey := range ix.groups {
		for _, g := range byKey {
			sort.Slice(g.occurrences, func(i, j int) bool {
				a, b := g.occurrences[i], g.occurrences[j]
				if a.UnitPath != b.UnitPath {
					return a.UnitPath < b.UnitPath
				}
				return a.NodeID < b.NodeID
			})
		}
	}
	ix.frozen = true
}

// matches emits a Match at every occurrence site of each group that reached
// its rule's minimum occurrence count. Each match carries the full sibling
// occurrence list so suggestion text can name all affected sites.
func (ix *fingerprintIndex) matches(cat *rule.Catalog) []models.Match {
	if !ix.frozen {
		panic("fingerprint index must be frozen before emitting matches")
	}

	var out []models.Match
	for _, r := range cat.CrossUnitRules() {
		byKey, ok := ix.groups[r.ID]
		if !ok {
			continue
		}
		keys := make([]uint64, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			g := byKey[k]
			if len(g.occurrences) < r.Signature.Repeated.MinOccurrences {
				continue
			}
			siblings := formatOccurrences(g.occurrences)
			for _, occ := range g.occurrences {
				caps := make(map[string]string, len(occ.Captures)+2)
				for name, v := range occ.Captures {
					caps[name] = v
				}
				caps["occurrences"] = siblings
				caps["occurrenceCount"] = strconv.Itoa(len(g.occurrences))
				out = append(out, models.Match{
					UnitPath:   occ.UnitPath,
					RuleID:     r.ID,
					Category:   string(r.Category),
					Severity:   r.Severity,
					Span:       occ.Span,
					NodeID:     occ.NodeID,
					Captures:   caps,
					Confidence: r.EffectiveConfidence(),
					RuleIndex:  r.Index(),
				})
			}
		}
	}
	return out
}

func formatOccurrences(occs []Occurrence) string {
	parts := make([]string, len(occs))
	for i, o := range occs {
		parts[i] = fmt.Sprintf("%s:%d-%d", o.UnitPath, o.Span.Start, o.Span.End)
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}
