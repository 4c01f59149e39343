package engine

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/patina-dev/patina/pkg/node"
)

// Contribution is a fingerprint emitted by a cross-unit rule at one site.
// Contributions from all units are merged by the aggregator after the
// map-phase barrier.
type Contribution struct {
	RuleID   string
	Key      uint64
	UnitPath string
	NodeID   node.ID
	Span     node.Span
	Captures map[string]string
}

// fingerprint computes the canonical hash of a node's feature set over the
// rule's key attributes.
//
// Canonicalization is order-independent: parallel list attributes of equal
// length (field.names + field.types, say) are zipped into tuples and the
// tuples sorted, so two classes declaring the same fields in different
// order hash identically. Equality is exact after canonicalization; there
// is no fuzzy matching, a deliberate precision-over-recall choice.
func fingerprint(u *node.Unit, n *node.Node, keyAttrs []string) (uint64, string, bool) {
	var lists [][]string
	var scalars []string

	for _, attr := range keyAttrs {
		v, ok := u.Attr(n.ID, attr)
		if !ok {
			return 0, "", false
		}
		switch val := v.(type) {
		case []string:
			lists = append(lists, val)
		default:
			scalars = append(scalars, attr+"="+stringifyAttr(v))
		}
	}

	parts := make([]string, 0, len(scalars)+1)
	parts = append(parts, scalars...)

	if len(lists) > 0 {
		if zipped, ok := zipLists(lists); ok {
			parts = append(parts, zipped...)
		} else {
			// Lists of unequal length cannot be paired into tuples; sort
			// each independently instead.
			for _, l := range lists {
				sorted := append([]string(nil), l...)
				sort.Strings(sorted)
				parts = append(parts, strings.Join(sorted, "|"))
			}
		}
	}

	canonical := strings.Join(parts, "\x1f")
	return xxhash.Sum64String(canonical), canonical, true
}

// zipLists pairs the i-th elements of each list into a tuple and sorts the
// tuples. Fails if the lists disagree on length.
func zipLists(lists [][]string) ([]string, bool) {
	n := len(lists[0])
	for _, l := range lists[1:] {
		if len(l) != n {
			return nil, false
		}
	}
	tuples := make([]string, n)
	for i := 0; i < n; i++ {
		elems := make([]string, len(lists))
		for j, l := range lists {
			elems[j] = l[i]
		}
		tuples[i] = strings.Join(elems, ":")
	}
	sort.Strings(tuples)
	return tuples, true
}
